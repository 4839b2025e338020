package extractor

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"orion/internal/orierr"
)

// extractCSV serializes each row tab-joined, one row per line, per the
// Convert step's CSV binding. encoding/csv is the stdlib reader for a
// grammar the retrieved corpus carries no third-party parser for.
func extractCSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	var sb strings.Builder
	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("parse csv: %w: %w", orierr.ErrExtractionFailed, err)
		}
		sb.WriteString(strings.Join(record, "\t"))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
