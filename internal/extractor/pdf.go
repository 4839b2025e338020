package extractor

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"orion/internal/orierr"
)

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf reader: %w: %w", orierr.ErrExtractionFailed, err)
	}

	var buf bytes.Buffer
	totalPages := reader.NumPage()
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w: %w", i, orierr.ErrExtractionFailed, err)
		}
		buf.WriteString(text)
	}

	if buf.Len() == 0 {
		return "", fmt.Errorf("no text content in pdf: %w", orierr.ErrExtractionFailed)
	}
	return buf.String(), nil
}
