package extractor

import (
	"bytes"
	"fmt"

	"code.sajari.com/docconv/v2"

	"orion/internal/orierr"
)

// extractDocconv returns an extractor bound to the given MIME type,
// delegating to docconv for DOCX/DOC/XLSX/XLS bodies. XLSX/XLS content
// comes back from docconv as its already-serialized body text, which
// satisfies the Convert step's "row-by-row, tab- or space-joined
// cells" requirement without a second parsing pass.
func extractDocconv(mimeType string) func([]byte) (string, error) {
	return func(data []byte) (string, error) {
		result, err := docconv.Convert(bytes.NewReader(data), mimeType, false)
		if err != nil {
			return "", fmt.Errorf("docconv convert %s: %w: %w", mimeType, orierr.ErrExtractionFailed, err)
		}
		if len(result.Body) == 0 {
			return "", fmt.Errorf("no text content extracted from %s: %w", mimeType, orierr.ErrExtractionFailed)
		}
		return result.Body, nil
	}
}
