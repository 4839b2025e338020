// Package extractor dispatches a raw uploaded file to a format-specific
// text extractor keyed by detected MIME type, with an extension-based
// fallback. Each concrete extractor is an adapter over a third-party
// extraction library; this package owns only the registry and dispatch
// glue, per the Convert step's contract.
package extractor

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"orion/internal/orierr"
	"orion/internal/text"
)

// Extractor converts raw file bytes into UTF-8 text.
type Extractor interface {
	Extract(data []byte) (string, error)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func([]byte) (string, error)

func (f ExtractorFunc) Extract(data []byte) (string, error) { return f(data) }

// Registry dispatches by MIME type, falling back to file extension
// when the MIME type has no direct binding.
type Registry struct {
	byMIME mapStringExtractor
	byExt  mapStringExtractor
}

type mapStringExtractor map[string]Extractor

// NewRegistry builds the registry with the bindings named in the
// Convert step's design: PDF, DOCX/DOC, XLSX/XLS, CSV, and a
// byte-copy pass-through for plain-text formats.
func NewRegistry() *Registry {
	r := &Registry{byMIME: mapStringExtractor{}, byExt: mapStringExtractor{}}

	r.Register("application/pdf", []string{".pdf"}, ExtractorFunc(extractPDF))

	docx := ExtractorFunc(extractDocconv("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	r.Register("application/vnd.openxmlformats-officedocument.wordprocessingml.document", []string{".docx"}, docx)
	doc := ExtractorFunc(extractDocconv("application/msword"))
	r.Register("application/msword", []string{".doc"}, doc)

	xlsx := ExtractorFunc(extractDocconv("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	r.Register("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", []string{".xlsx"}, xlsx)
	xls := ExtractorFunc(extractDocconv("application/vnd.ms-excel"))
	r.Register("application/vnd.ms-excel", []string{".xls"}, xls)

	csv := ExtractorFunc(extractCSV)
	r.Register("text/csv", []string{".csv"}, csv)

	passthrough := ExtractorFunc(extractPassthrough)
	r.Register("text/plain", []string{".txt"}, passthrough)
	r.Register("application/json", []string{".json"}, passthrough)
	r.Register("application/xml", []string{".xml"}, passthrough)
	r.Register("text/xml", []string{".xml"}, passthrough)

	markdown := ExtractorFunc(extractMarkdown)
	r.Register("text/markdown", []string{".md", ".markdown"}, markdown)

	return r
}

// Register binds an extractor to a MIME type and the file extensions
// that should fall back to it when sniffing is inconclusive.
func (r *Registry) Register(mimeType string, exts []string, e Extractor) {
	r.byMIME[mimeType] = e
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// For selects an extractor by detected MIME type, falling back to the
// original filename's extension. It fails with ErrUnsupportedType if
// neither matches.
func (r *Registry) For(detectedMIME, filename string) (Extractor, error) {
	base, _, _ := mime.ParseMediaType(detectedMIME)
	if base == "" {
		base = detectedMIME
	}
	if e, ok := r.byMIME[base]; ok {
		return e, nil
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if e, ok := r.byExt[ext]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("no extractor for mime %q ext %q: %w", detectedMIME, ext, orierr.ErrUnsupportedType)
}

func extractPassthrough(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("not valid utf-8: %w", orierr.ErrExtractionFailed)
	}
	return string(data), nil
}

// extractMarkdown is the passthrough extractor plus a strip of common
// documentation boilerplate ("Edit this page" links, auto-generated
// tables of contents) that would otherwise waste tokenizer budget and
// dilute embeddings with noise the chunker has no way to tell apart
// from the document's real content.
func extractMarkdown(data []byte) (string, error) {
	raw, err := extractPassthrough(data)
	if err != nil {
		return "", err
	}
	return text.CleanMarkdownNoise(raw), nil
}
