package ingest

import (
	"net/http"
	"os"
)

// DetectMIME sniffs the leading bytes of the file at path using the
// standard library's content sniffer (the corpus carries no
// third-party libmagic binding), returning the detected MIME type. The
// Registry's extension fallback covers the cases stdlib sniffing
// cannot distinguish (e.g. it reports DOCX/XLSX as generic zip).
func DetectMIME(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
