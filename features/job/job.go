// Package job persists terminal, retry-exhausted ingest pipeline runs
// to a durable ledger, and supports listing and manually re-enqueueing
// them for reprocessing.
package job

import "time"

// FailedRun is one pipeline run whose retry budget was exhausted (or
// which was cancelled/timed out) before reaching Success.
type FailedRun struct {
	ID               string    `json:"id"`
	DocumentID       string    `json:"document_id"`
	UserID           string    `json:"user_id"`
	OriginalFilename string    `json:"original_filename"`
	RawFilePath      string    `json:"raw_file_path"`
	FailedStep       string    `json:"failed_step"`
	Status           string    `json:"status"`
	ErrorDetail      string    `json:"error_detail"`
	RetryCount       int       `json:"retry_count"`
	CreatedAt        time.Time `json:"created_at"`
}
