package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"

	"orion/internal/orierr"
	"orion/internal/paths"
	"orion/internal/pipeline"
	"orion/internal/queue"
)

// userIDPattern is the basic email-like shape the gate validates user
// ids against: non-empty local and domain parts separated by '@', with
// at least one '.' in the domain.
var userIDPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const streamBufferSize = 8 * 1024

// FailureRecorder persists a terminal, retry-exhausted pipeline run so
// it can be listed and manually re-enqueued later. Implemented by the
// job ledger; nil disables recording (failures are still logged).
type FailureRecorder interface {
	RecordFailure(ctx context.Context, report pipeline.ExecutionReport, pctx *pipeline.Context)
}

// Gate is the streaming upload entrypoint: it validates the user id,
// persists the raw file under the size cap, and hands off to the
// background worker pool without waiting on pipeline completion.
type Gate struct {
	BaseDir     string
	MaxFileSize int64
	Queue       queue.TaskQueue
	Pipeline    *pipeline.Pipeline
	Ledger      FailureRecorder
}

func NewGate(baseDir string, maxFileSize int64, q queue.TaskQueue, p *pipeline.Pipeline, ledger FailureRecorder) *Gate {
	return &Gate{BaseDir: baseDir, MaxFileSize: maxFileSize, Queue: q, Pipeline: p, Ledger: ledger}
}

// Accept runs the upload gate's algorithm against src (an already
// opened, not-yet-fully-read reader) and returns the freshly minted
// document id on success. The raw file is persisted under
// raw_uploads/{id}_{filename}; on any failure, no file is left behind.
func (g *Gate) Accept(ctx context.Context, userID, filename string, src io.Reader) (string, error) {
	if !userIDPattern.MatchString(userID) {
		return "", orierr.ErrInvalidUser
	}

	dirs := paths.ForUser(g.BaseDir, userID)
	if err := dirs.Ensure(); err != nil {
		return "", fmt.Errorf("ensure user dirs: %w", orierr.ErrIO)
	}

	docID := uuid.New().String()
	rawPath := dirs.RawUploadPath(docID, filepath.Base(filename))

	dst, err := os.OpenFile(rawPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("open raw upload: %w", orierr.ErrIO)
	}

	var written int64
	buf := make([]byte, streamBufferSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			written += int64(n)
			if g.MaxFileSize > 0 && written > g.MaxFileSize {
				dst.Close()
				os.Remove(rawPath)
				return "", orierr.ErrTooLarge
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				dst.Close()
				os.Remove(rawPath)
				return "", fmt.Errorf("write raw upload: %w", orierr.ErrIO)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			dst.Close()
			os.Remove(rawPath)
			return "", fmt.Errorf("read upload body: %w", orierr.ErrIO)
		}
	}
	if err := dst.Close(); err != nil {
		os.Remove(rawPath)
		return "", fmt.Errorf("close raw upload: %w", orierr.ErrIO)
	}

	if mimeType, err := DetectMIME(rawPath); err != nil {
		slog.WarnContext(ctx, "mime detection failed, deferring to extension fallback", "document_id", docID, "error", err)
	} else {
		slog.InfoContext(ctx, "detected upload mime type", "document_id", docID, "mime", mimeType)
	}

	pctx := pipeline.NewContext(docID, userID, filepath.Base(filename), rawPath)
	if err := g.Queue.Enqueue(func(taskCtx context.Context) {
		report := g.Pipeline.Execute(taskCtx, pctx)
		g.logPipelineOutcome(taskCtx, report, pctx)
	}); err != nil {
		os.Remove(rawPath)
		return "", fmt.Errorf("enqueue ingest task: %w", orierr.ErrIO)
	}

	return docID, nil
}

// Requeue implements job.Requeuer: it resubmits an already-persisted
// raw upload onto the same pipeline, reusing the original document id
// so a retried run overwrites rather than duplicates its prior,
// partial output. The raw file must still exist on disk; Accept never
// deletes it after a successful enqueue, and the job ledger never
// deletes it either.
func (g *Gate) Requeue(ctx context.Context, documentID, userID, originalFilename, rawFilePath string) error {
	if _, err := os.Stat(rawFilePath); err != nil {
		return fmt.Errorf("raw upload missing: %w", orierr.ErrIO)
	}

	pctx := pipeline.NewContext(documentID, userID, originalFilename, rawFilePath)
	if err := g.Queue.Enqueue(func(taskCtx context.Context) {
		report := g.Pipeline.Execute(taskCtx, pctx)
		g.logPipelineOutcome(taskCtx, report, pctx)
	}); err != nil {
		return fmt.Errorf("enqueue retry task: %w", orierr.ErrIO)
	}

	return nil
}

func (g *Gate) logPipelineOutcome(ctx context.Context, report pipeline.ExecutionReport, pctx *pipeline.Context) {
	switch report.Status {
	case pipeline.StatusSuccess:
		slog.InfoContext(ctx, "ingest pipeline succeeded", "document_id", pctx.DocumentID, "user_id", pctx.UserID, "duration", report.EndedAt.Sub(report.StartedAt))
	default:
		slog.ErrorContext(ctx, "ingest pipeline did not succeed", "document_id", pctx.DocumentID, "user_id", pctx.UserID, "status", report.Status)
		if g.Ledger != nil {
			g.Ledger.RecordFailure(ctx, report, pctx)
		}
	}
}
