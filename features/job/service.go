package job

import (
	"context"
	"fmt"
	"log/slog"

	"orion/internal/pipeline"
)

// Requeuer resubmits a failed run's raw file onto the ingest pipeline,
// implemented by ingest.Gate. It is declared here so that this package
// does not import ingest.
type Requeuer interface {
	Requeue(ctx context.Context, documentID, userID, originalFilename, rawFilePath string) error
}

type Service struct {
	repo     Repository
	requeuer Requeuer
}

func NewService(repo Repository, requeuer Requeuer) *Service {
	return &Service{repo: repo, requeuer: requeuer}
}

func (s *Service) List(ctx context.Context) ([]FailedRun, error) {
	return s.repo.List(ctx)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Retry re-enqueues the failed run's raw file for reprocessing, then
// removes it from the ledger. The file itself was never deleted on
// failure (per the pipeline's failure-isolation guarantee), so this is
// always possible as long as the raw upload still exists on disk.
func (s *Service) Retry(ctx context.Context, id string) error {
	run, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.requeuer.Requeue(ctx, run.DocumentID, run.UserID, run.OriginalFilename, run.RawFilePath); err != nil {
		return fmt.Errorf("requeue failed run %s: %w", id, err)
	}

	return s.repo.Delete(ctx, id)
}

// RecordFailure implements ingest.FailureRecorder: it persists a
// terminal (non-Success) ExecutionReport to the ledger.
func (s *Service) RecordFailure(ctx context.Context, report pipeline.ExecutionReport, pctx *pipeline.Context) {
	failedStep := ""
	errDetail := ""
	retryCount := 0
	for i, step := range report.StepNames {
		res := report.Steps[i]
		if res.Status == pipeline.StatusFailed || res.Status == pipeline.StatusCancelled || res.Status == pipeline.StatusTimedOut {
			failedStep = step
			if res.Err != nil {
				errDetail = res.Err.Error()
			} else {
				errDetail = res.Message
			}
			break
		}
	}

	run := &FailedRun{
		DocumentID:       pctx.DocumentID,
		UserID:           pctx.UserID,
		OriginalFilename: pctx.OriginalFilename,
		RawFilePath:      pctx.InputFilePath,
		FailedStep:       failedStep,
		Status:           string(report.Status),
		ErrorDetail:      errDetail,
		RetryCount:       retryCount,
	}

	if err := s.repo.Save(ctx, run); err != nil {
		// The ledger is best-effort: the raw file and partial products
		// are still on disk for manual recovery even if this write fails.
		slog.ErrorContext(ctx, "failed to record failed run", "document_id", pctx.DocumentID, "error", err)
	}
}
