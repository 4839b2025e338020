// Package pipeline implements the generic, ordered-step executor: per-
// step retry, skip predicates, a shared mutable context, and
// terminal-on-first-failure semantics. Steps are a sealed capability
// set (name, max retries, skip predicate, execute, should-retry)
// modeled as an interface with concrete variants, not inheritance.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orion/internal/orierr"
)

// Status is a pipeline or step's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
	StatusTimedOut  Status = "timed_out"
)

// StepResult is one step's outcome: status, human message, error
// detail if any, and wall-clock duration (the sum across all retry
// attempts).
type StepResult struct {
	Status   Status
	Message  string
	Err      error
	Duration time.Duration
}

// Context is the mutable per-run record shared across steps. Steps may
// only add or overwrite entries in Metadata and may not mutate another
// step's recorded result in Results; the engine owns Results.
type Context struct {
	DocumentID       string
	UserID           string
	OriginalFilename string
	InputFilePath    string
	Metadata         map[string]any
	Results          map[string]StepResult
}

// NewContext builds a fresh per-run context with empty maps.
func NewContext(documentID, userID, originalFilename, inputFilePath string) *Context {
	return &Context{
		DocumentID:       documentID,
		UserID:           userID,
		OriginalFilename: originalFilename,
		InputFilePath:    inputFilePath,
		Metadata:         map[string]any{},
		Results:          map[string]StepResult{},
	}
}

// Step is the capability set every concrete pipeline step implements.
type Step interface {
	// Name identifies the step in the ExecutionReport and context
	// results map.
	Name() string
	// MaxRetries is the non-negative retry budget for a thrown error.
	MaxRetries() int
	// ShouldSkip reports whether the step should be skipped given the
	// current context, without running Execute.
	ShouldSkip(ctx *Context) bool
	// Execute runs the step's work against the shared context.
	Execute(ctx context.Context, pctx *Context) (StepResult, error)
	// ShouldRetry consults the attempt number and the error to decide
	// whether another attempt is warranted. The default policy is
	// attempt < MaxRetries(); steps may override for non-retriable
	// error classes (e.g. auth failures).
	ShouldRetry(attempt int, err error) bool
}

// BaseStep provides Name, MaxRetries, and the default
// ShouldSkip/ShouldRetry behaviour so concrete steps only need to
// implement Execute.
// Embed it and override what differs.
type BaseStep struct {
	StepName      string
	Retries       int
	SkipPredicate func(*Context) bool
}

func (b BaseStep) Name() string      { return b.StepName }
func (b BaseStep) MaxRetries() int   { return b.Retries }
func (b BaseStep) ShouldSkip(ctx *Context) bool {
	if b.SkipPredicate == nil {
		return false
	}
	return b.SkipPredicate(ctx)
}
func (b BaseStep) ShouldRetry(attempt int, _ error) bool { return attempt < b.Retries }

// ExecutionReport is the result of one Pipeline.Execute call.
type ExecutionReport struct {
	PipelineName string
	Status       Status
	Steps        []StepResult
	StepNames    []string
	StartedAt    time.Time
	EndedAt      time.Time
	Completed    int
	Failed       int
}

// Pipeline is an ordered sequence of steps executed against one
// context. Steps never run concurrently within a single run because
// each may consume a prior step's context output.
type Pipeline struct {
	Name    string
	Steps   []Step
	Timeout time.Duration
}

// New builds a pipeline with the given name, ordered steps, and a
// soft per-run timeout (spec default: 5 minutes).
func New(name string, steps []Step, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Pipeline{Name: name, Steps: steps, Timeout: timeout}
}

// Execute runs every step in order. The first step failure terminates
// the run: subsequent steps are left Pending (never marked Failed) and
// are reported with Status Pending and no other field set. External
// cancellation via ctx
// has the same terminating effect and yields StatusCancelled. A
// per-run soft timeout yields StatusTimedOut.
func (p *Pipeline) Execute(ctx context.Context, pctx *Context) ExecutionReport {
	runCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	report := ExecutionReport{
		PipelineName: p.Name,
		Status:       StatusRunning,
		StartedAt:    time.Now(),
	}

	terminal := false
	for _, step := range p.Steps {
		report.StepNames = append(report.StepNames, step.Name())

		if terminal {
			report.Steps = append(report.Steps, StepResult{Status: StatusPending})
			continue
		}

		select {
		case <-runCtx.Done():
			result := timeoutOrCancelResult(runCtx)
			pctx.Results[step.Name()] = result
			report.Steps = append(report.Steps, result)
			report.Status = result.Status
			terminal = true
			continue
		default:
		}

		if step.ShouldSkip(pctx) {
			result := StepResult{Status: StatusSkipped, Message: fmt.Sprintf("%s skipped", step.Name())}
			pctx.Results[step.Name()] = result
			report.Steps = append(report.Steps, result)
			continue
		}

		result := p.executeStepWithRetry(runCtx, step, pctx)
		pctx.Results[step.Name()] = result
		report.Steps = append(report.Steps, result)

		switch result.Status {
		case StatusSuccess, StatusSkipped:
			report.Completed++
		case StatusFailed:
			report.Failed++
			report.Status = StatusFailed
			terminal = true
		case StatusCancelled, StatusTimedOut:
			report.Status = result.Status
			terminal = true
		}
	}

	if report.Status == StatusRunning {
		report.Status = StatusSuccess
	}
	report.EndedAt = time.Now()
	return report
}

func timeoutOrCancelResult(ctx context.Context) StepResult {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return StepResult{Status: StatusTimedOut, Message: "pipeline timed out", Err: orierr.ErrTimedOut}
	}
	return StepResult{Status: StatusCancelled, Message: "pipeline cancelled", Err: orierr.ErrCancelled}
}

// executeStepWithRetry attempts Execute up to MaxRetries()+1 times,
// sleeping 2^attempt seconds (exponential backoff, no jitter) between
// attempts, consulting ShouldRetry on each failure. All attempts'
// wall-clock sums into the returned StepResult's duration.
func (p *Pipeline) executeStepWithRetry(ctx context.Context, step Step, pctx *Context) StepResult {
	start := time.Now()
	attempt := 0

	for {
		result, err := step.Execute(ctx, pctx)
		if err == nil {
			result.Duration = time.Since(start)
			if result.Status == "" {
				result.Status = StatusSuccess
			}
			return result
		}

		if !step.ShouldRetry(attempt, err) {
			return StepResult{
				Status:   StatusFailed,
				Message:  fmt.Sprintf("%s failed", step.Name()),
				Err:      err,
				Duration: time.Since(start),
			}
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		select {
		case <-ctx.Done():
			result := timeoutOrCancelResult(ctx)
			result.Duration = time.Since(start)
			return result
		case <-time.After(backoff):
		}
		attempt++
	}
}
