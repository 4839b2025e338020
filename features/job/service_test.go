package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orion/internal/pipeline"
)

type fakeRepo struct {
	runs       map[string]*FailedRun
	saveErr    error
	deleteErr  error
	savedRun   *FailedRun
}

func newFakeRepo() *fakeRepo { return &fakeRepo{runs: map[string]*FailedRun{}} }

func (r *fakeRepo) Save(ctx context.Context, run *FailedRun) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	run.ID = "generated-id"
	r.savedRun = run
	r.runs[run.ID] = run
	return nil
}
func (r *fakeRepo) List(ctx context.Context) ([]FailedRun, error) {
	var out []FailedRun
	for _, v := range r.runs {
		out = append(out, *v)
	}
	return out, nil
}
func (r *fakeRepo) Get(ctx context.Context, id string) (*FailedRun, error) {
	run, ok := r.runs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return run, nil
}
func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.runs, id)
	return nil
}
func (r *fakeRepo) Count(ctx context.Context) (int, error) { return len(r.runs), nil }

type fakeRequeuer struct {
	called bool
	err    error
}

func (f *fakeRequeuer) Requeue(ctx context.Context, documentID, userID, originalFilename, rawFilePath string) error {
	f.called = true
	return f.err
}

func TestService_RecordFailure_PersistsFailedStep(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeRequeuer{})

	report := pipeline.ExecutionReport{
		Status:    pipeline.StatusFailed,
		StepNames: []string{"convert", "chunk", "embed"},
		Steps: []pipeline.StepResult{
			{Status: pipeline.StatusSuccess},
			{Status: pipeline.StatusFailed, Err: errors.New("boom")},
			{Status: pipeline.StatusPending},
		},
	}
	pctx := pipeline.NewContext("doc-1", "u2@x.io", "hi.txt", "/tmp/raw/doc-1_hi.txt")

	svc.RecordFailure(context.Background(), report, pctx)

	require.NotNil(t, repo.savedRun)
	assert.Equal(t, "doc-1", repo.savedRun.DocumentID)
	assert.Equal(t, "chunk", repo.savedRun.FailedStep)
	assert.Equal(t, "boom", repo.savedRun.ErrorDetail)
}

func TestService_Retry_RequeuesAndDeletes(t *testing.T) {
	repo := newFakeRepo()
	repo.runs["1"] = &FailedRun{ID: "1", DocumentID: "doc-1", UserID: "u2@x.io", OriginalFilename: "hi.txt", RawFilePath: "/tmp/hi.txt"}
	requeuer := &fakeRequeuer{}
	svc := NewService(repo, requeuer)

	err := svc.Retry(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, requeuer.called)
	_, stillExists := repo.runs["1"]
	assert.False(t, stillExists)
}

func TestService_Retry_NotFound(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeRequeuer{})

	err := svc.Retry(context.Background(), "missing")
	require.Error(t, err)
}

func TestService_List(t *testing.T) {
	repo := newFakeRepo()
	repo.runs["1"] = &FailedRun{ID: "1"}
	svc := NewService(repo, &fakeRequeuer{})

	runs, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
