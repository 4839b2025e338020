package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"orion/features/job"
	"orion/internal/testutils"
)

func TestJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	repo := job.NewPostgresRepo(s.DB)
	ctx := context.Background()

	run1 := &job.FailedRun{
		DocumentID:       "doc-1",
		UserID:           "u1@example.com",
		OriginalFilename: "report.pdf",
		RawFilePath:      "/data/raw/doc-1_report.pdf",
		FailedStep:       "embed",
		Status:           "failed",
		ErrorDetail:      "embedding provider returned 503",
	}
	require.NoError(t, repo.Save(ctx, run1))

	time.Sleep(10 * time.Millisecond)

	run2 := &job.FailedRun{
		DocumentID:       "doc-2",
		UserID:           "u1@example.com",
		OriginalFilename: "notes.txt",
		RawFilePath:      "/data/raw/doc-2_notes.txt",
		FailedStep:       "chunk",
		Status:           "failed",
		ErrorDetail:      "tokenizer panic",
	}
	require.NoError(t, repo.Save(ctx, run2))

	runs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, run2.ID, runs[0].ID, "most recently recorded run should be first")
	assert.Equal(t, run1.ID, runs[1].ID)

	fetched, err := repo.Get(ctx, run1.ID)
	require.NoError(t, err)
	assert.Equal(t, "embed", fetched.FailedStep)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.Delete(ctx, run1.ID))

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
