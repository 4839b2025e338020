package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orion/internal/orierr"
	"orion/internal/paths"
	"orion/internal/pipeline"
	"orion/internal/queue"
)

// syncQueue runs enqueued tasks inline, for deterministic assertions.
type syncQueue struct{ ran int }

func (q *syncQueue) Enqueue(task queue.Task) error {
	q.ran++
	task(context.Background())
	return nil
}
func (q *syncQueue) Run(ctx context.Context) {}

func noopPipeline() *pipeline.Pipeline {
	return pipeline.New("ingest", []pipeline.Step{}, 0)
}

func TestGate_Accept_InvalidUser(t *testing.T) {
	q := &syncQueue{}
	g := NewGate(t.TempDir(), 1024, q, noopPipeline(), nil)

	_, err := g.Accept(context.Background(), "not-an-email", "hi.txt", strings.NewReader("hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, orierr.ErrInvalidUser)
	assert.Equal(t, 0, q.ran)
}

func TestGate_Accept_TooLarge(t *testing.T) {
	q := &syncQueue{}
	g := NewGate(t.TempDir(), 4, q, noopPipeline(), nil)

	_, err := g.Accept(context.Background(), "u2@x.io", "hi.txt", strings.NewReader("hello world"))
	require.Error(t, err)
	assert.ErrorIs(t, err, orierr.ErrTooLarge)
	assert.Equal(t, 0, q.ran)
}

func TestGate_Accept_Success(t *testing.T) {
	q := &syncQueue{}
	g := NewGate(t.TempDir(), 1024, q, noopPipeline(), nil)

	docID, err := g.Accept(context.Background(), "u2@x.io", "hi.txt", strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.NotEmpty(t, docID)
	assert.Equal(t, 1, q.ran)
}

func TestGate_Requeue_MissingRawFile(t *testing.T) {
	q := &syncQueue{}
	g := NewGate(t.TempDir(), 1024, q, noopPipeline(), nil)

	err := g.Requeue(context.Background(), "doc-1", "u2@x.io", "hi.txt", "/no/such/path.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, orierr.ErrIO)
	assert.Equal(t, 0, q.ran)
}

func TestGate_Requeue_ReusesDocumentID(t *testing.T) {
	q := &syncQueue{}
	g := NewGate(t.TempDir(), 1024, q, noopPipeline(), nil)

	docID, err := g.Accept(context.Background(), "u2@x.io", "hi.txt", strings.NewReader("hello world"))
	require.NoError(t, err)

	dirs := paths.ForUser(g.BaseDir, "u2@x.io")
	rawPath := dirs.RawUploadPath(docID, "hi.txt")

	err = g.Requeue(context.Background(), docID, "u2@x.io", "hi.txt", rawPath)
	require.NoError(t, err)
	assert.Equal(t, 2, q.ran)
}
