package embedding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orion/internal/orierr"
)

func TestCohereClient_Embed_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cohereEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := cohereEmbedResponse{Embeddings: make([][]float32, len(req.Texts))}
		for i := range req.Texts {
			resp.Embeddings[i] = []float32{float32(i), 0.5}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := NewCohereClient("test-key", 4)
	c.baseURL = srv.URL

	vecs, err := c.Embed(t.Context(), []string{"a", "b", "c"}, "embed-english-v3.0")
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, Vector{0, 0.5}, vecs[0])
	assert.Equal(t, Vector{2, 0.5}, vecs[2])
}

func TestCohereClient_Embed_NoAPIKey(t *testing.T) {
	c := NewCohereClient("", 4)
	_, err := c.Embed(t.Context(), []string{"a"}, "embed-english-v3.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, orierr.ErrAuth)
}

func TestCohereClient_Embed_AuthRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewCohereClient("bad-key", 4)
	c.baseURL = srv.URL
	_, err := c.Embed(t.Context(), []string{"a"}, "embed-english-v3.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, orierr.ErrAuth)
}

func TestCohereClient_Embed_TransientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewCohereClient("test-key", 4)
	c.baseURL = srv.URL
	_, err := c.Embed(t.Context(), []string{"a"}, "embed-english-v3.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, orierr.ErrProviderUnavailable)
}

func TestCohereClient_Dimension(t *testing.T) {
	c := NewCohereClient("k", 1)
	d, ok := c.Dimension("embed-english-v3.0")
	assert.True(t, ok)
	assert.Equal(t, 1024, d)
}
