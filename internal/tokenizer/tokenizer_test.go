package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsToCl100kBase(t *testing.T) {
	enc, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEncoding, enc.Name())
}

func TestEncoder_RoundTrip(t *testing.T) {
	enc, err := Load(DefaultEncoding)
	require.NoError(t, err)

	text := "hello world, this is a test of the tokenizer"
	tokens := enc.Encode(text)
	assert.NotEmpty(t, tokens)
	assert.Equal(t, text, enc.Decode(tokens))
}

func TestLoad_Caches(t *testing.T) {
	a, err := Load(DefaultEncoding)
	require.NoError(t, err)
	b, err := Load(DefaultEncoding)
	require.NoError(t, err)
	assert.Same(t, a, b)
}
