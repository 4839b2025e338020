// Package tokenizer provides the byte-pair encoder used to produce
// reversible integer token sequences for chunk boundary computation.
// It is swappable by name and stateless after load, matching the
// process-wide, read-only-after-load shared resource model.
package tokenizer

import (
	"fmt"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Encoder is a loaded, reusable byte-pair encoder.
type Encoder interface {
	// Encode converts text into its token sequence.
	Encode(text string) []int
	// Decode converts a token sequence back into text.
	Decode(tokens []int) string
	// Name returns the encoder's registered name.
	Name() string
}

// DefaultEncoding is the GPT-4-family encoder used when CHUNK
// configuration does not name one explicitly.
const DefaultEncoding = "cl100k_base"

type tiktokenEncoder struct {
	name string
	enc  *tiktoken.Tiktoken
}

func (e *tiktokenEncoder) Encode(text string) []int {
	return e.enc.Encode(text, nil, nil)
}

func (e *tiktokenEncoder) Decode(tokens []int) string {
	return e.enc.Decode(tokens)
}

func (e *tiktokenEncoder) Name() string {
	return e.name
}

var (
	mu    sync.Mutex
	cache = map[string]Encoder{}
)

// Load returns the named encoder, loading and caching it on first use.
// Loaded encoders are immutable and safe for concurrent use across
// pipeline runs.
func Load(name string) (Encoder, error) {
	if name == "" {
		name = DefaultEncoding
	}

	mu.Lock()
	defer mu.Unlock()

	if enc, ok := cache[name]; ok {
		return enc, nil
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load encoder %q: %w", name, err)
	}

	loaded := &tiktokenEncoder{name: name, enc: enc}
	cache[name] = loaded
	return loaded, nil
}
