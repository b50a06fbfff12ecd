package embedding

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"
)

// Hashing is a dependency-free provider based on signed feature hashing of
// word unigrams and bigrams. It is deterministic and needs no network.
type Hashing struct {
	dims int
}

func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Hashing{dims: dims}
}

func (h *Hashing) Dimensions() int { return h.dims }

func (h *Hashing) Model() string { return "hashing-" + strconv.Itoa(h.dims) }

func (h *Hashing) Encode(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, h.dims)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
	for i, tok := range tokens {
		h.add(v, tok)
		if i > 0 {
			h.add(v, tokens[i-1]+" "+tok)
		}
	}

	return v, nil
}

func (h *Hashing) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, _ := h.Encode(ctx, text)
		out[i] = v
	}
	return out, nil
}

func (h *Hashing) add(v []float32, feature string) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()

	bucket := sum % uint64(h.dims)
	if sum>>63 == 1 {
		v[bucket]--
		return
	}
	v[bucket]++
}
