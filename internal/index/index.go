// Package index provides nearest-neighbour search over unit vectors by inner
// product. Rows are identified by their position in the catalog.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	BackendFlat     = "flat"
	BackendPGVector = "pgvector"
)

var (
	ErrDimensionMismatch = errors.New("query dimension does not match index")
	ErrEmpty             = errors.New("index is empty")
)

// Hit is one search result.
type Hit struct {
	Row   int     `json:"row"`
	Score float32 `json:"score"`
}

// Index is a read-only, concurrency-safe search handle.
type Index interface {
	// Search returns at most k hits ordered by descending score, ties by ascending row.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Len() int
	Dimensions() int
}

// Backend builds and reopens indexes for a catalog version.
type Backend interface {
	Name() string
	// Build indexes vectors and returns the blob the caller persists next to them.
	Build(ctx context.Context, version string, vectors [][]float32) (Index, []byte, error)
	// Open restores an index previously produced by Build.
	Open(ctx context.Context, version string, vectors [][]float32, blob []byte) (Index, error)
}

// Config selects the backend.
type Config struct {
	Backend string `mapstructure:"backend"`
	Shards  int    `mapstructure:"shards"`
	DSN     string `mapstructure:"-"`
	Table   string `mapstructure:"table"`
}

// NewBackend returns the configured backend. pgvector backends own a database
// connection and must be closed by the caller via Close when non-nil.
func NewBackend(cfg Config) (Backend, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendFlat, "":
		return NewFlatBackend(cfg.Shards), func() error { return nil }, nil
	case BackendPGVector:
		b, err := NewPGVectorBackend(cfg.DSN, cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported index backend %q", cfg.Backend)
	}
}

// clampK bounds k to [0, n].
func clampK(k, n int) int {
	if k < 0 {
		return 0
	}
	if k > n {
		return n
	}
	return k
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		return better(hits[i], hits[j])
	})
}

// better reports whether a ranks before b.
func better(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Row < b.Row
}
