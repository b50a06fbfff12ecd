package index

import (
	"bytes"
	"container/heap"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var flatMagic = [4]byte{'J', 'R', 'F', 'X'}

const (
	flatFormatVersion uint32 = 1
	// below this many rows a single shard is faster than fanning out
	minRowsPerShard = 2048
)

// Flat is an exact brute-force index over a contiguous vector matrix.
type Flat struct {
	data   []float32
	n      int
	dims   int
	shards int
}

// NewFlat copies vectors into a contiguous matrix. All vectors must share one dimension.
func NewFlat(vectors [][]float32, shards int) (*Flat, error) {
	f := &Flat{n: len(vectors), shards: shards}
	if f.n == 0 {
		return f, nil
	}

	f.dims = len(vectors[0])
	if f.dims == 0 {
		return nil, errors.New("vectors must not be empty")
	}
	f.data = make([]float32, 0, f.n*f.dims)
	for i, v := range vectors {
		if len(v) != f.dims {
			return nil, fmt.Errorf("vector %d: %w: got %d, want %d", i, ErrDimensionMismatch, len(v), f.dims)
		}
		f.data = append(f.data, v...)
	}

	return f, nil
}

func (f *Flat) Len() int { return f.n }

func (f *Flat) Dimensions() int { return f.dims }

func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	k = clampK(k, f.n)
	if k == 0 {
		return []Hit{}, nil
	}
	if len(query) != f.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), f.dims)
	}

	shards := f.shardCount()
	if shards == 1 {
		return f.scan(ctx, query, k, 0, f.n)
	}

	partial := make([][]Hit, shards)
	per := (f.n + shards - 1) / shards

	g, gctx := errgroup.WithContext(ctx)
	for s := 0; s < shards; s++ {
		s := s
		from := s * per
		to := from + per
		if to > f.n {
			to = f.n
		}
		if from >= to {
			continue
		}
		g.Go(func() error {
			hits, err := f.scan(gctx, query, k, from, to)
			if err != nil {
				return err
			}
			partial[s] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]Hit, 0, shards*k)
	for _, hits := range partial {
		merged = append(merged, hits...)
	}
	sortHits(merged)
	if len(merged) > k {
		merged = merged[:k]
	}

	return merged, nil
}

func (f *Flat) shardCount() int {
	shards := f.shards
	if shards <= 0 {
		shards = runtime.GOMAXPROCS(0)
	}
	if limit := f.n / minRowsPerShard; shards > limit {
		shards = limit
	}
	if shards < 1 {
		shards = 1
	}
	return shards
}

// scan keeps the k best rows in [from, to) using a bounded min-heap.
func (f *Flat) scan(ctx context.Context, query []float32, k, from, to int) ([]Hit, error) {
	h := make(hitHeap, 0, k+1)

	for row := from; row < to; row++ {
		if (row-from)%minRowsPerShard == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		hit := Hit{Row: row, Score: dot(query, f.data[row*f.dims:(row+1)*f.dims])}
		if len(h) < k {
			heap.Push(&h, hit)
			continue
		}
		if better(hit, h[0]) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}

	hits := []Hit(h)
	sortHits(hits)
	return hits, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// hitHeap is a min-heap: the worst hit sits at the root.
type hitHeap []Hit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return better(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// MarshalBinary encodes the matrix as a small header followed by little-endian float32 values.
func (f *Flat) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(16 + 4*len(f.data))

	buf.Write(flatMagic[:])
	header := []uint32{flatFormatVersion, uint32(f.dims), uint32(f.n)}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}

	raw := make([]byte, 4*len(f.data))
	for i, x := range f.data {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(x))
	}
	buf.Write(raw)

	return buf.Bytes(), nil
}

// UnmarshalFlat decodes a blob produced by MarshalBinary.
func UnmarshalFlat(blob []byte, shards int) (*Flat, error) {
	if len(blob) < 16 || !bytes.Equal(blob[:4], flatMagic[:]) {
		return nil, errors.New("not a flat index blob")
	}

	var header [3]uint32
	if err := binary.Read(bytes.NewReader(blob[4:16]), binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if header[0] != flatFormatVersion {
		return nil, fmt.Errorf("unsupported flat index version %d", header[0])
	}

	dims, n := int(header[1]), int(header[2])
	raw := blob[16:]
	if len(raw) != 4*dims*n {
		return nil, fmt.Errorf("flat index blob is truncated: %d bytes for %dx%d", len(raw), n, dims)
	}

	data := make([]float32, dims*n)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}

	return &Flat{data: data, n: n, dims: dims, shards: shards}, nil
}

// FlatBackend keeps the whole index in process memory.
type FlatBackend struct {
	shards int
}

func NewFlatBackend(shards int) *FlatBackend {
	return &FlatBackend{shards: shards}
}

func (b *FlatBackend) Name() string { return BackendFlat }

func (b *FlatBackend) Build(_ context.Context, _ string, vectors [][]float32) (Index, []byte, error) {
	f, err := NewFlat(vectors, b.shards)
	if err != nil {
		return nil, nil, err
	}
	blob, err := f.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return f, blob, nil
}

func (b *FlatBackend) Open(_ context.Context, _ string, vectors [][]float32, blob []byte) (Index, error) {
	if len(blob) == 0 {
		return NewFlat(vectors, b.shards)
	}

	f, err := UnmarshalFlat(blob, b.shards)
	if err != nil {
		return nil, err
	}
	if f.n != len(vectors) {
		return nil, fmt.Errorf("flat index has %d rows, catalog has %d", f.n, len(vectors))
	}
	return f, nil
}
