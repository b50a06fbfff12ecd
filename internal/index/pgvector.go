package index

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"
)

const defaultPGTable = "job_vectors"

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PGVectorBackend stores catalog vectors in Postgres and searches with the
// pgvector inner-product operator.
type PGVectorBackend struct {
	db    *sql.DB
	table string
}

func NewPGVectorBackend(dsn, table string) (*PGVectorBackend, error) {
	if dsn == "" {
		return nil, errors.New("pgvector dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres")
	}
	return newPGVectorBackend(db, table)
}

func newPGVectorBackend(db *sql.DB, table string) (*PGVectorBackend, error) {
	if table == "" {
		table = defaultPGTable
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PGVectorBackend{db: db, table: table}, nil
}

func (b *PGVectorBackend) Name() string { return BackendPGVector }

func (b *PGVectorBackend) Close() error { return b.db.Close() }

func (b *PGVectorBackend) Build(ctx context.Context, version string, vectors [][]float32) (Index, []byte, error) {
	dims := 0
	if len(vectors) > 0 {
		dims = len(vectors[0])
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS ` + b.table + ` (
			catalog_version TEXT NOT NULL,
			row_id INTEGER NOT NULL,
			embedding vector NOT NULL,
			PRIMARY KEY (catalog_version, row_id)
		)`,
		`DELETE FROM ` + b.table + ` WHERE catalog_version = $1`,
	}
	for i, stmt := range stmts {
		var args []any
		if i == len(stmts)-1 {
			args = append(args, version)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return nil, nil, errors.Wrap(err, "failed to prepare vector table")
		}
	}

	insert, err := tx.PrepareContext(ctx, `INSERT INTO `+b.table+` (catalog_version, row_id, embedding) VALUES ($1, $2, $3)`)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to prepare insert")
	}
	defer insert.Close()

	for row, v := range vectors {
		if len(v) != dims {
			return nil, nil, fmt.Errorf("vector %d: %w: got %d, want %d", row, ErrDimensionMismatch, len(v), dims)
		}
		if _, err := insert.ExecContext(ctx, version, row, pgvector.NewVector(v)); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to insert vector %d", row)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, errors.Wrap(err, "failed to commit vectors")
	}

	return &PGVector{db: b.db, table: b.table, version: version, n: len(vectors), dims: dims}, nil, nil
}

// Open attaches to the stored vectors of version, uploading them first when
// the catalog was built with another backend.
func (b *PGVectorBackend) Open(ctx context.Context, version string, vectors [][]float32, _ []byte) (Index, error) {
	var count int
	err := b.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+b.table+` WHERE catalog_version = $1`, version,
	).Scan(&count)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count catalog vectors")
	}
	if count == 0 && len(vectors) > 0 {
		idx, _, err := b.Build(ctx, version, vectors)
		return idx, err
	}
	if count != len(vectors) {
		return nil, fmt.Errorf("pgvector has %d rows for catalog %s, catalog has %d", count, version, len(vectors))
	}

	dims := 0
	if len(vectors) > 0 {
		dims = len(vectors[0])
	}
	return &PGVector{db: b.db, table: b.table, version: version, n: count, dims: dims}, nil
}

// PGVector searches one catalog version stored in Postgres.
type PGVector struct {
	db      *sql.DB
	table   string
	version string
	n       int
	dims    int
}

func (p *PGVector) Len() int { return p.n }

func (p *PGVector) Dimensions() int { return p.dims }

func (p *PGVector) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	k = clampK(k, p.n)
	if k == 0 {
		return []Hit{}, nil
	}
	if len(query) != p.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), p.dims)
	}

	// <#> is the negative inner product
	rows, err := p.db.QueryContext(ctx, `
		SELECT row_id, -(embedding <#> $1) AS score
		FROM `+p.table+`
		WHERE catalog_version = $2
		ORDER BY embedding <#> $1, row_id
		LIMIT $3`,
		pgvector.NewVector(query), p.version, k,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search vectors")
	}
	defer rows.Close()

	hits := make([]Hit, 0, k)
	for rows.Next() {
		var hit Hit
		var score float64
		if err := rows.Scan(&hit.Row, &score); err != nil {
			return nil, errors.Wrap(err, "failed to scan search result")
		}
		hit.Score = float32(score)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read search results")
	}

	return hits, nil
}
