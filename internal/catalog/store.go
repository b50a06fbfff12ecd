package catalog

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/spigell/job-recommender/internal/extract"
	"github.com/spigell/job-recommender/internal/index"
)

const storeFormat = "1"

var schema = []string{
	`CREATE TABLE catalog_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE jobs (
		row_id INTEGER PRIMARY KEY,
		source_id TEXT NOT NULL,
		title TEXT NOT NULL,
		company TEXT NOT NULL,
		company_url TEXT NOT NULL,
		location TEXT NOT NULL,
		contract_type TEXT NOT NULL,
		work_type TEXT NOT NULL,
		description TEXT NOT NULL,
		clean_description TEXT NOT NULL,
		combined_text TEXT NOT NULL,
		skills TEXT NOT NULL,
		experience_level TEXT NOT NULL,
		years_experience INTEGER NOT NULL,
		url TEXT NOT NULL,
		posted_time TEXT NOT NULL,
		published_at TEXT NOT NULL,
		category TEXT NOT NULL
	)`,
	`CREATE TABLE embeddings (
		row_id INTEGER PRIMARY KEY,
		vector BLOB NOT NULL
	)`,
	`CREATE TABLE vector_index (
		backend TEXT PRIMARY KEY,
		data BLOB
	)`,
}

// Save writes the catalog to a single SQLite file. The file is written next
// to path and renamed over it, so readers never see a partial catalog.
func Save(ctx context.Context, path string, c *Catalog) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create catalog directory")
	}

	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove stale temporary catalog")
	}

	if err := write(ctx, tmp, c); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "failed to publish catalog")
	}
	return nil
}

func write(ctx context.Context, path string, c *Catalog) error {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to create schema")
		}
	}

	meta := c.Meta()
	pairs := map[string]string{
		"format":     storeFormat,
		"version":    meta.Version,
		"built_at":   meta.BuiltAt.UTC().Format(time.RFC3339Nano),
		"model":      meta.Model,
		"dimensions": strconv.Itoa(meta.Dimensions),
		"backend":    meta.Backend,
		"job_count":  strconv.Itoa(c.Len()),
	}
	for k, v := range pairs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO catalog_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return errors.Wrap(err, "failed to write catalog meta")
		}
	}

	insertJob, err := tx.PrepareContext(ctx, `
		INSERT INTO jobs (
			row_id, source_id, title, company, company_url, location, contract_type, work_type,
			description, clean_description, combined_text, skills, experience_level, years_experience,
			url, posted_time, published_at, category
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare job insert")
	}
	defer insertJob.Close()

	insertVector, err := tx.PrepareContext(ctx, `INSERT INTO embeddings (row_id, vector) VALUES (?, ?)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare embedding insert")
	}
	defer insertVector.Close()

	var writeErr error
	c.Each(func(job *Job) bool {
		skills, err := json.Marshal(job.Skills)
		if err != nil {
			writeErr = errors.Wrapf(err, "failed to encode skills of job %d", job.ID)
			return false
		}

		_, err = insertJob.ExecContext(ctx,
			job.ID, job.SourceID, job.Title, job.Company, job.CompanyURL, job.Location, job.ContractType, job.WorkType,
			job.Description, job.CleanDescription, job.CombinedText, string(skills), string(job.ExperienceLevel), job.YearsExperience,
			job.URL, job.PostedTime, job.PublishedAt, job.Category,
		)
		if err != nil {
			writeErr = errors.Wrapf(err, "failed to insert job %d", job.ID)
			return false
		}

		vector, _ := c.Embedding(job.ID)
		if _, err := insertVector.ExecContext(ctx, job.ID, float32sToBlob(vector)); err != nil {
			writeErr = errors.Wrapf(err, "failed to insert embedding %d", job.ID)
			return false
		}
		return true
	})
	if writeErr != nil {
		return writeErr
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO vector_index (backend, data) VALUES (?, ?)`, meta.Backend, c.IndexBlob()); err != nil {
		return errors.Wrap(err, "failed to write index")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit catalog")
	}
	return nil
}

// Load reads a catalog written by Save and reopens its index with backend.
// Row counts and vector dimensions of every artifact must agree.
func Load(ctx context.Context, path string, backend index.Backend) (*Catalog, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "catalog is not available")
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer db.Close()

	meta, count, err := readMeta(ctx, db)
	if err != nil {
		return nil, err
	}

	jobs, err := readJobs(ctx, db, count)
	if err != nil {
		return nil, err
	}

	vectors, err := readEmbeddings(ctx, db, count, meta.Dimensions)
	if err != nil {
		return nil, err
	}

	var blob []byte
	err = db.QueryRowContext(ctx, `SELECT data FROM vector_index WHERE backend = ?`, backend.Name()).Scan(&blob)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.Wrap(err, "failed to read index")
	}

	idx, err := backend.Open(ctx, meta.Version, vectors, blob)
	if err != nil {
		return nil, fmt.Errorf("open %s index: %w", backend.Name(), err)
	}
	meta.Backend = backend.Name()

	return New(meta, jobs, vectors, idx, blob)
}

func readMeta(ctx context.Context, db *sql.DB) (Meta, int, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM catalog_meta`)
	if err != nil {
		return Meta{}, 0, errors.Wrap(err, "failed to read catalog meta")
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, 0, errors.Wrap(err, "failed to scan catalog meta")
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return Meta{}, 0, errors.Wrap(err, "failed to read catalog meta")
	}

	if values["format"] != storeFormat {
		return Meta{}, 0, fmt.Errorf("unsupported catalog format %q", values["format"])
	}

	dims, err := strconv.Atoi(values["dimensions"])
	if err != nil {
		return Meta{}, 0, errors.Wrap(err, "invalid catalog dimensions")
	}
	count, err := strconv.Atoi(values["job_count"])
	if err != nil {
		return Meta{}, 0, errors.Wrap(err, "invalid catalog job count")
	}
	builtAt, err := time.Parse(time.RFC3339Nano, values["built_at"])
	if err != nil {
		return Meta{}, 0, errors.Wrap(err, "invalid catalog build time")
	}

	return Meta{
		Version:    values["version"],
		BuiltAt:    builtAt,
		Model:      values["model"],
		Dimensions: dims,
		Backend:    values["backend"],
	}, count, nil
}

func readJobs(ctx context.Context, db *sql.DB, count int) ([]Job, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT row_id, source_id, title, company, company_url, location, contract_type, work_type,
			description, clean_description, combined_text, skills, experience_level, years_experience,
			url, posted_time, published_at, category
		FROM jobs ORDER BY row_id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read jobs")
	}
	defer rows.Close()

	jobs := make([]Job, 0, count)
	for rows.Next() {
		var (
			job    Job
			skills string
			level  string
		)
		err := rows.Scan(
			&job.ID, &job.SourceID, &job.Title, &job.Company, &job.CompanyURL, &job.Location, &job.ContractType, &job.WorkType,
			&job.Description, &job.CleanDescription, &job.CombinedText, &skills, &level, &job.YearsExperience,
			&job.URL, &job.PostedTime, &job.PublishedAt, &job.Category,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		if err := json.Unmarshal([]byte(skills), &job.Skills); err != nil {
			return nil, errors.Wrapf(err, "failed to decode skills of job %d", job.ID)
		}
		job.ExperienceLevel = extract.ParseLevel(level)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read jobs")
	}

	if len(jobs) != count {
		return nil, fmt.Errorf("catalog declares %d jobs but stores %d", count, len(jobs))
	}
	return jobs, nil
}

func readEmbeddings(ctx context.Context, db *sql.DB, count, dims int) ([][]float32, error) {
	rows, err := db.QueryContext(ctx, `SELECT row_id, vector FROM embeddings ORDER BY row_id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read embeddings")
	}
	defer rows.Close()

	vectors := make([][]float32, 0, count)
	for rows.Next() {
		var (
			row  int
			blob []byte
		)
		if err := rows.Scan(&row, &blob); err != nil {
			return nil, errors.Wrap(err, "failed to scan embedding")
		}
		if row != len(vectors) {
			return nil, fmt.Errorf("embedding rows are not contiguous at %d", row)
		}
		v, err := blobToFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("embedding %d: %w", row, err)
		}
		if len(v) != dims {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", row, len(v), dims)
		}
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read embeddings")
	}

	if len(vectors) != count {
		return nil, fmt.Errorf("catalog declares %d jobs but stores %d embeddings", count, len(vectors))
	}
	return vectors, nil
}

func float32sToBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func blobToFloat32s(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(blob))
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
