package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilRecorder(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.ObserveRequest("recommend", time.Second, nil)
	r.StageError("embed", true)
	r.Candidates(10)
	r.CatalogLoaded("v1", 3)
	r.BuildStep("dedupe", 1, 1)
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Fatalf("WriteTextfile on nil recorder: %v", err)
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObserveRequest("recommend", 20*time.Millisecond, nil)
	r.ObserveRequest("recommend", 30*time.Millisecond, errors.New("boom"))
	r.ObserveRequest("similar", time.Millisecond, nil)
	r.StageError("search", false)
	r.CatalogLoaded("old", 10)
	r.CatalogLoaded("new", 12)
	r.BuildStep("min_length", 8, 2)

	if got := testutil.ToFloat64(r.requests.WithLabelValues("recommend", StatusError)); got != 1 {
		t.Fatalf("recommend errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.requests.WithLabelValues("recommend", StatusSuccess)); got != 1 {
		t.Fatalf("recommend successes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.stageErrors.WithLabelValues("search", "false")); got != 1 {
		t.Fatalf("search stage errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.catalogJobs); got != 1 {
		t.Fatalf("catalog gauge series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(r.catalogJobs.WithLabelValues("new")); got != 12 {
		t.Fatalf("catalog jobs = %v, want 12", got)
	}
	if got := testutil.ToFloat64(r.buildJobs.WithLabelValues("min_length", "dropped")); got != 2 {
		t.Fatalf("dropped = %v, want 2", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObserveRequest("stats", time.Millisecond, nil)

	path := filepath.Join(t.TempDir(), "job_recommender.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `job_recommender_requests_total{operation="stats",status="success"} 1`) {
		t.Fatalf("unexpected textfile contents:\n%s", data)
	}
}
