package recommend

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/spigell/job-recommender/internal/catalog"
	"github.com/spigell/job-recommender/internal/extract"
	"github.com/spigell/job-recommender/internal/index"
	"github.com/spigell/job-recommender/internal/scoring"
)

const dims = 4

type stubProvider struct {
	vec   []float32
	err   error
	block bool
}

func (s *stubProvider) Encode(ctx context.Context, _ string) ([]float32, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return append([]float32(nil), s.vec...), nil
}

func (s *stubProvider) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := s.Encode(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *stubProvider) Dimensions() int { return dims }
func (s *stubProvider) Model() string   { return "stub" }

type spyIndex struct {
	index.Index
	err error

	mu sync.Mutex
	ks []int
}

func (s *spyIndex) Search(ctx context.Context, q []float32, k int) ([]index.Hit, error) {
	s.mu.Lock()
	s.ks = append(s.ks, k)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return s.Index.Search(ctx, q, k)
}

func (s *spyIndex) requested() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.ks...)
}

func sampleJobs() ([]catalog.Job, [][]float32) {
	jobs := []catalog.Job{
		{Title: "Data Engineer", Location: "Casablanca, Morocco", ContractType: "Full-time", Skills: []string{"Python", "SQL"}, ExperienceLevel: extract.LevelMid, CleanDescription: "Build pipelines."},
		{Title: "Backend Developer", Location: "Berlin", ContractType: "Full-time", Skills: []string{"Java", "SQL"}, ExperienceLevel: extract.LevelSenior},
		{Title: "ML Engineer", Location: "Remote", ContractType: "Contract", Skills: []string{"Python", "TensorFlow"}, ExperienceLevel: extract.LevelJunior},
		{Title: "Analyst", Location: "Rabat, Morocco", ContractType: "Part-time", Skills: []string{"SQL", "Tableau"}, ExperienceLevel: extract.LevelUnknown},
		{Title: "Manager", Location: "Paris", ContractType: "Full-time", Skills: nil, ExperienceLevel: extract.LevelManager},
	}
	for i := range jobs {
		jobs[i].ID = i
	}

	vectors := [][]float32{
		{1, 0, 0, 0},
		{0.8, 0.6, 0, 0},
		{0, 1, 0, 0},
		{0.6, 0, 0.8, 0},
		{0, 0, 0, 1},
	}

	return jobs, vectors
}

func newTestCatalog(t *testing.T, version string, searchErr error) (*catalog.Catalog, *spyIndex) {
	t.Helper()

	jobs, vectors := sampleJobs()
	flat, err := index.NewFlat(vectors, 1)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	spy := &spyIndex{Index: flat, err: searchErr}

	cat, err := catalog.New(catalog.Meta{Version: version, Dimensions: dims, Backend: index.BackendFlat}, jobs, vectors, spy, nil)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	return cat, spy
}

func newTestEngine(t *testing.T, provider *stubProvider, searchErr error, opts ...Option) (*Engine, *spyIndex) {
	t.Helper()

	cat, spy := newTestCatalog(t, "v1", searchErr)
	scorer, err := scoring.New(scoring.DefaultWeights())
	if err != nil {
		t.Fatalf("scoring.New: %v", err)
	}

	return NewEngine(catalog.NewHolder(cat), provider, scorer, opts...), spy
}

func queryVector() *stubProvider {
	return &stubProvider{vec: []float32{1, 0, 0, 0}}
}

func TestRecommendOverfetchIsClampedToCorpus(t *testing.T) {
	t.Parallel()

	engine, spy := newTestEngine(t, queryVector(), nil)

	results, err := engine.Recommend(context.Background(), Query{Profile: "Python and SQL engineer", TopK: 10})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	if got := spy.requested(); len(got) != 1 || got[0] != 5 {
		t.Fatalf("search requested %v, want [5]", got)
	}
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
}

func TestRecommendBoundsAndOrdering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		query    Query
		wantK    int
		maxItems int
	}{
		{
			name:     "top two",
			query:    Query{Profile: "Python SQL", TopK: 2},
			wantK:    4,
			maxItems: 2,
		},
		{
			name:     "min score filters",
			query:    Query{Profile: "Python SQL", TopK: 5, MinScore: 0.7},
			wantK:    5,
			maxItems: 5,
		},
		{
			name:     "default top k",
			query:    Query{Keywords: []string{"Python"}},
			wantK:    5,
			maxItems: DefaultTopK,
		},
		{
			name: "preferences",
			query: Query{
				Profile:     "Python SQL",
				TopK:        3,
				Preferences: scoring.Preferences{Location: "Morocco", ContractType: "Full-time", ExperienceLevel: "mid"},
			},
			wantK:    5,
			maxItems: 3,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine, spy := newTestEngine(t, queryVector(), nil)

			results, err := engine.Recommend(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Recommend: %v", err)
			}

			if got := spy.requested(); len(got) != 1 || got[0] != tt.wantK {
				t.Fatalf("search requested %v, want [%d]", got, tt.wantK)
			}
			if len(results) > tt.maxItems {
				t.Fatalf("got %d results, want at most %d", len(results), tt.maxItems)
			}
			if !sort.SliceIsSorted(results, func(i, j int) bool { return results[i].Score > results[j].Score }) {
				t.Fatalf("results not sorted by score: %+v", results)
			}
			for _, r := range results {
				if r.Score < tt.query.MinScore {
					t.Fatalf("result %d has score %v below %v", r.Job.ID, r.Score, tt.query.MinScore)
				}
				if r.Score < 0 || r.Score > 1 {
					t.Fatalf("result %d has score %v outside [0,1]", r.Job.ID, r.Score)
				}
			}
		})
	}
}

func TestRecommendTopResult(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t, queryVector(), nil)

	results, err := engine.Recommend(context.Background(), Query{Profile: "Python SQL", TopK: 1})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	top := results[0]
	if top.Job.ID != 0 {
		t.Fatalf("top job = %d, want 0", top.Job.ID)
	}
	if top.Breakdown.Semantic != 1 || top.Breakdown.Skills != 1 || top.Breakdown.SkillsMatched != 2 {
		t.Fatalf("unexpected breakdown %+v", top.Breakdown)
	}
	if top.DescriptionPreview != "Build pipelines...." {
		t.Fatalf("preview = %q", top.DescriptionPreview)
	}
}

func TestRecommendStageErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	tests := []struct {
		name      string
		provider  *stubProvider
		searchErr error
		stage     string
	}{
		{name: "embedding fails", provider: &stubProvider{err: boom}, stage: StageEmbed},
		{name: "search fails", provider: queryVector(), searchErr: boom, stage: StageSearch},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine, _ := newTestEngine(t, tt.provider, tt.searchErr)

			results, err := engine.Recommend(context.Background(), Query{Profile: "Python"})
			if results != nil {
				t.Fatalf("expected nil results on failure, got %+v", results)
			}

			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("expected StageError, got %v", err)
			}
			if se.Stage != tt.stage {
				t.Fatalf("stage = %q, want %q", se.Stage, tt.stage)
			}
			if !errors.Is(err, boom) {
				t.Fatalf("expected wrapped cause, got %v", err)
			}
			if IsTimeout(err) {
				t.Fatal("plain failure reported as timeout")
			}
		})
	}
}

func TestRecommendEmbedTimeout(t *testing.T) {
	t.Parallel()

	engine, spy := newTestEngine(t, &stubProvider{block: true}, nil,
		WithConfig(Config{EmbedTimeout: 10 * time.Millisecond}))

	_, err := engine.Recommend(context.Background(), Query{Profile: "Python"})
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if len(spy.requested()) != 0 {
		t.Fatal("search must not run after an embedding failure")
	}
}

func TestRecommendValidation(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t, queryVector(), nil)
	if _, err := engine.Recommend(context.Background(), Query{Keywords: []string{" "}}); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}

	scorer, _ := scoring.New(scoring.DefaultWeights())
	empty := NewEngine(nil, queryVector(), scorer)
	if _, err := empty.Recommend(context.Background(), Query{Profile: "Python"}); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("expected ErrNoCatalog, got %v", err)
	}
}

func TestSimilar(t *testing.T) {
	t.Parallel()

	engine, spy := newTestEngine(t, queryVector(), nil)

	for id := 0; id < 5; id++ {
		for _, k := range []int{1, 2, 4, 10} {
			out, err := engine.Similar(context.Background(), id, k)
			if err != nil {
				t.Fatalf("Similar(%d, %d): %v", id, k, err)
			}
			if len(out) > k {
				t.Fatalf("Similar(%d, %d) returned %d items", id, k, len(out))
			}
			for _, s := range out {
				if s.Job.ID == id {
					t.Fatalf("Similar(%d, %d) returned the job itself", id, k)
				}
			}
			if !sort.SliceIsSorted(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity }) {
				t.Fatalf("Similar(%d, %d) not sorted", id, k)
			}
		}
	}

	for _, k := range spy.requested() {
		if k > 5 {
			t.Fatalf("search requested %d rows from a 5-job catalog", k)
		}
	}

	out, err := engine.Similar(context.Background(), 0, 1)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(out) != 1 || out[0].Job.ID != 1 {
		t.Fatalf("nearest to job 0 = %+v, want job 1", out)
	}
}

func TestSimilarNonPositiveK(t *testing.T) {
	t.Parallel()

	engine, spy := newTestEngine(t, queryVector(), nil)

	for _, k := range []int{0, -3} {
		out, err := engine.Similar(context.Background(), 0, k)
		if err != nil {
			t.Fatalf("Similar(0, %d): %v", k, err)
		}
		if len(out) != 0 {
			t.Fatalf("Similar(0, %d) returned %d items, want none", k, len(out))
		}
	}
	if got := spy.requested(); len(got) != 0 {
		t.Fatalf("search ran for k <= 0: %v", got)
	}

	if _, err := engine.Similar(context.Background(), 9, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown id, got %v", err)
	}
}

func reversedCatalog(t *testing.T, version string) *catalog.Catalog {
	t.Helper()

	jobs, vectors := sampleJobs()
	for i, j := 0, len(jobs)-1; i < j; i, j = i+1, j-1 {
		jobs[i], jobs[j] = jobs[j], jobs[i]
		vectors[i], vectors[j] = vectors[j], vectors[i]
	}
	for i := range jobs {
		jobs[i].ID = i
	}

	flat, err := index.NewFlat(vectors, 1)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	cat, err := catalog.New(catalog.Meta{Version: version, Dimensions: dims, Backend: index.BackendFlat}, jobs, vectors, flat, nil)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

func TestPinnedLookupsAfterSwap(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t, queryVector(), nil)
	ctx := context.Background()

	results, err := engine.Recommend(ctx, Query{Profile: "Python and SQL engineer", TopK: 3})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	top := results[0]
	if top.CatalogVersion != "v1" || top.Job.ID != 0 || top.Job.Title != "Data Engineer" {
		t.Fatalf("unexpected top result %+v", top)
	}

	job, err := engine.JobDetailsAt(top.CatalogVersion, top.Job.ID)
	if err != nil || job.Title != "Data Engineer" {
		t.Fatalf("JobDetailsAt before swap = %v, %v", job, err)
	}

	engine.Swap(reversedCatalog(t, "v2"))

	_, err = engine.JobDetailsAt(top.CatalogVersion, top.Job.ID)
	if !errors.Is(err, ErrStale) {
		t.Fatalf("JobDetailsAt after swap: expected ErrStale, got %v", err)
	}
	var stale *StaleError
	if !errors.As(err, &stale) || stale.Want != "v1" || stale.Active != "v2" {
		t.Fatalf("unexpected StaleError %+v", stale)
	}

	if _, err := engine.SimilarAt(ctx, top.CatalogVersion, top.Job.ID, 2); !errors.Is(err, ErrStale) {
		t.Fatalf("SimilarAt after swap: expected ErrStale, got %v", err)
	}

	refreshed, err := engine.Recommend(ctx, Query{Profile: "Python and SQL engineer", TopK: 3})
	if err != nil {
		t.Fatalf("Recommend after swap: %v", err)
	}
	if refreshed[0].CatalogVersion != "v2" || refreshed[0].Job.Title != "Data Engineer" || refreshed[0].Job.ID != 4 {
		t.Fatalf("unexpected refreshed top result %+v", refreshed[0])
	}
	job, err = engine.JobDetailsAt(refreshed[0].CatalogVersion, refreshed[0].Job.ID)
	if err != nil || job.Title != "Data Engineer" {
		t.Fatalf("JobDetailsAt on refreshed result = %v, %v", job, err)
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t, queryVector(), nil)

	_, err := engine.Similar(context.Background(), 7, 3)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Similar: expected ErrNotFound, got %v", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.ID != 7 || nf.Len != 5 {
		t.Fatalf("unexpected NotFoundError %+v", nf)
	}
	if want := "job 7 not found: valid ids are 0..4"; err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}

	if _, err := engine.JobDetails(-1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("JobDetails: expected ErrNotFound, got %v", err)
	}

	job, err := engine.JobDetails(3)
	if err != nil {
		t.Fatalf("JobDetails: %v", err)
	}
	if job.Title != "Analyst" {
		t.Fatalf("JobDetails(3).Title = %q", job.Title)
	}
}

func TestStatisticsAndSwap(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t, queryVector(), nil)

	stats, err := engine.Statistics(2)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.TotalJobs != 5 || stats.Version != "v1" {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(stats.TopSkills) != 2 || stats.TopSkills[0].Skill != "SQL" || stats.TopSkills[0].Count != 3 {
		t.Fatalf("unexpected top skills %+v", stats.TopSkills)
	}

	next, _ := newTestCatalog(t, "v2", nil)
	prev := engine.Swap(next)
	if prev == nil || prev.Version() != "v1" {
		t.Fatalf("Swap returned %v, want v1", prev)
	}
	if engine.Catalog().Version() != "v2" {
		t.Fatalf("active catalog = %q, want v2", engine.Catalog().Version())
	}
}

func TestOverfetch(t *testing.T) {
	t.Parallel()

	tests := []struct{ k, n, want int }{
		{10, 5, 5},
		{10, 100, 20},
		{3, 6, 6},
		{1, 0, 0},
	}
	for _, tt := range tests {
		if got := overfetch(tt.k, tt.n); got != tt.want {
			t.Errorf("overfetch(%d, %d) = %d, want %d", tt.k, tt.n, got, tt.want)
		}
	}
}

func TestTopKClamp(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, queryVector(), nil, WithConfig(Config{TopK: 5, MaxTopK: 8}))
	for _, tt := range []struct{ in, want int }{{0, 5}, {-1, 5}, {3, 3}, {20, 8}} {
		if got := engine.topK(tt.in); got != tt.want {
			t.Errorf("topK(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
