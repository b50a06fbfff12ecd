// Package scoring re-ranks retrieved jobs by combining semantic similarity
// with skill overlap and the candidate's preferences.
package scoring

import (
	"strings"

	"github.com/spigell/job-recommender/internal/catalog"
	"github.com/spigell/job-recommender/internal/extract"
)

var remoteKeywords = []string{"remote", "télétravail", "distance"}

// Preferences are optional filters. Empty fields mean no preference.
type Preferences struct {
	Location        string `mapstructure:"location"`
	ContractType    string `mapstructure:"contract-type"`
	ExperienceLevel string `mapstructure:"experience-level"`
}

// Breakdown is the final score and the sub-scores it was built from.
type Breakdown struct {
	Final         float64 `json:"score"`
	Semantic      float64 `json:"semantic_similarity"`
	Skills        float64 `json:"skills_score"`
	Location      float64 `json:"location_score"`
	Contract      float64 `json:"contract_score"`
	Experience    float64 `json:"experience_score"`
	SkillsMatched int     `json:"skills_match_count"`
	SkillsRatio   float64 `json:"skills_match_ratio"`
}

type Scorer struct {
	weights Weights
}

// New validates weights and returns a Scorer using them.
func New(weights Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights}, nil
}

func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score computes the breakdown for one job. semantic is clamped to [0, 1].
func (s *Scorer) Score(job *catalog.Job, candidateSkills []string, semantic float64, prefs Preferences) Breakdown {
	b := Breakdown{
		Semantic:   clamp01(semantic),
		Location:   LocationScore(job.Location, prefs.Location),
		Contract:   ContractScore(job.ContractType, prefs.ContractType),
		Experience: ExperienceScore(prefs.ExperienceLevel, job.ExperienceLevel),
	}
	b.Skills, b.SkillsMatched = skillsOverlap(candidateSkills, job.Skills)
	b.SkillsRatio = b.Skills

	w := s.weights
	b.Final = w.SemanticSimilarity*b.Semantic +
		w.SkillsMatch*b.Skills +
		w.LocationMatch*b.Location +
		w.ContractTypeMatch*b.Contract +
		w.ExperienceMatch*b.Experience

	return b
}

// SkillsScore is the Jaccard similarity of the two skill sets, 0 when either is empty.
func SkillsScore(candidate, job []string) float64 {
	score, _ := skillsOverlap(candidate, job)
	return score
}

func skillsOverlap(candidate, job []string) (float64, int) {
	if len(candidate) == 0 || len(job) == 0 {
		return 0, 0
	}

	set := make(map[string]struct{}, len(candidate))
	for _, s := range candidate {
		set[s] = struct{}{}
	}

	union := len(set)
	intersection := 0
	seen := make(map[string]struct{}, len(job))
	for _, s := range job {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if _, ok := set[s]; ok {
			intersection++
		} else {
			union++
		}
	}

	return float64(intersection) / float64(union), intersection
}

// LocationScore compares a job location with the preferred one.
func LocationScore(jobLocation, preference string) float64 {
	pref := strings.ToLower(strings.TrimSpace(preference))
	if pref == "" {
		return 1.0
	}

	loc := strings.ToLower(strings.TrimSpace(jobLocation))
	switch {
	case strings.Contains(loc, pref) || strings.Contains(pref, loc):
		return 1.0
	case containsAny(loc, remoteKeywords):
		return 0.7
	default:
		return 0.1
	}
}

// ContractScore is 1 when the preference is contained in the job's contract type, else 0.5.
func ContractScore(jobContract, preference string) float64 {
	pref := strings.ToLower(strings.TrimSpace(preference))
	if pref == "" {
		return 1.0
	}
	if strings.Contains(strings.ToLower(jobContract), pref) {
		return 1.0
	}
	return 0.5
}

// ExperienceScore compares the candidate's level with the job's. Unknown or
// unrecognized levels on either side score 0.5.
func ExperienceScore(candidate string, job extract.Level) float64 {
	if strings.TrimSpace(candidate) == "" {
		return 1.0
	}

	cand, okCand := extract.ParseLevel(candidate).Ordinal()
	req, okJob := job.Ordinal()
	if !okCand || !okJob {
		return 0.5
	}

	switch {
	case cand == req:
		return 1.0
	case cand > req:
		return 0.8
	case req-cand == 1:
		return 0.4
	default:
		return 0.1
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
