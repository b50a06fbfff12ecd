package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeights is returned by Weights.Validate.
var ErrInvalidWeights = errors.New("invalid scoring weights")

const weightTolerance = 1e-6

// Weights are the coefficients of the final score. MoroccoPriority is
// accepted in configuration but is not part of the weighted sum.
type Weights struct {
	SemanticSimilarity float64 `mapstructure:"semantic-similarity"`
	SkillsMatch        float64 `mapstructure:"skills-match"`
	LocationMatch      float64 `mapstructure:"location-match"`
	ContractTypeMatch  float64 `mapstructure:"contract-type-match"`
	ExperienceMatch    float64 `mapstructure:"experience-match"`
	MoroccoPriority    float64 `mapstructure:"morocco-priority"`
}

func DefaultWeights() Weights {
	return Weights{
		SemanticSimilarity: 0.40,
		SkillsMatch:        0.25,
		LocationMatch:      0.25,
		ContractTypeMatch:  0.05,
		ExperienceMatch:    0.05,
		MoroccoPriority:    0.10,
	}
}

// Sum adds the applied weights.
func (w Weights) Sum() float64 {
	return w.SemanticSimilarity + w.SkillsMatch + w.LocationMatch + w.ContractTypeMatch + w.ExperienceMatch
}

// Validate checks every weight is within [0,1] and the applied ones add up to 1.
func (w Weights) Validate() error {
	named := []struct {
		name  string
		value float64
	}{
		{"semantic-similarity", w.SemanticSimilarity},
		{"skills-match", w.SkillsMatch},
		{"location-match", w.LocationMatch},
		{"contract-type-match", w.ContractTypeMatch},
		{"experience-match", w.ExperienceMatch},
		{"morocco-priority", w.MoroccoPriority},
	}
	for _, n := range named {
		if math.IsNaN(n.value) || n.value < 0 || n.value > 1 {
			return fmt.Errorf("%w: %s = %v is outside [0, 1]", ErrInvalidWeights, n.name, n.value)
		}
	}

	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: applied weights sum to %v, want 1", ErrInvalidWeights, sum)
	}

	return nil
}
