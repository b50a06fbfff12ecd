// Package embedding turns text into fixed-dimension unit vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
	ProviderHashing = "hashing"

	DefaultDimensions = 512
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Provider encodes text into vectors. Implementations must be deterministic
// for a fixed model and safe for concurrent use.
type Provider interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// Config selects and configures a provider.
type Config struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	BaseURL    string        `mapstructure:"base-url"`
	APIKey     string        `mapstructure:"-"`
	MaxRetries int           `mapstructure:"max-retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// New builds the configured provider wrapped with Normalized.
func New(ctx context.Context, logger *zap.Logger, cfg Config) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}

	var (
		p   Provider
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini:
		p, err = NewGemini(ctx, logger, cfg)
	case ProviderOpenAI:
		p, err = NewOpenAI(cfg)
	case ProviderOllama:
		p, err = NewOllama(cfg)
	case ProviderHashing, "":
		p = NewHashing(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", cfg.Provider, err)
	}

	return Normalized(p), nil
}

// Normalize scales v to unit L2 length in place and returns it. Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

type normalized struct {
	Provider
}

// Normalized wraps p so every returned vector has unit length and the declared dimension.
func Normalized(p Provider) Provider {
	if n, ok := p.(*normalized); ok {
		return n
	}
	return &normalized{Provider: p}
}

func (n *normalized) Encode(ctx context.Context, text string) ([]float32, error) {
	v, err := n.Provider.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := n.check(v); err != nil {
		return nil, err
	}
	return Normalize(v), nil
}

func (n *normalized) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := n.Provider.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if err := n.check(v); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		Normalize(v)
	}
	return vectors, nil
}

func (n *normalized) check(v []float32) error {
	if want := n.Dimensions(); want > 0 && len(v) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), want)
	}
	return nil
}
