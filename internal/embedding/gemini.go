package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/job-recommender/internal/utils"
)

const (
	defaultGeminiModel = "gemini-embedding-001"
	// Gemini accepts at most this many contents per EmbedContent call.
	geminiMaxBatch = 100
	geminiTaskType = "SEMANTIC_SIMILARITY"

	retryBaseDelay = time.Second
	retryMaxDelay  = 30 * time.Second
)

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Gemini wraps the Google GenAI client for text embeddings.
type Gemini struct {
	models     contentEmbedder
	logger     *zap.Logger
	modelName  string
	dims       int
	maxRetries int
	timeout    time.Duration
	baseDelay  time.Duration
}

// NewGemini creates a provider configured for the Gemini API backend.
func NewGemini(ctx context.Context, logger *zap.Logger, cfg Config) (*Gemini, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGemini(client.Models, logger, cfg), nil
}

func newGemini(models contentEmbedder, logger *zap.Logger, cfg Config) *Gemini {
	if logger == nil {
		logger = zap.NewNop()
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	return &Gemini{
		models:     models,
		logger:     logger,
		modelName:  model,
		dims:       dims,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
		baseDelay:  retryBaseDelay,
	}
}

func (g *Gemini) Dimensions() int { return g.dims }

func (g *Gemini) Model() string { return g.modelName }

func (g *Gemini) Encode(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *Gemini) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiMaxBatch {
		end := start + geminiMaxBatch
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := g.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (g *Gemini) embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	dims := int32(g.dims)
	cfg := &genai.EmbedContentConfig{
		TaskType:             geminiTaskType,
		OutputDimensionality: &dims,
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			delay := utils.Backoff(attempt, g.baseDelay, retryMaxDelay)
			g.logger.Debug("retrying gemini embedding",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := utils.WaitFor(ctx, delay); err != nil {
				return nil, fmt.Errorf("wait before retry: %w", err)
			}
		}

		resp, err := g.call(ctx, contents, cfg)
		if err == nil {
			return g.vectors(resp, len(texts))
		}

		lastErr = err
		if !isRetryable(err) {
			return nil, fmt.Errorf("embed content: %w", err)
		}
	}

	return nil, fmt.Errorf("embed content: max retries (%d) exceeded: %w", g.maxRetries, lastErr)
}

func (g *Gemini) call(ctx context.Context, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.models.EmbedContent(ctx, g.modelName, contents, cfg)
}

func (g *Gemini) vectors(resp *genai.EmbedContentResponse, want int) ([][]float32, error) {
	if resp == nil || len(resp.Embeddings) != want {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini api returned %d embeddings for %d texts", got, want)
	}

	out := make([][]float32, want)
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini api returned empty embedding %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return retryableStatus(apiErrPtr.Code)
	}

	return errors.Is(err, context.DeadlineExceeded)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
