package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
)

// Ollama calls a local Ollama server's /api/embed endpoint.
type Ollama struct {
	client    *resty.Client
	modelName string
	dims      int
}

func NewOllama(cfg Config) (*Ollama, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOllamaModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.MaxRetries > 0 {
		client.SetRetryCount(cfg.MaxRetries)
	}

	return &Ollama{client: client, modelName: model, dims: dims}, nil
}

func (o *Ollama) Dimensions() int { return o.dims }

func (o *Ollama) Model() string { return o.modelName }

func (o *Ollama) Encode(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *Ollama) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"model":      o.modelName,
			"input":      texts,
			"dimensions": o.dims,
		}).
		Post("/api/embed")
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if resp.IsError() {
		msg := gjson.GetBytes(resp.Body(), "error").String()
		return nil, fmt.Errorf("ollama embed: bad status %s: %s", resp.Status(), msg)
	}

	embeddings := gjson.GetBytes(resp.Body(), "embeddings").Array()
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d texts", len(embeddings), len(texts))
	}

	vectors := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		values := e.Array()
		v := make([]float32, len(values))
		for j, x := range values {
			v[j] = float32(x.Float())
		}
		vectors[i] = v
	}
	return vectors, nil
}
