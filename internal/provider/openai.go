package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/timhaintz/promptembed/pkg/types"
)

// Default model configuration
const (
	DefaultModel     = "text-embedding-3-large"
	DefaultDimension = 3072

	SmallModel     = "text-embedding-3-small"
	SmallDimension = 1536
)

// OpenAI implements Provider using the OpenAI embeddings API.
type OpenAI struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAI creates an OpenAI-backed provider.
func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key not set")
	}
	return newOpenAI(openai.NewClient(apiKey), model)
}

// NewOpenAIWithBaseURL creates a provider pointed at an alternate endpoint.
// Used by tests against an httptest server.
func NewOpenAIWithBaseURL(apiKey, model, baseURL string) (*OpenAI, error) {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return newOpenAI(openai.NewClientWithConfig(cfg), model)
}

func newOpenAI(client *openai.Client, model string) (*OpenAI, error) {
	if model == "" {
		model = DefaultModel
	}
	dim := DefaultDimension
	if model == SmallModel {
		dim = SmallDimension
	}
	return &OpenAI{client: client, model: model, dim: dim}, nil
}

// Embed generates an embedding for a single text.
func (o *OpenAI) Embed(ctx context.Context, text string) (*Embedding, error) {
	if text == "" {
		return nil, &types.ProviderError{Class: types.ClientError, Err: types.ErrEmptyText}
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, classify(err)
	}

	if len(resp.Data) == 0 {
		return nil, &types.ProviderError{
			Class: types.ServerError,
			Err:   errors.New("no embedding data returned"),
		}
	}

	raw := resp.Data[0].Embedding
	vector := make([]float32, len(raw))
	for i := range raw {
		vector[i] = float32(raw[i])
	}
	if len(vector) != o.dim {
		return nil, &types.ProviderError{
			Class: types.ServerError,
			Err: fmt.Errorf("%w: got %d, want %d",
				types.ErrDimensionMismatch, len(vector), o.dim),
		}
	}

	return &Embedding{
		Vector: vector,
		Tokens: resp.Usage.TotalTokens,
	}, nil
}

func (o *OpenAI) Dimension() int {
	return o.dim
}

func (o *OpenAI) Model() string {
	return o.model
}

// classify maps an OpenAI client error onto the retry-policy taxonomy.
// Transport-level failures (no HTTP status) are treated as server errors:
// a flaky network deserves the same backoff as a 5xx.
func classify(err error) *types.ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return &types.ProviderError{Class: types.RateLimited, Status: apiErr.HTTPStatusCode, Err: err}
		case apiErr.HTTPStatusCode >= 500:
			return &types.ProviderError{Class: types.ServerError, Status: apiErr.HTTPStatusCode, Err: err}
		default:
			return &types.ProviderError{Class: types.ClientError, Status: apiErr.HTTPStatusCode, Err: err}
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.HTTPStatusCode == http.StatusTooManyRequests:
			return &types.ProviderError{Class: types.RateLimited, Status: reqErr.HTTPStatusCode, Err: err}
		case reqErr.HTTPStatusCode >= 500:
			return &types.ProviderError{Class: types.ServerError, Status: reqErr.HTTPStatusCode, Err: err}
		default:
			return &types.ProviderError{Class: types.ClientError, Status: reqErr.HTTPStatusCode, Err: err}
		}
	}

	return &types.ProviderError{Class: types.ServerError, Err: err}
}
