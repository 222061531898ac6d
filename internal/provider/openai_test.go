package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timhaintz/promptembed/pkg/types"
)

// embeddingServer returns an httptest server speaking the embeddings API.
// status controls the response; 200 returns a dim-length vector.
func embeddingServer(t *testing.T, status int, dim int, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			*calls++
		}
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{
					"message": "simulated failure",
					"type":    "server_error",
				},
			})
			return
		}
		resp := map[string]any{
			"object": "list",
			"model":  DefaultModel,
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": make([]float32, dim)},
			},
			"usage": map[string]any{"prompt_tokens": 6, "total_tokens": 6},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestProvider(t *testing.T, server *httptest.Server) *OpenAI {
	t.Helper()
	p, err := NewOpenAIWithBaseURL("test-key", DefaultModel, server.URL+"/v1")
	require.NoError(t, err)
	return p
}

func TestOpenAIEmbed(t *testing.T) {
	calls := 0
	server := embeddingServer(t, http.StatusOK, DefaultDimension, &calls)
	defer server.Close()

	p := newTestProvider(t, server)
	emb, err := p.Embed(context.Background(), "Translate French to English:")
	require.NoError(t, err)

	assert.Len(t, emb.Vector, DefaultDimension)
	assert.Equal(t, 6, emb.Tokens)
	assert.Equal(t, 1, calls)
}

func TestOpenAIEmbedEmptyText(t *testing.T) {
	calls := 0
	server := embeddingServer(t, http.StatusOK, DefaultDimension, &calls)
	defer server.Close()

	p := newTestProvider(t, server)
	_, err := p.Embed(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrEmptyText)
	assert.False(t, types.IsRetryable(err))
	assert.Equal(t, 0, calls, "empty text must not reach the provider")
}

func TestOpenAIEmbedWrongDimension(t *testing.T) {
	server := embeddingServer(t, http.StatusOK, 5, nil)
	defer server.Close()

	p := newTestProvider(t, server)
	_, err := p.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestOpenAIErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantClass types.Classification
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantClass: types.RateLimited},
		{name: "server error", status: http.StatusInternalServerError, wantClass: types.ServerError},
		{name: "bad gateway", status: http.StatusBadGateway, wantClass: types.ServerError},
		{name: "auth failure", status: http.StatusUnauthorized, wantClass: types.ClientError},
		{name: "bad request", status: http.StatusBadRequest, wantClass: types.ClientError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := embeddingServer(t, tt.status, 0, nil)
			defer server.Close()

			p := newTestProvider(t, server)
			_, err := p.Embed(context.Background(), "text")
			require.Error(t, err)

			var pe *types.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantClass, pe.Class)
			assert.Equal(t, tt.status, pe.Status)
		})
	}
}

func TestOpenAITransportErrorIsRetryable(t *testing.T) {
	server := embeddingServer(t, http.StatusOK, DefaultDimension, nil)
	server.Close() // connection refused from here on

	p := newTestProvider(t, server)
	_, err := p.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))
}

func TestNewOpenAIDefaults(t *testing.T) {
	p, err := NewOpenAI("key", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.Model())
	assert.Equal(t, DefaultDimension, p.Dimension())

	small, err := NewOpenAI("key", SmallModel)
	require.NoError(t, err)
	assert.Equal(t, SmallDimension, small.Dimension())

	_, err = NewOpenAI("", DefaultModel)
	assert.Error(t, err)
}
