package provider

import (
	"context"
)

// Embedding is one provider result: a fixed-length vector plus the token
// usage the call consumed.
type Embedding struct {
	Vector []float32
	Tokens int
}

// Provider maps one text to a fixed-dimension vector. Implementations fail
// with a *types.ProviderError so the caller's retry policy can distinguish
// rate-limit, server, and client failures.
type Provider interface {
	Embed(ctx context.Context, text string) (*Embedding, error)

	// Dimension returns the vector length this provider produces.
	Dimension() int

	// Model returns the model identifier recorded in chunk metadata.
	Model() string
}
