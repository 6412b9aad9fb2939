// Package embedding provides the sentence-embedding capability used
// by the semantic similarity stage. The pipeline consumes the
// Provider interface; Client talks to an HTTP embedding service.
package embedding

import "context"

// Provider produces fixed-dimension, L2-normalized embedding vectors.
// Implementations load whatever model they need lazily; EnsureLoaded
// lets callers front-load that cost and fail fast.
type Provider interface {
	EnsureLoaded(ctx context.Context) error
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float64, error)
}
