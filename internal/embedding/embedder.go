package embedding

import "context"

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dim reports the embedding dimensionality.
	Dim() int
}
