package domain

import "context"

// VectorEncoder turns query text into embedding vectors.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}
