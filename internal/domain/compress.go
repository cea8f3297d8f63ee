package domain

import "context"

// CompressedContext is a token-bounded text blob distilled from a chunk set.
type CompressedContext struct {
	Content    string
	TokenCount int
}

// ContextCompressor reduces a chunk set to a compact context blob for
// generation. Compression failure is non-fatal: callers fall back to the raw
// concatenation of chunk contents.
type ContextCompressor interface {
	Compress(ctx context.Context, query string, results []SearchResult, complexity *ComplexityAnalysis) (*CompressedContext, error)
}
