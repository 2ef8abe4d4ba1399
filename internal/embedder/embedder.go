// Package embedder provides query-side text embedding for dense retrieval.
package embedder

import "context"

// Embedder turns query text into a dense vector.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// KnownDimensions maps embedding model names to their vector dimensions,
// used to default configuration for common models.
var KnownDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
}

// DimensionFor returns the dimension for a known model, or fallback for an
// unknown one.
func DimensionFor(modelName string, fallback int) int {
	if d, ok := KnownDimensions[modelName]; ok {
		return d
	}
	return fallback
}
