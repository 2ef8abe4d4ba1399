// Package rewrite produces query variants for multi-query retrieval.
// Running each variant through every retrieval strategy before fusion
// rewards documents that match the question however it is phrased.
package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/fusorlabs/fusor/internal/ollama"
)

// Rewriter produces alternative phrasings of a query. The original query is
// always the first element of the returned slice.
type Rewriter interface {
	Rewrite(ctx context.Context, query string, n int) ([]string, error)
}

// Static is a passthrough rewriter: the original query, no variants.
type Static struct{}

// Rewrite returns the query unchanged.
func (Static) Rewrite(_ context.Context, query string, _ int) ([]string, error) {
	return []string{query}, nil
}

// ModelRewriter generates variants with an LLM.
type ModelRewriter struct {
	client *ollama.Client
	model  string
}

// ModelRewriterOption is a functional option for configuring ModelRewriter.
type ModelRewriterOption func(*ModelRewriter)

// WithModel sets the model used for rewriting.
func WithModel(model string) ModelRewriterOption {
	return func(r *ModelRewriter) {
		r.model = model
	}
}

// NewModelRewriter creates an LLM-backed query rewriter.
func NewModelRewriter(client *ollama.Client, opts ...ModelRewriterOption) *ModelRewriter {
	r := &ModelRewriter{
		client: client,
		model:  ollama.DefaultModel,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Rewrite asks the model for n alternative phrasings and returns the
// original query followed by up to n parsed variants. A model failure is
// returned rather than degraded to the original query alone; the caller
// decides whether rewriting is required or best-effort.
func (r *ModelRewriter) Rewrite(ctx context.Context, query string, n int) ([]string, error) {
	if n <= 0 {
		return []string{query}, nil
	}

	prompt := fmt.Sprintf(`Rewrite the following search query %d different ways.
Keep the meaning, vary the wording. Output one rewrite per line, numbered.

Query: %s`, n, query)

	response, err := r.client.Generate(ctx, prompt, ollama.GenerateOptions{
		Model:       r.model,
		Temperature: 0,
		MaxTokens:   256,
	})
	if err != nil {
		return nil, fmt.Errorf("query rewriting failed: %w", err)
	}

	return append([]string{query}, parseVariants(response, query, n)...), nil
}

// parseVariants extracts up to n variants from numbered or bulleted model
// output, skipping blanks and duplicates of the original query.
func parseVariants(response, original string, n int) []string {
	seen := map[string]bool{
		normalize(original): true,
	}

	var variants []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789")
		line = strings.TrimLeft(line, ".)- ")
		line = strings.Trim(line, `"`)
		if line == "" {
			continue
		}

		if seen[normalize(line)] {
			continue
		}
		seen[normalize(line)] = true

		variants = append(variants, line)
		if len(variants) == n {
			break
		}
	}

	return variants
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
