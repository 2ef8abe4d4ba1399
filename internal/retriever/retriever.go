// Package retriever provides retrieval strategy adapters. Each strategy
// turns a query into a ranked candidate list for fusion; strategies only
// query existing indexes, they do not ingest or manage them.
package retriever

import (
	"context"

	"github.com/fusorlabs/fusor/internal/fusion"
)

// Retriever is a single retrieval strategy.
type Retriever interface {
	// Name identifies the strategy in logs and fused metadata.
	Name() string

	// Retrieve returns up to topK results ranked best-first. Scores are on
	// the strategy's own scale and are only comparable within the returned
	// list.
	Retrieve(ctx context.Context, query string, topK int) ([]fusion.Result, error)
}
