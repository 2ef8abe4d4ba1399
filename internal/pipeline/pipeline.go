// Package pipeline wires query rewriting, multi-strategy retrieval, rank
// fusion, and pairwise reranking into a single retrieval call.
//
// Data flow: query -> variants -> one ranked list per (strategy, variant)
// -> fused top-M candidates -> reranked top-K. The pipeline holds no
// per-query state; concurrent Search calls are independent.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fusorlabs/fusor/internal/fusion"
	"github.com/fusorlabs/fusor/internal/rerank"
	"github.com/fusorlabs/fusor/internal/retriever"
	"github.com/fusorlabs/fusor/internal/rewrite"
)

const (
	// DefaultFetchDepth is how many results each strategy returns per
	// variant. Deeper than the final topK so fusion has consensus signal
	// to work with.
	DefaultFetchDepth = 20

	// DefaultCandidateLimit is the fused top-M handed to the reranker.
	// The pairwise scorer is the expensive stage, so M stays small.
	DefaultCandidateLimit = 15
)

// Pipeline runs the full retrieval flow against a fixed set of strategies.
type Pipeline struct {
	retrievers []retriever.Retriever
	score      rerank.ScoreFunc
	rewriter   rewrite.Rewriter
	logger     *slog.Logger

	fusionK         int
	weights         []float64 // nil selects RRF, non-nil weighted fusion
	fetchDepth      int
	candidateLimit  int
	rewriteVariants int
	scoreWorkers    int
}

// Option is a functional option for configuring Pipeline.
type Option func(*Pipeline)

// WithRewriter enables multi-query retrieval with n extra variants per query.
func WithRewriter(r rewrite.Rewriter, n int) Option {
	return func(p *Pipeline) {
		p.rewriter = r
		p.rewriteVariants = n
	}
}

// WithWeightedFusion switches from RRF to weighted score fusion. Weights
// are per strategy, in the order the retrievers were given, and apply to
// every variant list that strategy produces.
func WithWeightedFusion(weights []float64) Option {
	return func(p *Pipeline) {
		p.weights = weights
	}
}

// WithFusionK overrides the RRF damping constant.
func WithFusionK(k int) Option {
	return func(p *Pipeline) {
		p.fusionK = k
	}
}

// WithFetchDepth sets how many results each strategy fetches per variant.
func WithFetchDepth(n int) Option {
	return func(p *Pipeline) {
		p.fetchDepth = n
	}
}

// WithCandidateLimit sets the fused top-M passed to the reranker.
func WithCandidateLimit(n int) Option {
	return func(p *Pipeline) {
		p.candidateLimit = n
	}
}

// WithScoreWorkers scores up to n candidates concurrently during reranking.
func WithScoreWorkers(n int) Option {
	return func(p *Pipeline) {
		p.scoreWorkers = n
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a pipeline over the given strategies and pairwise scorer.
func New(retrievers []retriever.Retriever, score rerank.ScoreFunc, opts ...Option) (*Pipeline, error) {
	if len(retrievers) == 0 {
		return nil, fmt.Errorf("at least one retriever is required")
	}
	if score == nil {
		return nil, fmt.Errorf("a score function is required")
	}

	p := &Pipeline{
		retrievers:     retrievers,
		score:          score,
		rewriter:       rewrite.Static{},
		logger:         slog.Default(),
		fusionK:        fusion.DefaultK,
		fetchDepth:     DefaultFetchDepth,
		candidateLimit: DefaultCandidateLimit,
		scoreWorkers:   1,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.weights != nil && len(p.weights) > len(p.retrievers) {
		return nil, fmt.Errorf("%d fusion weights for %d retrievers", len(p.weights), len(p.retrievers))
	}

	return p, nil
}

// Search runs the full pipeline for one query and returns the reranked
// top-K. It fails fast: any strategy, fusion, or scoring failure aborts the
// whole call with no partial results.
func (p *Pipeline) Search(ctx context.Context, query string, topK int) ([]rerank.Ranked, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	queryID := uuid.NewString()
	start := time.Now()

	variants, err := p.rewriter.Rewrite(ctx, query, p.rewriteVariants)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite query: %w", err)
	}

	lists, err := p.retrieveAll(ctx, variants)
	if err != nil {
		return nil, err
	}
	retrievalTime := time.Since(start)

	var fused []fusion.Fused
	if p.weights != nil {
		fused, err = fusion.FuseWeighted(lists, p.expandWeights(len(variants)))
	} else {
		fused, err = fusion.Fuse(lists, fusion.WithK(p.fusionK))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fuse results: %w", err)
	}

	if len(fused) == 0 {
		p.logger.Info("search found nothing",
			"query_id", queryID,
			"variants", len(variants),
			"retrieval_ms", retrievalTime.Milliseconds(),
		)
		return nil, nil
	}

	if len(fused) > p.candidateLimit {
		fused = fused[:p.candidateLimit]
	}

	candidates := make([]rerank.Candidate, len(fused))
	for i, f := range fused {
		candidates[i] = rerank.Candidate{
			ID:       f.ID,
			Content:  f.Content,
			Metadata: f.Metadata,
		}
	}

	rerankStart := time.Now()
	ranked, err := rerank.Rerank(ctx, query, candidates, p.score, topK,
		rerank.WithConcurrency(p.scoreWorkers))
	if err != nil {
		return nil, fmt.Errorf("failed to rerank candidates: %w", err)
	}

	p.logger.Info("search completed",
		"query_id", queryID,
		"variants", len(variants),
		"candidates", len(candidates),
		"results", len(ranked),
		"retrieval_ms", retrievalTime.Milliseconds(),
		"rerank_ms", time.Since(rerankStart).Milliseconds(),
		"total_ms", time.Since(start).Milliseconds(),
	)

	return ranked, nil
}

// retrieveAll fetches one list per (strategy, variant) pair, all
// concurrently. The output order is fixed (strategy-major, variant-minor)
// regardless of completion order, so fusion input is deterministic.
func (p *Pipeline) retrieveAll(ctx context.Context, variants []string) ([][]fusion.Result, error) {
	total := len(p.retrievers) * len(variants)
	lists := make([][]fusion.Result, total)
	errs := make([]error, total)

	var wg sync.WaitGroup
	for ri, r := range p.retrievers {
		for vi, variant := range variants {
			wg.Add(1)
			go func(slot int, r retriever.Retriever, variant string) {
				defer wg.Done()

				results, err := r.Retrieve(ctx, variant, p.fetchDepth)
				if err != nil {
					errs[slot] = fmt.Errorf("strategy %s failed: %w", r.Name(), err)
					return
				}
				lists[slot] = results
			}(ri*len(variants)+vi, r, variant)
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return lists, nil
}

// expandWeights maps per-strategy weights onto the strategy-major list
// layout produced by retrieveAll.
func (p *Pipeline) expandWeights(variantCount int) []float64 {
	expanded := make([]float64, 0, len(p.retrievers)*variantCount)
	for ri := range p.retrievers {
		w := 1.0
		if ri < len(p.weights) {
			w = p.weights[ri]
		}
		for vi := 0; vi < variantCount; vi++ {
			expanded = append(expanded, w)
		}
	}
	return expanded
}
