// Package rerank refines a fused candidate ranking with a pairwise
// relevance scorer.
//
// The scorer sees the query and a candidate together (cross-encoder style),
// which is assumed more accurate but more expensive than the retrieval
// scores that produced the candidates, so it is applied only to a small
// fused top-M set, never to a full corpus. The reranker itself is a pure
// transformation: it owns no retry or timeout policy and never returns a
// partial ranking.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInvalidInput is returned when Rerank is called with malformed
// arguments. It is always detected before any candidate is scored.
var ErrInvalidInput = errors.New("invalid input")

// Candidate is one fused candidate to be rescored against the query.
type Candidate struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Ranked is a candidate with its pairwise relevance score, exactly as the
// scorer returned it, and a dense 1-based final rank.
type Ranked struct {
	Candidate
	Score float64
	Rank  int
}

// ScoreFunc scores a (query, content) pair. It is an injected capability:
// the reranker does not know or care whether it runs locally or remotely.
// Any error it returns aborts the whole rerank call.
type ScoreFunc func(ctx context.Context, query, content string) (float64, error)

// Option configures a rerank call.
type Option func(*options)

type options struct {
	concurrency int
}

// WithConcurrency scores up to n candidates at a time. Useful when the
// scorer does I/O. The final ordering is identical to sequential execution;
// only latency changes. Values <= 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// Rerank scores every candidate once with score, sorts descending by the
// returned value, and assigns dense 1-based ranks to the first topK
// entries. The sort is stable: candidates with equal scores keep their
// input (fusion-stage) order, so a deterministic scorer yields a
// deterministic ranking.
//
// A topK larger than the candidate set is clamped, never an error. Empty
// candidates, a non-positive topK, or a nil score fail with
// ErrInvalidInput. A scorer failure aborts the call with the cause wrapped
// and inspectable via errors.Is/As; no partial ranking is returned.
func Rerank(ctx context.Context, query string, candidates []Candidate, score ScoreFunc, topK int, opts ...Option) ([]Ranked, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", ErrInvalidInput, topK)
	}
	if score == nil {
		return nil, fmt.Errorf("%w: nil score function", ErrInvalidInput)
	}
	if topK > len(candidates) {
		topK = len(candidates)
	}

	o := options{concurrency: 1}
	for _, opt := range opts {
		opt(&o)
	}

	scores := make([]float64, len(candidates))
	if o.concurrency > 1 {
		if err := scoreConcurrent(ctx, query, candidates, score, scores, o.concurrency); err != nil {
			return nil, err
		}
	} else {
		for i, c := range candidates {
			s, err := score(ctx, query, c.Content)
			if err != nil {
				return nil, fmt.Errorf("score candidate %s: %w", c.ID, err)
			}
			scores[i] = s
		}
	}

	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		ranked[i] = Ranked{Candidate: c, Score: scores[i]}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	ranked = ranked[:topK]
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return ranked, nil
}

// scoreConcurrent fills scores with one scorer call per candidate, at most
// limit in flight. All calls complete (or the context is cancelled) before
// it returns; on failure the error for the lowest candidate index is
// reported so concurrent and sequential runs fail identically.
func scoreConcurrent(ctx context.Context, query string, candidates []Candidate, score ScoreFunc, scores []float64, limit int) error {
	errs := make([]error, len(candidates))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, limit)

	for i, c := range candidates {
		wg.Add(1)
		go func(idx int, cand Candidate) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}

			s, err := score(ctx, query, cand.Content)
			if err != nil {
				errs[idx] = fmt.Errorf("score candidate %s: %w", cand.ID, err)
				return
			}
			scores[idx] = s
		}(i, c)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
