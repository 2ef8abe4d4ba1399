// Package fusion merges independently produced ranked result lists into a
// single consensus ranking.
//
// Two fusion modes are provided, and a caller picks one explicitly per call:
//
//   - Fuse applies Reciprocal Rank Fusion (RRF). It ignores the raw scores
//     and combines lists purely by rank, so it is safe to mix strategies
//     whose scores live on incomparable scales (e.g. BM25 vs. cosine
//     similarity).
//   - FuseWeighted min-max normalizes each list's raw scores into [0, 1]
//     and sums weighted contributions. Use it when the raw scores carry
//     meaning and the strategies have known relative reliability.
//
// Both modes are pure functions: identical inputs produce identical output
// sequences, including order. Ties on the aggregate score are broken by ID
// (ascending) so the ranking is reproducible.
package fusion

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultK is the conventional RRF damping constant. It balances the
// influence of low-ranked entries against top-ranked ones.
const DefaultK = 60

// ErrInvalidInput is returned when fusion is called with malformed
// arguments. It is always detected before any computation.
var ErrInvalidInput = errors.New("invalid input")

// Result is a single entry of a ranked list produced by a retrieval
// strategy. Rank is implicit: 1-based position within the list. Score is on
// the producing strategy's own scale and is not comparable across
// strategies without normalization.
type Result struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]string
}

// Fused is one entry of the fused ranking. Score is the aggregate fusion
// score, not on any input list's scale. Rank is 1-based and dense.
type Fused struct {
	ID       string
	Content  string
	Score    float64
	Rank     int
	Metadata map[string]string
}

// Option configures a fusion call.
type Option func(*options)

type options struct {
	k int
}

// WithK overrides the RRF damping constant. Values <= 0 are rejected by
// Fuse with ErrInvalidInput.
func WithK(k int) Option {
	return func(o *options) {
		o.k = k
	}
}

// Fuse combines the given ranked lists using Reciprocal Rank Fusion: each
// occurrence of an ID at 1-based rank r contributes 1/(k+r) to that ID's
// aggregate score. An ID appearing in several lists accumulates once per
// list, so consensus across strategies strictly increases its score.
//
// The output contains exactly one entry per distinct ID across all input
// lists, ordered by aggregate score descending with ties broken by ID
// ascending. Inner lists may be empty; an empty outer slice or a
// non-positive k fails with ErrInvalidInput.
func Fuse(lists [][]Result, opts ...Option) ([]Fused, error) {
	if len(lists) == 0 {
		return nil, fmt.Errorf("%w: no input lists", ErrInvalidInput)
	}

	o := options{k: DefaultK}
	for _, opt := range opts {
		opt(&o)
	}
	if o.k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidInput, o.k)
	}

	scores := make(map[string]float64)
	payloads := make(map[string]Result)

	for _, list := range lists {
		for idx, r := range list {
			rank := idx + 1
			scores[r.ID] += 1.0 / float64(o.k+rank)

			// First occurrence wins for content and metadata.
			if _, seen := payloads[r.ID]; !seen {
				payloads[r.ID] = r
			}
		}
	}

	return assemble(scores, payloads), nil
}

// assemble turns accumulated per-ID scores into the final ranking: score
// descending, ID ascending on exact float ties, dense 1-based ranks.
func assemble(scores map[string]float64, payloads map[string]Result) []Fused {
	out := make([]Fused, 0, len(scores))
	for id, score := range scores {
		r := payloads[id]
		out = append(out, Fused{
			ID:       id,
			Content:  r.Content,
			Score:    score,
			Metadata: r.Metadata,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	for i := range out {
		out[i].Rank = i + 1
	}

	return out
}
