package rerank

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
)

// mapScorer returns fixed scores by candidate content.
func mapScorer(scores map[string]float64) ScoreFunc {
	return func(_ context.Context, _, content string) (float64, error) {
		score, ok := scores[content]
		if !ok {
			return 0, fmt.Errorf("no score for %q", content)
		}
		return score, nil
	}
}

func candidates(ids ...string) []Candidate {
	out := make([]Candidate, len(ids))
	for i, id := range ids {
		out[i] = Candidate{ID: id, Content: "doc-" + id}
	}
	return out
}

func TestRerank_OrdersByScore(t *testing.T) {
	scorer := mapScorer(map[string]float64{
		"doc-A": 0.9,
		"doc-B": 0.95,
	})

	ranked, err := Rerank(context.Background(), "what is X", candidates("A", "B"), scorer, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ranked) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ranked))
	}
	if ranked[0].ID != "B" || ranked[0].Score != 0.95 || ranked[0].Rank != 1 {
		t.Errorf("expected B(0.95, rank 1) first, got %s(%v, rank %d)", ranked[0].ID, ranked[0].Score, ranked[0].Rank)
	}
	if ranked[1].ID != "A" || ranked[1].Score != 0.9 || ranked[1].Rank != 2 {
		t.Errorf("expected A(0.9, rank 2) second, got %s(%v, rank %d)", ranked[1].ID, ranked[1].Score, ranked[1].Rank)
	}
}

func TestRerank_ClampsTopK(t *testing.T) {
	scorer := mapScorer(map[string]float64{"doc-A": 0.5})

	ranked, err := Rerank(context.Background(), "q", candidates("A"), scorer, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 1 {
		t.Errorf("expected exactly 1 result, got %d", len(ranked))
	}
}

func TestRerank_TruncatesToTopK(t *testing.T) {
	scorer := mapScorer(map[string]float64{
		"doc-A": 0.1,
		"doc-B": 0.2,
		"doc-C": 0.3,
	})

	ranked, err := Rerank(context.Background(), "q", candidates("A", "B", "C"), scorer, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ranked))
	}
	if ranked[0].ID != "C" || ranked[1].ID != "B" {
		t.Errorf("expected C, B; got %s, %s", ranked[0].ID, ranked[1].ID)
	}
}

func TestRerank_InvalidInput(t *testing.T) {
	scorer := mapScorer(nil)

	tests := []struct {
		name  string
		cands []Candidate
		score ScoreFunc
		topK  int
	}{
		{"empty candidates", nil, scorer, 1},
		{"zero topK", candidates("A"), scorer, 0},
		{"negative topK", candidates("A"), scorer, -3},
		{"nil scorer", candidates("A"), nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Rerank(context.Background(), "q", tt.cands, tt.score, tt.topK)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRerank_ScorerFailureAborts(t *testing.T) {
	scorerErr := errors.New("model unavailable")
	scorer := func(_ context.Context, _, content string) (float64, error) {
		if content == "doc-B" {
			return 0, scorerErr
		}
		return 0.5, nil
	}

	ranked, err := Rerank(context.Background(), "q", candidates("A", "B"), scorer, 1)
	if ranked != nil {
		t.Errorf("expected no partial results, got %v", ranked)
	}
	if !errors.Is(err, scorerErr) {
		t.Errorf("expected wrapped scorer error, got %v", err)
	}
}

func TestRerank_StableOnTies(t *testing.T) {
	// All equal scores: input (fusion-stage) order must survive.
	scorer := func(_ context.Context, _, _ string) (float64, error) {
		return 0.5, nil
	}

	ranked, err := Rerank(context.Background(), "q", candidates("C", "A", "B"), scorer, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"C", "A", "B"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, ranked[i].ID)
		}
	}
}

func TestRerank_ScoresUnmodified(t *testing.T) {
	scores := map[string]float64{
		"doc-A": 0.123456789,
		"doc-B": -2.5, // model-specific scales may be unbounded
		"doc-C": 17.0,
	}

	ranked, err := Rerank(context.Background(), "q", candidates("A", "B", "C"), mapScorer(scores), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, r := range ranked {
		if r.Score != scores["doc-"+r.ID] {
			t.Errorf("%s: score %v does not equal scorer output %v", r.ID, r.Score, scores["doc-"+r.ID])
		}
	}
}

func TestRerank_ConcurrentMatchesSequential(t *testing.T) {
	scores := map[string]float64{}
	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("c%02d", i)
		ids = append(ids, id)
		scores["doc-"+id] = float64(i%5) * 0.1 // plenty of ties
	}
	cands := candidates(ids...)

	sequential, err := Rerank(context.Background(), "q", cands, mapScorer(scores), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	concurrent, err := Rerank(context.Background(), "q", cands, mapScorer(scores), 10, WithConcurrency(8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(concurrent) != len(sequential) {
		t.Fatalf("length mismatch: %d vs %d", len(concurrent), len(sequential))
	}
	for i := range sequential {
		if concurrent[i].ID != sequential[i].ID || concurrent[i].Score != sequential[i].Score {
			t.Errorf("position %d: concurrent %s(%v) != sequential %s(%v)",
				i, concurrent[i].ID, concurrent[i].Score, sequential[i].ID, sequential[i].Score)
		}
	}
}

func TestRerank_ConcurrentFailureAborts(t *testing.T) {
	scorerErr := errors.New("boom")
	var calls atomic.Int32
	scorer := func(_ context.Context, _, content string) (float64, error) {
		calls.Add(1)
		if content == "doc-c03" {
			return 0, scorerErr
		}
		return 0.5, nil
	}

	cands := candidates("c00", "c01", "c02", "c03", "c04", "c05")
	ranked, err := Rerank(context.Background(), "q", cands, scorer, 3, WithConcurrency(4))
	if ranked != nil {
		t.Errorf("expected no partial results, got %v", ranked)
	}
	if !errors.Is(err, scorerErr) {
		t.Errorf("expected wrapped scorer error, got %v", err)
	}
}

func TestRerank_ScoresEachCandidateOnce(t *testing.T) {
	var calls atomic.Int32
	scorer := func(_ context.Context, _, _ string) (float64, error) {
		calls.Add(1)
		return 0.5, nil
	}

	if _, err := Rerank(context.Background(), "q", candidates("A", "B", "C"), scorer, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 scorer calls, got %d", calls.Load())
	}
}
