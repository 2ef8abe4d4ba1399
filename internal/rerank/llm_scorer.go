package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fusorlabs/fusor/internal/ollama"
)

// maxScoredContent caps the document text sent to the model per pair, to
// stay well inside the model's context window.
const maxScoredContent = 1500

// ModelScorer scores (query, document) pairs with an LLM. The model sees
// both texts together, which approximates a cross-encoder: slower than the
// retrieval scores that produced the candidates, but considerably more
// accurate on near-ties.
//
// Scoring failures (transport or unparseable output) are returned to the
// caller rather than papered over with retrieval scores; a broken scorer
// must be visible, not silently degrade the ranking.
type ModelScorer struct {
	client *ollama.Client
	model  string
}

// ModelScorerOption is a functional option for configuring ModelScorer.
type ModelScorerOption func(*ModelScorer)

// WithModel sets the model used for scoring.
func WithModel(model string) ModelScorerOption {
	return func(s *ModelScorer) {
		s.model = model
	}
}

// NewModelScorer creates an LLM-backed pairwise scorer.
func NewModelScorer(client *ollama.Client, opts ...ModelScorerOption) *ModelScorer {
	s := &ModelScorer{
		client: client,
		model:  ollama.DefaultModel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Score rates how relevant content is to query, in [0, 1].
func (s *ModelScorer) Score(ctx context.Context, query, content string) (float64, error) {
	prompt := buildScoringPrompt(query, content)

	response, err := s.client.Generate(ctx, prompt, ollama.GenerateOptions{
		Model:       s.model,
		Temperature: 0, // deterministic scoring
		MaxTokens:   64,
	})
	if err != nil {
		return 0, fmt.Errorf("model scoring failed: %w", err)
	}

	score, err := parseScore(response)
	if err != nil {
		return 0, fmt.Errorf("model scoring failed: %w", err)
	}

	return score, nil
}

// ScoreFunc adapts the scorer to the reranker's injected-capability shape.
func (s *ModelScorer) ScoreFunc() ScoreFunc {
	return s.Score
}

func buildScoringPrompt(query, content string) string {
	if len(content) > maxScoredContent {
		content = content[:maxScoredContent] + "..."
	}

	var sb strings.Builder
	sb.WriteString("You are a relevance scoring system. Rate how relevant the document is to the query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nDocument:\n")
	sb.WriteString(content)
	sb.WriteString("\n\n")
	sb.WriteString(`Rate relevance from 0.0 to 1.0. Be strict: irrelevant below 0.3, somewhat relevant 0.3-0.7, highly relevant above 0.7.
Output ONLY valid JSON in this exact format, no explanation:
{"score": 0.0}`)

	return sb.String()
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// parseScore extracts the score from the model output, tolerating markdown
// code fences around the JSON. The value is clamped to [0, 1].
func parseScore(response string) (float64, error) {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + 7
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	} else if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	}

	response = strings.TrimSpace(response)

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return 0, fmt.Errorf("unparseable score response %q: %w", response, err)
	}

	score := parsed.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return score, nil
}
