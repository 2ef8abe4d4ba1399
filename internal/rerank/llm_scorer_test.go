package rerank

import (
	"strings"
	"testing"
)

func TestParseScore(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected float64
		wantErr  bool
	}{
		{
			name:     "plain JSON",
			response: `{"score": 0.85}`,
			expected: 0.85,
		},
		{
			name:     "surrounded by whitespace",
			response: "  \n{\"score\": 0.4}\n  ",
			expected: 0.4,
		},
		{
			name:     "json code fence",
			response: "```json\n{\"score\": 0.7}\n```",
			expected: 0.7,
		},
		{
			name:     "bare code fence",
			response: "```\n{\"score\": 0.2}\n```",
			expected: 0.2,
		},
		{
			name:     "clamped above one",
			response: `{"score": 3.5}`,
			expected: 1.0,
		},
		{
			name:     "clamped below zero",
			response: `{"score": -0.3}`,
			expected: 0.0,
		},
		{
			name:     "not JSON",
			response: "the document is quite relevant",
			wantErr:  true,
		},
		{
			name:     "empty",
			response: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := parseScore(tt.response)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got score %v", score)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if score != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, score)
			}
		})
	}
}

func TestBuildScoringPrompt_TruncatesLongContent(t *testing.T) {
	content := strings.Repeat("x", maxScoredContent*2)
	prompt := buildScoringPrompt("query", content)

	if strings.Contains(prompt, content) {
		t.Error("expected long content to be truncated")
	}
	if !strings.Contains(prompt, strings.Repeat("x", maxScoredContent)+"...") {
		t.Error("expected truncation marker after capped content")
	}
}

func TestBuildScoringPrompt_IncludesQueryAndDocument(t *testing.T) {
	prompt := buildScoringPrompt("what is X", "X is a thing")

	if !strings.Contains(prompt, "what is X") {
		t.Error("prompt missing query")
	}
	if !strings.Contains(prompt, "X is a thing") {
		t.Error("prompt missing document")
	}
}
