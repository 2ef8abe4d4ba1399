// Command fusor runs one retrieval query through the fusion and reranking
// pipeline and prints the ranked results as JSON.
//
//	fusor [flags] <query...>
//
// Retrieval strategies, models, and pipeline tuning come from the
// environment (see internal/config); flags cover per-invocation choices.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fusorlabs/fusor/internal/config"
	"github.com/fusorlabs/fusor/internal/embedder"
	"github.com/fusorlabs/fusor/internal/ollama"
	"github.com/fusorlabs/fusor/internal/pipeline"
	"github.com/fusorlabs/fusor/internal/rerank"
	"github.com/fusorlabs/fusor/internal/retriever"
	"github.com/fusorlabs/fusor/internal/rewrite"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("search failed", "error", err)
		os.Exit(1)
	}
}

// output is the printed shape of one ranked result.
type output struct {
	Rank     int               `json:"rank"`
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func run() error {
	topK := flag.Int("k", 0, "number of results to return (default from TOP_K)")
	weighted := flag.Bool("weighted", false, "use weighted score fusion instead of RRF")
	flag.Parse()

	if flag.NArg() == 0 {
		return fmt.Errorf("usage: fusor [flags] <query>")
	}
	query := strings.Join(flag.Args(), " ")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *topK <= 0 {
		*topK = cfg.TopK
	}

	// Dense strategy: query embedding + Qdrant similarity search
	embed := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.OllamaEmbeddingModel,
	})

	dense, err := retriever.NewQdrantRetriever(cfg.QdrantGRPCURL, embed, cfg.QdrantCollection,
		retriever.WithMinScore(cfg.MinScore))
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer dense.Close()
	slog.Info("connected to Qdrant", "collection", cfg.QdrantCollection)

	retrievers := []retriever.Retriever{dense}

	// Keyword strategy: PostgreSQL full-text search
	if cfg.KeywordEnabled {
		keyword, err := retriever.NewKeywordRetriever(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		defer keyword.Close()
		slog.Info("connected to PostgreSQL")

		retrievers = append(retrievers, keyword)
	}

	// Pairwise scorer with a TTL score cache in front of it
	modelClient := ollama.NewClient(
		ollama.WithBaseURL(cfg.OllamaURL),
		ollama.WithModel(cfg.OllamaScoringModel),
	)
	scorer := rerank.NewModelScorer(modelClient, rerank.WithModel(cfg.OllamaScoringModel))
	score := rerank.NewScoreCache(cfg.ScoreCacheTTL).Wrap(scorer.ScoreFunc())

	opts := []pipeline.Option{
		pipeline.WithFusionK(cfg.FusionK),
		pipeline.WithFetchDepth(cfg.FetchDepth),
		pipeline.WithCandidateLimit(cfg.CandidateLimit),
		pipeline.WithScoreWorkers(cfg.ScoreWorkers),
		pipeline.WithLogger(slog.Default()),
	}
	if *weighted {
		// Empty weights mean uniform 1.0 per strategy.
		opts = append(opts, pipeline.WithWeightedFusion([]float64{}))
	}
	if cfg.RewriteVariants > 0 {
		rewriter := rewrite.NewModelRewriter(modelClient, rewrite.WithModel(cfg.OllamaRewriteModel))
		opts = append(opts, pipeline.WithRewriter(rewriter, cfg.RewriteVariants))
	}

	p, err := pipeline.New(retrievers, score, opts...)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	ranked, err := p.Search(ctx, query, *topK)
	if err != nil {
		return err
	}

	results := make([]output, len(ranked))
	for i, r := range ranked {
		results[i] = output{
			Rank:     r.Rank,
			ID:       r.ID,
			Score:    r.Score,
			Content:  r.Content,
			Metadata: r.Metadata,
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// Ensure interfaces are satisfied at compile time
var (
	_ retriever.Retriever = (*retriever.QdrantRetriever)(nil)
	_ retriever.Retriever = (*retriever.KeywordRetriever)(nil)
	_ embedder.Embedder   = (*embedder.OllamaEmbedder)(nil)
	_ rewrite.Rewriter    = (*rewrite.ModelRewriter)(nil)
)
