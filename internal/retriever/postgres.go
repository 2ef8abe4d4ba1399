package retriever

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fusorlabs/fusor/internal/fusion"
)

// KeywordRetriever is the lexical strategy: PostgreSQL full-text search
// over an existing documents table, ranked by ts_rank. Its scores live on a
// completely different scale than cosine similarity, which is exactly what
// rank-based fusion is for.
type KeywordRetriever struct {
	pool *pgxpool.Pool
}

// NewKeywordRetriever creates a keyword retriever backed by a PostgreSQL
// connection pool.
func NewKeywordRetriever(ctx context.Context, databaseURL string) (*KeywordRetriever, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &KeywordRetriever{pool: pool}, nil
}

// Name identifies the strategy.
func (r *KeywordRetriever) Name() string {
	return "keyword"
}

// Retrieve runs a websearch-syntax full-text query. Ordering is ts_rank
// descending with ID as the final key, so equal-rank rows come back in a
// stable order.
func (r *KeywordRetriever) Retrieve(ctx context.Context, query string, topK int) ([]fusion.Result, error) {
	const sql = `
		SELECT id, title, content,
		       ts_rank(to_tsvector('english', title || ' ' || content),
		               websearch_to_tsquery('english', $1)) AS rank
		FROM documents
		WHERE to_tsvector('english', title || ' ' || content)
		      @@ websearch_to_tsquery('english', $1)
		ORDER BY rank DESC, id
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, sql, query, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to run keyword search: %w", err)
	}
	defer rows.Close()

	var results []fusion.Result
	for rows.Next() {
		var (
			id      uuid.UUID
			title   string
			content string
			rank    float32
		)
		if err := rows.Scan(&id, &title, &content, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan keyword result: %w", err)
		}

		results = append(results, fusion.Result{
			ID:      id.String(),
			Content: content,
			Score:   float64(rank),
			Metadata: map[string]string{
				"strategy": r.Name(),
				"title":    title,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keyword results: %w", err)
	}

	return results, nil
}

// Close closes the connection pool.
func (r *KeywordRetriever) Close() {
	r.pool.Close()
}

// Ensure KeywordRetriever implements Retriever.
var _ Retriever = (*KeywordRetriever)(nil)
