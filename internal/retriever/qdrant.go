package retriever

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/fusorlabs/fusor/internal/embedder"
	"github.com/fusorlabs/fusor/internal/fusion"
)

// maxRecvMsgSize raises the gRPC receive limit; result payloads with large
// document bodies can exceed the 4 MiB default.
const maxRecvMsgSize = 32 * 1024 * 1024

// QdrantRetriever is the dense vector strategy: it embeds the query and
// searches an existing Qdrant collection by cosine similarity.
type QdrantRetriever struct {
	client     *qdrant.Client
	embed      embedder.Embedder
	collection string
	minScore   float32
}

// QdrantOption is a functional option for configuring QdrantRetriever.
type QdrantOption func(*QdrantRetriever)

// WithMinScore drops results whose similarity falls below threshold.
func WithMinScore(threshold float32) QdrantOption {
	return func(r *QdrantRetriever) {
		r.minScore = threshold
	}
}

// NewQdrantRetriever connects to Qdrant at addr ("host:port", gRPC) and
// retrieves from the named collection using embed for query vectors.
func NewQdrantRetriever(addr string, embed embedder.Embedder, collection string, opts ...QdrantOption) (*QdrantRetriever, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// If no port specified, assume default
		host = addr
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant address: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMsgSize)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	r := &QdrantRetriever{
		client:     client,
		embed:      embed,
		collection: collection,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Name identifies the strategy.
func (r *QdrantRetriever) Name() string {
	return "dense"
}

// Retrieve embeds the query and runs a similarity search.
func (r *QdrantRetriever) Retrieve(ctx context.Context, query string, topK int) ([]fusion.Result, error) {
	vector, err := r.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	queryPoints := &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if r.minScore > 0 {
		queryPoints.ScoreThreshold = qdrant.PtrOf(r.minScore)
	}

	points, err := r.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, fmt.Errorf("failed to search qdrant: %w", err)
	}

	results := make([]fusion.Result, 0, len(points))
	for _, point := range points {
		result := fusion.Result{
			ID:       point.Id.GetUuid(),
			Score:    float64(point.Score),
			Metadata: map[string]string{"strategy": r.Name()},
		}

		if payload := point.Payload; payload != nil {
			if content, ok := payload["content"]; ok {
				result.Content = content.GetStringValue()
			}
			for k, v := range payload {
				if k != "content" {
					result.Metadata[k] = v.GetStringValue()
				}
			}
		}

		results = append(results, result)
	}

	return results, nil
}

// Close closes the Qdrant client connection.
func (r *QdrantRetriever) Close() error {
	return r.client.Close()
}

// Ensure QdrantRetriever implements Retriever.
var _ Retriever = (*QdrantRetriever)(nil)
