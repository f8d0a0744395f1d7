package services

import (
	"context"

	"github.com/lishiyo/twincore-prototype-sub000/internal/data/graph"
	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/qdrant"
)

// Embedder is the embedding provider boundary (C1).
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	EmbedOne(ctx context.Context, input string) ([]float32, error)
	Dimension() int
}

// VectorIndex is the vector-store DAL surface the services compose.
type VectorIndex interface {
	Upsert(ctx context.Context, chunk domain.Chunk, vector []float32) error
	UpsertBatch(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, p qdrant.SearchParams) ([]domain.ScoredChunk, error)
	Count(ctx context.Context, filters []domain.Filter) (int, error)
	DeleteByIDs(ctx context.Context, chunkIDs []string) error
	DeleteByFilter(ctx context.Context, filters []domain.Filter) error
	DropAll(ctx context.Context) (int, error)
	EnsureCollection(ctx context.Context) error
}

// Graph is the knowledge-graph DAL surface the services compose.
type Graph interface {
	Apply(ctx context.Context, mutations []graph.Mutation) error
	MergeNode(ctx context.Context, m graph.NodeMerge) (map[string]any, error)
	MergeEdge(ctx context.Context, m graph.EdgeMerge) (bool, error)
	SessionParticipants(ctx context.Context, sessionID string) ([]graph.Participant, error)
	ProjectParticipants(ctx context.Context, projectID string) ([]graph.Participant, error)
	ProjectContextFor(ctx context.Context, projectID string) (*graph.ProjectContext, error)
	RelatedContent(ctx context.Context, chunkID string, types []string, maxDepth int, includePrivate bool, limit int) ([]graph.RelatedChunk, error)
	ContentByTopic(ctx context.Context, topicName string, filters graph.TopicFilters) ([]graph.TopicContent, error)
	PreferenceStatements(ctx context.Context, userID, topic string, limit int, scope *graph.PreferenceScope) ([]domain.Chunk, error)
	UpdateDocumentMetadata(ctx context.Context, docID string, sourceURI string, metadata map[string]any) (bool, error)
	WipeAll(ctx context.Context) (nodesDeleted, edgesDeleted int, err error)
	EnsureSchema(ctx context.Context) error
}
