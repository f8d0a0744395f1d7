package services

import (
	"context"
	"errors"
	"sync"

	"github.com/lishiyo/twincore-prototype-sub000/internal/data/graph"
	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/logger"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/qdrant"
)

func testLogger() *logger.Logger {
	log, err := logger.New("development")
	if err != nil {
		panic(err)
	}
	return log
}

type fakeEmbedder struct {
	mu        sync.Mutex
	dim       int
	embedErr  error
	batches   [][]string
	singulars []string
}

func newFakeEmbedder() *fakeEmbedder { return &fakeEmbedder{dim: 3} }

func (f *fakeEmbedder) vectorFor(input string) []float32 {
	v := float32(len(input)%7) + 0.5
	return []float32{v, 0.25, 0.75}
}

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	f.batches = append(f.batches, append([]string{}, inputs...))
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		out[i] = f.vectorFor(in)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, input string) ([]float32, error) {
	f.mu.Lock()
	if f.embedErr != nil {
		f.mu.Unlock()
		return nil, f.embedErr
	}
	f.singulars = append(f.singulars, input)
	f.mu.Unlock()
	return f.vectorFor(input), nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

type fakeVectorIndex struct {
	mu         sync.Mutex
	upserts    []domain.Chunk
	searches   []qdrant.SearchParams
	hits       []domain.ScoredChunk
	searchFn   func(qdrant.SearchParams) ([]domain.ScoredChunk, error)
	upsertErr  error
	searchErr  error
	dropped    int
	ensured    bool
	deletedIDs []string
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, chunk domain.Chunk, vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, chunk)
	return nil
}

func (f *fakeVectorIndex) UpsertBatch(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	for i := range chunks {
		if err := f.Upsert(ctx, chunks[i], vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeVectorIndex) Search(ctx context.Context, p qdrant.SearchParams) ([]domain.ScoredChunk, error) {
	f.mu.Lock()
	f.searches = append(f.searches, p)
	fn := f.searchFn
	hits := f.hits
	err := f.searchErr
	f.mu.Unlock()
	if fn != nil {
		return fn(p)
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (f *fakeVectorIndex) Count(ctx context.Context, filters []domain.Filter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts), nil
}

func (f *fakeVectorIndex) DeleteByIDs(ctx context.Context, chunkIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedIDs = append(f.deletedIDs, chunkIDs...)
	return nil
}

func (f *fakeVectorIndex) DeleteByFilter(ctx context.Context, filters []domain.Filter) error {
	return nil
}

func (f *fakeVectorIndex) DropAll(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.upserts)
	f.upserts = nil
	f.dropped += n
	return n, nil
}

func (f *fakeVectorIndex) EnsureCollection(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = true
	return nil
}

func (f *fakeVectorIndex) lastSearch() qdrant.SearchParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.searches) == 0 {
		return qdrant.SearchParams{}
	}
	return f.searches[len(f.searches)-1]
}

type fakeGraph struct {
	mu           sync.Mutex
	applied      [][]graph.Mutation
	applyErr     error
	mergedNodes  []graph.NodeMerge
	participants map[string][]graph.Participant
	projectUsers map[string][]graph.Participant
	projectCtx   *graph.ProjectContext
	projectErr   error
	related      []graph.RelatedChunk
	relatedErr   error
	topicContent []graph.TopicContent
	topicErr     error
	prefChunks   []domain.Chunk
	prefErr      error
	docUpdated   bool
	wiped        bool
	schemaReady  bool
}

var errFakeGraphDown = errors.New("graph unavailable")

func (f *fakeGraph) Apply(ctx context.Context, mutations []graph.Mutation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, mutations)
	return nil
}

func (f *fakeGraph) MergeNode(ctx context.Context, m graph.NodeMerge) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mergedNodes = append(f.mergedNodes, m)
	return m.OnCreate, nil
}

func (f *fakeGraph) MergeEdge(ctx context.Context, m graph.EdgeMerge) (bool, error) {
	return true, nil
}

func (f *fakeGraph) SessionParticipants(ctx context.Context, sessionID string) ([]graph.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participants[sessionID], nil
}

func (f *fakeGraph) ProjectParticipants(ctx context.Context, projectID string) ([]graph.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projectUsers[projectID], nil
}

func (f *fakeGraph) ProjectContextFor(ctx context.Context, projectID string) (*graph.ProjectContext, error) {
	if f.projectErr != nil {
		return nil, f.projectErr
	}
	return f.projectCtx, nil
}

func (f *fakeGraph) RelatedContent(ctx context.Context, chunkID string, types []string, maxDepth int, includePrivate bool, limit int) ([]graph.RelatedChunk, error) {
	if f.relatedErr != nil {
		return nil, f.relatedErr
	}
	return f.related, nil
}

func (f *fakeGraph) ContentByTopic(ctx context.Context, topicName string, filters graph.TopicFilters) ([]graph.TopicContent, error) {
	if f.topicErr != nil {
		return nil, f.topicErr
	}
	return f.topicContent, nil
}

func (f *fakeGraph) PreferenceStatements(ctx context.Context, userID, topic string, limit int, scope *graph.PreferenceScope) ([]domain.Chunk, error) {
	if f.prefErr != nil {
		return nil, f.prefErr
	}
	return f.prefChunks, nil
}

func (f *fakeGraph) UpdateDocumentMetadata(ctx context.Context, docID string, sourceURI string, metadata map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docUpdated, nil
}

func (f *fakeGraph) WipeAll(ctx context.Context) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wiped = true
	return 5, 9, nil
}

func (f *fakeGraph) EnsureSchema(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemaReady = true
	return nil
}

func (f *fakeGraph) allMutations() []graph.Mutation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []graph.Mutation
	for _, batch := range f.applied {
		out = append(out, batch...)
	}
	return out
}

func edgeTypes(muts []graph.Mutation) map[string]int {
	out := map[string]int{}
	for _, m := range muts {
		if e, ok := m.(graph.EdgeMerge); ok {
			out[e.Type]++
		}
	}
	return out
}

func nodeLabels(muts []graph.Mutation) map[string]int {
	out := map[string]int{}
	for _, m := range muts {
		if n, ok := m.(graph.NodeMerge); ok {
			out[n.Label]++
		}
	}
	return out
}
