package services

import (
	"context"
	"testing"
	"time"

	"github.com/lishiyo/twincore-prototype-sub000/internal/data/graph"
	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/qdrant"
)

func testEngine() (*RetrievalEngine, *fakeEmbedder, *fakeVectorIndex, *fakeGraph) {
	embedder := newFakeEmbedder()
	vectors := &fakeVectorIndex{}
	g := &fakeGraph{}
	coord := NewCoordinator(testLogger(), embedder, vectors, g)
	engine := NewRetrievalEngine(testLogger(), embedder, vectors, g, coord, RetrievalConfig{
		DefaultLimit:          10,
		DefaultScoreThreshold: 0.6,
	})
	return engine, embedder, vectors, g
}

func scoredChunk(id string, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{
			ChunkID:    id,
			Text:       "text " + id,
			SourceType: domain.SourceMessage,
			UserID:     "u1",
			MessageID:  id + "-m",
			Timestamp:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		},
		Score: score,
	}
}

func TestRetrieveContextSharedDefaults(t *testing.T) {
	t.Parallel()
	engine, _, vectors, _ := testEngine()
	vectors.hits = []domain.ScoredChunk{scoredChunk("c1", 0.9)}

	result, err := engine.RetrieveContext(context.Background(), ContextQuery{Query: "what happened"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	p := vectors.lastSearch()
	if p.IncludePrivate || p.IncludeTwinInteractions {
		t.Fatalf("shared context must exclude private and twin by default")
	}
	if p.ScoreThreshold != 0.6 {
		t.Fatalf("default threshold not applied: %v", p.ScoreThreshold)
	}
	if result.Total != 1 || result.Chunks[0].ChunkID != "c1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Chunks[0].Score == nil || *result.Chunks[0].Score != 0.9 {
		t.Fatalf("score lost")
	}
}

func TestRetrieveContextOptIn(t *testing.T) {
	t.Parallel()
	engine, _, vectors, _ := testEngine()

	yes := true
	_, err := engine.RetrieveContext(context.Background(), ContextQuery{
		Query:          "q",
		IncludePrivate: &yes,
		IncludeTwin:    &yes,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	p := vectors.lastSearch()
	if !p.IncludePrivate || !p.IncludeTwinInteractions {
		t.Fatalf("explicit opt-in ignored")
	}
}

func TestRetrieveContextRequiresQuery(t *testing.T) {
	t.Parallel()
	engine, _, _, _ := testEngine()
	_, err := engine.RetrieveContext(context.Background(), ContextQuery{})
	if !domain.IsKind(err, domain.KindInvalidInput) {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestRetrieveUserContextDefaultsAndScope(t *testing.T) {
	t.Parallel()
	engine, _, vectors, _ := testEngine()

	_, err := engine.RetrieveUserContext(context.Background(), "u7", ContextQuery{Query: "q"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	p := vectors.lastSearch()
	if !p.IncludePrivate || !p.IncludeTwinInteractions {
		t.Fatalf("user context defaults both flags to true")
	}
	found := false
	for _, f := range p.Filters {
		if eq, ok := f.(domain.Eq); ok && eq.Field == domain.FieldUserID && eq.Value == "u7" {
			found = true
		}
	}
	if !found {
		t.Fatalf("user scope filter missing: %+v", p.Filters)
	}
}

func TestRetrievePrivateMemoryIngestsQueryAndForcesPrivate(t *testing.T) {
	t.Parallel()
	engine, _, vectors, _ := testEngine()

	no := false
	_, err := engine.RetrievePrivateMemory(context.Background(), "u1", ContextQuery{
		Query:          "remind me about the cover",
		SessionID:      "s1",
		IncludePrivate: &no,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	// The query itself was ingested as a private twin interaction.
	if len(vectors.upserts) != 1 {
		t.Fatalf("query self-ingest missing")
	}
	q := vectors.upserts[0]
	if q.SourceType != domain.SourceQuery || !q.IsPrivate || !q.IsTwinInteraction || q.UserID != "u1" {
		t.Fatalf("query chunk wrong: %+v", q)
	}

	p := vectors.lastSearch()
	if !p.IncludePrivate {
		t.Fatalf("include_private is forced for private memory")
	}
}

func TestRetrievePrivateMemoryIngestFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	embedder := newFakeEmbedder()
	ingestVectors := &fakeVectorIndex{upsertErr: domain.E(domain.KindStoreTransient, "qdrant.upsert", errFakeGraphDown)}
	g := &fakeGraph{}
	coord := NewCoordinator(testLogger(), embedder, ingestVectors, g)
	engine := NewRetrievalEngine(testLogger(), embedder, ingestVectors, g, coord, RetrievalConfig{DefaultLimit: 10})

	result, err := engine.RetrievePrivateMemory(context.Background(), "u1", ContextQuery{Query: "q"})
	if err != nil {
		t.Fatalf("search should survive a failed self-ingest: %v", err)
	}
	if result == nil {
		t.Fatalf("missing result")
	}
}

func TestRetrieveGroupContextScopeValidation(t *testing.T) {
	t.Parallel()
	engine, _, _, _ := testEngine()

	cases := []GroupQuery{
		{Query: "q"},
		{Query: "q", SessionID: "s1", ProjectID: "p1"},
		{Query: "q", TeamID: "t1"},
	}
	for i, q := range cases {
		if _, err := engine.RetrieveGroupContext(context.Background(), q); !domain.IsKind(err, domain.KindInvalidInput) {
			t.Fatalf("case %d: expected invalid_input, got %v", i, err)
		}
	}
}

func TestRetrieveGroupContextFanOutIsolation(t *testing.T) {
	t.Parallel()
	engine, _, vectors, g := testEngine()
	g.participants = map[string][]graph.Participant{
		"s1": {
			{UserID: "alice", Name: "Alice"},
			{UserID: "bob", Name: "Bob"},
			{UserID: "cara", Name: "Cara"},
		},
	}
	vectors.searchFn = func(p qdrant.SearchParams) ([]domain.ScoredChunk, error) {
		for _, f := range p.Filters {
			if eq, ok := f.(domain.Eq); ok && eq.Field == domain.FieldUserID && eq.Value == "bob" {
				return nil, domain.E(domain.KindStoreTransient, "qdrant.search", errFakeGraphDown)
			}
		}
		return []domain.ScoredChunk{scoredChunk("hit", 0.8)}, nil
	}

	result, err := engine.RetrieveGroupContext(context.Background(), GroupQuery{Query: "q", SessionID: "s1"})
	if err != nil {
		t.Fatalf("one failing user must not fail the group: %v", err)
	}
	if len(result.Users) != 3 {
		t.Fatalf("expected 3 envelopes, got %d", len(result.Users))
	}
	// Order follows the participant list regardless of completion order.
	order := []string{"alice", "bob", "cara"}
	for i, u := range result.Users {
		if u.UserID != order[i] {
			t.Fatalf("order broken at %d: %s", i, u.UserID)
		}
	}
	if result.Users[1].Error == "" || len(result.Users[1].Results) != 0 {
		t.Fatalf("bob's failure not isolated: %+v", result.Users[1])
	}
	if len(result.Users[0].Results) != 1 || len(result.Users[2].Results) != 1 {
		t.Fatalf("siblings should still have results")
	}
}

func TestRetrieveGroupContextEmptyScope(t *testing.T) {
	t.Parallel()
	engine, embedder, _, _ := testEngine()

	result, err := engine.RetrieveGroupContext(context.Background(), GroupQuery{Query: "q", SessionID: "ghost"})
	if err != nil {
		t.Fatalf("empty scope is not an error: %v", err)
	}
	if len(result.Users) != 0 {
		t.Fatalf("expected empty envelope list")
	}
	if len(embedder.singulars) != 0 {
		t.Fatalf("no participants means no embedding call")
	}
}

func TestRetrieveRelatedRequiresChunkID(t *testing.T) {
	t.Parallel()
	engine, _, _, _ := testEngine()
	if _, err := engine.RetrieveRelated(context.Background(), RelatedQuery{}); !domain.IsKind(err, domain.KindInvalidInput) {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestRetrieveByTopicGraphFirst(t *testing.T) {
	t.Parallel()
	engine, embedder, _, g := testEngine()
	g.topicContent = []graph.TopicContent{
		{Chunk: scoredChunk("t1", 0).Chunk, Topic: "planning"},
	}

	result, err := engine.RetrieveByTopic(context.Background(), "planning", TopicQuery{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if result.Source != "graph" || result.Total != 1 {
		t.Fatalf("graph tier should win: %+v", result)
	}
	if len(embedder.singulars) != 0 {
		t.Fatalf("graph hit must not trigger the vector fallback")
	}
}

func TestRetrieveByTopicVectorFallbackOnEmptyGraph(t *testing.T) {
	t.Parallel()
	engine, _, vectors, _ := testEngine()
	vectors.hits = []domain.ScoredChunk{scoredChunk("v1", 0.8)}

	result, err := engine.RetrieveByTopic(context.Background(), "planning", TopicQuery{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if result.Source != "vector" || result.Total != 1 {
		t.Fatalf("expected vector fallback: %+v", result)
	}
}

func TestRetrieveByTopicFallbackOnGraphError(t *testing.T) {
	t.Parallel()
	engine, _, vectors, g := testEngine()
	g.topicErr = domain.E(domain.KindStoreTransient, "graph.topic", errFakeGraphDown)
	vectors.hits = []domain.ScoredChunk{scoredChunk("v1", 0.8)}

	result, err := engine.RetrieveByTopic(context.Background(), "planning", TopicQuery{})
	if err != nil {
		t.Fatalf("graph failure should fall back: %v", err)
	}
	if result.Source != "vector" || result.Total != 1 {
		t.Fatalf("expected vector fallback: %+v", result)
	}
}

func TestRetrieveByTopicDoubleFailureIsEmpty(t *testing.T) {
	t.Parallel()
	engine, _, vectors, g := testEngine()
	g.topicErr = domain.E(domain.KindStoreTransient, "graph.topic", errFakeGraphDown)
	vectors.searchErr = domain.E(domain.KindStoreTransient, "qdrant.search", errFakeGraphDown)

	result, err := engine.RetrieveByTopic(context.Background(), "planning", TopicQuery{})
	if err != nil {
		t.Fatalf("double failure degrades to empty, not error: %v", err)
	}
	if result.Total != 0 || len(result.Chunks) != 0 {
		t.Fatalf("expected empty result: %+v", result)
	}
}

func TestEnrichmentFailureDoesNotFailResults(t *testing.T) {
	t.Parallel()
	engine, _, vectors, g := testEngine()
	vectors.hits = []domain.ScoredChunk{scoredChunk("c1", 0.9)}
	g.projectErr = domain.E(domain.KindStoreTransient, "graph.project", errFakeGraphDown)

	result, err := engine.RetrieveContext(context.Background(), ContextQuery{
		Query:        "q",
		ProjectID:    "p1",
		IncludeGraph: true,
	})
	if err != nil {
		t.Fatalf("enrichment failure must not fail retrieval: %v", err)
	}
	if result.Total != 1 || result.ProjectContext != nil {
		t.Fatalf("primary results should survive with enrichment omitted: %+v", result)
	}
}
