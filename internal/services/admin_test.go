package services

import (
	"context"
	"testing"
	"time"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
)

func testAdmin() (*AdminService, *fakeVectorIndex, *fakeGraph) {
	embedder := newFakeEmbedder()
	vectors := &fakeVectorIndex{}
	g := &fakeGraph{}
	coord := NewCoordinator(testLogger(), embedder, vectors, g)
	messages := NewMessageConnector(testLogger(), coord)
	documents := NewDocumentConnector(testLogger(), coord, g, 1000, 200)
	return NewAdminService(testLogger(), vectors, g, messages, documents), vectors, g
}

func TestInitializeSchemaTouchesBothStores(t *testing.T) {
	t.Parallel()
	admin, vectors, g := testAdmin()
	if err := admin.InitializeSchema(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !vectors.ensured || !g.schemaReady {
		t.Fatalf("both stores must be initialized: vectors=%v graph=%v", vectors.ensured, g.schemaReady)
	}
}

func TestSeedDispatchesByType(t *testing.T) {
	t.Parallel()
	admin, vectors, _ := testAdmin()

	records := []SeedRecord{
		{Type: "message", Text: "hello", UserID: "u1"},
		{Type: "document", Text: "a document body", UserID: "u1", DocName: "Doc"},
		{Type: "transcript_snippet", Text: "utterance", UserID: "u1", SessionID: "s1", DocID: "d1", Timestamp: time.Now().UTC()},
	}
	summary, err := admin.Seed(context.Background(), records)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if summary.Messages != 1 || summary.Documents != 1 || summary.Transcripts != 1 {
		t.Fatalf("per-type counts wrong: %+v", summary)
	}
	if summary.Failed != 0 {
		t.Fatalf("unexpected failures: %+v", summary)
	}
	if summary.Chunks != len(vectors.upserts) {
		t.Fatalf("chunk count mismatch: %d != %d", summary.Chunks, len(vectors.upserts))
	}
}

func TestSeedCountsFailuresWithoutAborting(t *testing.T) {
	t.Parallel()
	admin, _, _ := testAdmin()

	records := []SeedRecord{
		{Type: "carrier_pigeon", Text: "?"},
		{Type: "message", Text: "", UserID: "u1"},
		{Type: "message", Text: "ok", UserID: "u1"},
	}
	summary, err := admin.Seed(context.Background(), records)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if summary.Failed != 2 || summary.Messages != 1 {
		t.Fatalf("failure accounting wrong: %+v", summary)
	}
}

func TestSeedEmptyUsesDemoCorpus(t *testing.T) {
	t.Parallel()
	admin, vectors, g := testAdmin()

	summary, err := admin.Seed(context.Background(), nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if summary.Failed != 0 {
		t.Fatalf("demo corpus must seed cleanly: %+v", summary)
	}
	if summary.Messages == 0 || summary.Documents == 0 || summary.Transcripts == 0 {
		t.Fatalf("demo corpus should cover every record type: %+v", summary)
	}
	if len(vectors.upserts) == 0 || len(g.applied) == 0 {
		t.Fatalf("demo corpus must land in both stores")
	}
	// The demo corpus includes at least one private twin exchange.
	foundPrivateTwin := false
	for _, up := range vectors.upserts {
		if up.IsPrivate && up.IsTwinInteraction {
			foundPrivateTwin = true
		}
	}
	if !foundPrivateTwin {
		t.Fatalf("demo corpus missing a private twin interaction")
	}
}

func TestClearAllWipesBothStores(t *testing.T) {
	t.Parallel()
	admin, vectors, g := testAdmin()
	vectors.upserts = []domain.Chunk{{ChunkID: "c1"}, {ChunkID: "c2"}}

	summary, err := admin.ClearAll(context.Background())
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !g.wiped {
		t.Fatalf("graph not wiped")
	}
	if summary.GraphNodesDeleted != 5 || summary.GraphEdgesDeleted != 9 {
		t.Fatalf("graph counts lost: %+v", summary)
	}
	if summary.VectorsDeleted != 2 {
		t.Fatalf("vector count wrong: %+v", summary)
	}
}
