package services

import (
	"context"
	"strings"
	"time"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/logger"
)

// SeedRecord is one record of a seed payload. Type selects the connector
// path: "message", "document", or "transcript_snippet".
type SeedRecord struct {
	Type       string         `json:"type"`
	Text       string         `json:"text"`
	UserID     string         `json:"user_id"`
	ProjectID  string         `json:"project_id"`
	SessionID  string         `json:"session_id"`
	DocID      string         `json:"doc_id"`
	DocName    string         `json:"doc_name"`
	MessageID  string         `json:"message_id"`
	Timestamp  time.Time      `json:"timestamp"`
	IsTwinChat bool           `json:"is_twin_chat"`
	IsPrivate  *bool          `json:"is_private"`
	Metadata   map[string]any `json:"metadata"`
}

type SeedSummary struct {
	Messages    int `json:"messages"`
	Documents   int `json:"documents"`
	Transcripts int `json:"transcripts"`
	Chunks      int `json:"chunks"`
	Failed      int `json:"failed"`
}

type ClearSummary struct {
	GraphNodesDeleted int `json:"graph_nodes_deleted"`
	GraphEdgesDeleted int `json:"graph_edges_deleted"`
	VectorsDeleted    int `json:"vectors_deleted"`
}

// AdminService covers operator workflows: schema bootstrap, demo seeding,
// and full wipe. None of these run on the request path.
type AdminService struct {
	log       *logger.Logger
	vectors   VectorIndex
	graph     Graph
	messages  *MessageConnector
	documents *DocumentConnector
}

func NewAdminService(log *logger.Logger, vectors VectorIndex, g Graph, messages *MessageConnector, documents *DocumentConnector) *AdminService {
	return &AdminService{
		log:       log.With("service", "AdminService"),
		vectors:   vectors,
		graph:     g,
		messages:  messages,
		documents: documents,
	}
}

// InitializeSchema creates the vector collection with its payload indexes and
// the graph uniqueness constraints. Safe to call repeatedly.
func (a *AdminService) InitializeSchema(ctx context.Context) error {
	const op = "admin.initialize_schema"
	if err := a.vectors.EnsureCollection(ctx); err != nil {
		return domain.Wrap(op, err, domain.KindStoreTransient)
	}
	if err := a.graph.EnsureSchema(ctx); err != nil {
		return domain.Wrap(op, err, domain.KindStoreTransient)
	}
	a.log.Info("schema initialized")
	return nil
}

// Seed ingests the given records through the normal connector paths, so the
// seeded corpus obeys every ingest rule. An empty record list seeds the
// built-in demo corpus. Per-record failures are counted, not fatal.
func (a *AdminService) Seed(ctx context.Context, records []SeedRecord) (*SeedSummary, error) {
	const op = "admin.seed"
	if len(records) == 0 {
		records = demoCorpus()
	}

	summary := &SeedSummary{}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, domain.E(domain.KindCancelled, op, err)
		}
		var err error
		switch strings.TrimSpace(rec.Type) {
		case "message", "":
			_, err = a.messages.Ingest(ctx, MessageInput{
				Text:       rec.Text,
				UserID:     rec.UserID,
				MessageID:  rec.MessageID,
				ProjectID:  rec.ProjectID,
				SessionID:  rec.SessionID,
				Timestamp:  rec.Timestamp,
				IsTwinChat: rec.IsTwinChat,
				IsPrivate:  rec.IsPrivate,
				Metadata:   rec.Metadata,
			})
			if err == nil {
				summary.Messages++
				summary.Chunks++
			}
		case "document":
			isPrivate := false
			if rec.IsPrivate != nil {
				isPrivate = *rec.IsPrivate
			}
			var n int
			_, n, err = a.documents.IngestDocument(ctx, DocumentInput{
				Text:      rec.Text,
				DocID:     rec.DocID,
				DocName:   rec.DocName,
				UserID:    rec.UserID,
				ProjectID: rec.ProjectID,
				SessionID: rec.SessionID,
				Timestamp: rec.Timestamp,
				IsPrivate: isPrivate,
				Metadata:  rec.Metadata,
			})
			if err == nil {
				summary.Documents++
				summary.Chunks += n
			}
		case "transcript_snippet":
			isPrivate := false
			if rec.IsPrivate != nil {
				isPrivate = *rec.IsPrivate
			}
			ts := rec.Timestamp
			if ts.IsZero() {
				ts = time.Now().UTC()
			}
			_, err = a.documents.IngestChunk(ctx, TranscriptChunkInput{
				Text:      rec.Text,
				UserID:    rec.UserID,
				SessionID: rec.SessionID,
				DocID:     rec.DocID,
				ProjectID: rec.ProjectID,
				Timestamp: ts,
				IsPrivate: isPrivate,
				Metadata:  rec.Metadata,
			})
			if err == nil {
				summary.Transcripts++
				summary.Chunks++
			}
		default:
			err = domain.Errorf(domain.KindInvalidInput, op, "unknown seed record type %q", rec.Type)
		}
		if err != nil {
			if domain.KindOf(err) == domain.KindCancelled {
				return summary, err
			}
			summary.Failed++
			a.log.Warn("seed record failed", "index", i, "type", rec.Type, "error", err)
		}
	}
	a.log.Info("seed complete",
		"messages", summary.Messages,
		"documents", summary.Documents,
		"transcripts", summary.Transcripts,
		"chunks", summary.Chunks,
		"failed", summary.Failed,
	)
	return summary, nil
}

// ClearAll wipes both stores. Graph first: a half-cleared vector collection
// with a full graph is harder to reason about than the reverse.
func (a *AdminService) ClearAll(ctx context.Context) (*ClearSummary, error) {
	const op = "admin.clear_all"
	nodes, edges, err := a.graph.WipeAll(ctx)
	if err != nil {
		return nil, domain.Wrap(op, err, domain.KindStoreTransient)
	}
	vectors, err := a.vectors.DropAll(ctx)
	if err != nil {
		return nil, domain.Wrap(op, err, domain.KindStoreTransient)
	}
	summary := &ClearSummary{
		GraphNodesDeleted: nodes,
		GraphEdgesDeleted: edges,
		VectorsDeleted:    vectors,
	}
	a.log.Info("stores cleared",
		"graph_nodes", nodes,
		"graph_edges", edges,
		"vectors", vectors,
	)
	return summary, nil
}

// demoCorpus is a small multi-user fixture: two users in one project session,
// a shared design doc, one private twin exchange, and topic-tagged preference
// statements. Enough to exercise every retrieval flavor by hand.
func demoCorpus() []SeedRecord {
	priv := true
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return []SeedRecord{
		{
			Type: "message", UserID: "alice", ProjectID: "book-sprint", SessionID: "kickoff",
			Timestamp: base,
			Text:      "Let's lock the outline today so drafting can start Monday.",
			Metadata:  map[string]any{"topics": []string{"planning"}},
		},
		{
			Type: "message", UserID: "bob", ProjectID: "book-sprint", SessionID: "kickoff",
			Timestamp: base.Add(2 * time.Minute),
			Text:      "Agreed. I prefer short chapters, ten pages max, easier to review.",
			Metadata:  map[string]any{"preference_topics": []string{"chapter length"}},
		},
		{
			Type: "message", UserID: "alice", ProjectID: "book-sprint", SessionID: "kickoff",
			Timestamp: base.Add(4 * time.Minute),
			Text:      "For the cover I'd rather use the illustrated style than photography.",
			Metadata:  map[string]any{"preference_topics": []string{"cover design"}},
		},
		{
			Type: "document", UserID: "alice", ProjectID: "book-sprint", DocID: "outline-v1",
			DocName:   "Outline v1",
			Timestamp: base.Add(10 * time.Minute),
			Text: "Part one covers the origins of the collaboration and the early field notes.\n\n" +
				"Part two walks through the tooling: the shared workspace, the review loop, and the publishing pipeline.\n\n" +
				"Part three collects the retrospectives and the lessons each contributor took away.",
			Metadata: map[string]any{"topics": []string{"planning", "outline"}},
		},
		{
			Type: "message", UserID: "bob", IsTwinChat: true, IsPrivate: &priv,
			Timestamp: base.Add(20 * time.Minute),
			Text:      "Remind me to push back on the photography cover, it blew the budget last time.",
			Metadata:  map[string]any{"preference_topics": []string{"cover design"}},
		},
		{
			Type: "transcript_snippet", UserID: "alice", ProjectID: "book-sprint",
			SessionID: "kickoff", DocID: "kickoff-recording",
			Timestamp: base.Add(30 * time.Minute),
			Text:      "Alice: we close with action items, Bob takes chapters one through three.",
		},
	}
}
