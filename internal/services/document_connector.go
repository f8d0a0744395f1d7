package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lishiyo/twincore-prototype-sub000/internal/data/graph"
	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
	"github.com/lishiyo/twincore-prototype-sub000/internal/ingestion/chunker"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/logger"
)

// DocumentInput is a whole document to chunk and ingest.
type DocumentInput struct {
	Text      string         `json:"text"`
	DocID     string         `json:"doc_id"`
	DocName   string         `json:"doc_name"`
	UserID    string         `json:"user_id"`
	ProjectID string         `json:"project_id"`
	SessionID string         `json:"session_id"`
	SourceURI string         `json:"source_uri"`
	Timestamp time.Time      `json:"timestamp"`
	IsPrivate bool           `json:"is_private"`
	Metadata  map[string]any `json:"metadata"`
}

// TranscriptChunkInput is one streaming transcript utterance. Unlike document
// ingest, every context id is required: late-arriving utterances must still
// land in a coherent graph.
type TranscriptChunkInput struct {
	Text      string         `json:"text"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
	DocID     string         `json:"doc_id"`
	ProjectID string         `json:"project_id"`
	Timestamp time.Time      `json:"timestamp"`
	IsPrivate bool           `json:"is_private"`
	Metadata  map[string]any `json:"metadata"`
}

type DocumentConnector struct {
	log          *logger.Logger
	coordinator  *Coordinator
	graph        Graph
	chunkSize    int
	chunkOverlap int
}

func NewDocumentConnector(log *logger.Logger, coordinator *Coordinator, g Graph, chunkSize, chunkOverlap int) *DocumentConnector {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 200
	}
	return &DocumentConnector{
		log:          log.With("service", "DocumentConnector"),
		coordinator:  coordinator,
		graph:        g,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// IngestDocument splits the text and ingests every piece under one shared
// doc id. Chunk privacy inherits the document flag.
func (dc *DocumentConnector) IngestDocument(ctx context.Context, in DocumentInput) (string, int, error) {
	const op = "document_connector.ingest_document"
	if strings.TrimSpace(in.Text) == "" {
		return "", 0, domain.Errorf(domain.KindInvalidInput, op, "text is required")
	}
	if in.IsPrivate && strings.TrimSpace(in.UserID) == "" {
		return "", 0, domain.Errorf(domain.KindInvalidInput, op, "private document requires user_id")
	}

	docID := strings.TrimSpace(in.DocID)
	if docID == "" {
		docID = uuid.NewString()
	}
	docName := strings.TrimSpace(in.DocName)
	if docName == "" {
		docName = "Document " + docID
	}
	timestamp := in.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	pieces := chunker.Split(in.Text, chunker.Options{
		ChunkSize: dc.chunkSize,
		Overlap:   dc.chunkOverlap,
		Boundary:  chunker.BoundaryParagraphs,
	})
	if len(pieces) == 0 {
		pieces = []string{in.Text}
	}

	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		metadata := map[string]any{
			"original_document": docName,
			"chunk_index":       i,
			"total_chunks":      len(pieces),
		}
		for k, v := range in.Metadata {
			metadata[k] = v
		}
		chunks = append(chunks, domain.Chunk{
			ChunkID:    uuid.NewString(),
			Text:       piece,
			SourceType: domain.SourceDocumentChunk,
			UserID:     in.UserID,
			ProjectID:  in.ProjectID,
			SessionID:  in.SessionID,
			DocID:      docID,
			DocName:    docName,
			Timestamp:  timestamp,
			IsPrivate:  in.IsPrivate,
			Metadata:   metadata,
		})
	}

	if in.SourceURI != "" {
		// Best-effort: the document node gets its URI even if a later chunk fails.
		if _, err := dc.graph.MergeNode(ctx, graph.NodeMerge{
			Label:    graph.LabelDocument,
			Key:      map[string]any{"document_id": docID},
			OnCreate: map[string]any{"name": docName, "source_uri": in.SourceURI, "is_private": in.IsPrivate},
		}); err != nil {
			dc.log.Warn("document node pre-merge failed", "doc_id", docID, "error", err)
		}
	}

	if err := dc.coordinator.IngestBatch(ctx, chunks); err != nil {
		return docID, 0, err
	}
	dc.log.Info("document ingested",
		"doc_id", docID,
		"chunks", len(chunks),
		"user_id", in.UserID,
	)
	return docID, len(chunks), nil
}

// IngestChunk is the single-utterance transcript path. The parent Document
// node and its session attachment are merged before the chunk goes through
// the coordinator, so a brand-new doc id still yields a valid graph.
func (dc *DocumentConnector) IngestChunk(ctx context.Context, in TranscriptChunkInput) (domain.Chunk, error) {
	const op = "document_connector.ingest_chunk"
	switch {
	case strings.TrimSpace(in.Text) == "":
		return domain.Chunk{}, domain.Errorf(domain.KindInvalidInput, op, "text is required")
	case strings.TrimSpace(in.UserID) == "":
		return domain.Chunk{}, domain.Errorf(domain.KindInvalidInput, op, "user_id is required")
	case strings.TrimSpace(in.SessionID) == "":
		return domain.Chunk{}, domain.Errorf(domain.KindInvalidInput, op, "session_id is required")
	case strings.TrimSpace(in.DocID) == "":
		return domain.Chunk{}, domain.Errorf(domain.KindInvalidInput, op, "doc_id is required")
	case in.Timestamp.IsZero():
		return domain.Chunk{}, domain.Errorf(domain.KindInvalidInput, op, "timestamp is required")
	}

	docRef := graph.NodeRef{Label: graph.LabelDocument, Key: map[string]any{"document_id": in.DocID}}
	sessionRef := graph.NodeRef{Label: graph.LabelSession, Key: map[string]any{"session_id": in.SessionID}}
	err := dc.graph.Apply(ctx, []graph.Mutation{
		graph.NodeMerge{
			Label: graph.LabelDocument,
			Key:   docRef.Key,
			OnCreate: map[string]any{
				"name":        "Transcript Document " + in.DocID,
				"source_type": "transcript",
			},
		},
		graph.NodeMerge{Label: graph.LabelSession, Key: sessionRef.Key},
		graph.EdgeMerge{From: docRef, To: sessionRef, Type: graph.RelAttachedTo},
	})
	if err != nil {
		return domain.Chunk{}, domain.Wrap(op, err, domain.KindStoreTransient)
	}

	chunk := domain.Chunk{
		ChunkID:    uuid.NewString(),
		Text:       in.Text,
		SourceType: domain.SourceTranscriptSnippet,
		UserID:     in.UserID,
		ProjectID:  in.ProjectID,
		SessionID:  in.SessionID,
		DocID:      in.DocID,
		Timestamp:  in.Timestamp,
		IsPrivate:  in.IsPrivate,
		Metadata:   in.Metadata,
	}
	if err := dc.coordinator.IngestChunk(ctx, chunk); err != nil {
		return domain.Chunk{}, err
	}
	return chunk, nil
}

// UpdateDocumentMetadata delegates to the graph DAL; vectors are untouched.
func (dc *DocumentConnector) UpdateDocumentMetadata(ctx context.Context, docID, sourceURI string, metadata map[string]any) (bool, error) {
	const op = "document_connector.update_document_metadata"
	if strings.TrimSpace(docID) == "" {
		return false, domain.Errorf(domain.KindInvalidInput, op, "doc_id is required")
	}
	return dc.graph.UpdateDocumentMetadata(ctx, docID, sourceURI, metadata)
}
