package services

import (
	"context"
	"time"

	"github.com/lishiyo/twincore-prototype-sub000/internal/data/graph"
	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/logger"
)

// Coordinator owns dual-store ingestion: one authored chunk becomes one
// vector point and one graph subgraph. The legs run in order (embed, vector,
// graph); a graph failure after the vector committed is a partial ingest that
// operators reconcile through admin ops, never a silent rollback.
type Coordinator struct {
	log      *logger.Logger
	embedder Embedder
	vectors  VectorIndex
	graph    Graph
}

func NewCoordinator(log *logger.Logger, embedder Embedder, vectors VectorIndex, g Graph) *Coordinator {
	return &Coordinator{
		log:      log.With("service", "IngestionCoordinator"),
		embedder: embedder,
		vectors:  vectors,
		graph:    g,
	}
}

func (c *Coordinator) IngestChunk(ctx context.Context, chunk domain.Chunk) error {
	const op = "coordinator.ingest_chunk"
	if err := chunk.Validate(); err != nil {
		return err
	}
	if chunk.Timestamp.IsZero() {
		chunk.Timestamp = time.Now().UTC()
	}

	vector, err := c.embedder.EmbedOne(ctx, chunk.Text)
	if err != nil {
		return domain.Wrap(op, err, domain.KindEmbeddingFailure)
	}
	if err := c.vectors.Upsert(ctx, chunk, vector); err != nil {
		return domain.Wrap(op, err, domain.KindStoreTransient)
	}
	if err := c.graph.Apply(ctx, ChunkMutations(chunk)); err != nil {
		if domain.KindOf(err) == domain.KindCancelled {
			return domain.E(domain.KindCancelled, op, err)
		}
		c.log.Error("graph merge failed after vector upsert",
			"chunk_id", chunk.ChunkID,
			"doc_id", chunk.DocID,
			"error", err,
		)
		return domain.E(domain.KindPartialIngest, op, err)
	}
	return nil
}

// IngestBatch ingests a document's chunks with one embedding call, keeping
// vector upserts in slice (chunk_index) order. The graph leg runs per chunk
// after its vector committed; the first failure aborts the remainder.
func (c *Coordinator) IngestBatch(ctx context.Context, chunks []domain.Chunk) error {
	const op = "coordinator.ingest_batch"
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return err
		}
		if chunks[i].Timestamp.IsZero() {
			chunks[i].Timestamp = time.Now().UTC()
		}
		texts[i] = chunks[i].Text
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.Wrap(op, err, domain.KindEmbeddingFailure)
	}
	if len(vectors) != len(chunks) {
		return domain.Errorf(domain.KindEmbeddingFailure, op,
			"embedding count mismatch: want=%d got=%d", len(chunks), len(vectors))
	}

	for i := range chunks {
		if err := ctx.Err(); err != nil {
			return domain.E(domain.KindCancelled, op, err)
		}
		if err := c.vectors.Upsert(ctx, chunks[i], vectors[i]); err != nil {
			return domain.Wrap(op, err, domain.KindStoreTransient)
		}
		if err := c.graph.Apply(ctx, ChunkMutations(chunks[i])); err != nil {
			if domain.KindOf(err) == domain.KindCancelled {
				return domain.E(domain.KindCancelled, op, err)
			}
			c.log.Error("graph merge failed after vector upsert",
				"chunk_id", chunks[i].ChunkID,
				"doc_id", chunks[i].DocID,
				"error", err,
			)
			return domain.E(domain.KindPartialIngest, op, err)
		}
	}
	return nil
}

// ChunkMutations builds the graph subgraph for one chunk: the Chunk node
// always, context entities and their edges only for the ids present.
func ChunkMutations(chunk domain.Chunk) []graph.Mutation {
	ts := chunk.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	tsStr := ts.UTC().Format(time.RFC3339)

	chunkRef := graph.NodeRef{Label: graph.LabelChunk, Key: map[string]any{"chunk_id": chunk.ChunkID}}
	chunkProps := map[string]any{
		"text":                chunk.Text,
		"source_type":         string(chunk.SourceType),
		"timestamp":           tsStr,
		"is_private":          chunk.IsPrivate,
		"is_twin_interaction": chunk.IsTwinInteraction,
	}
	for k, v := range map[string]string{
		"user_id":    chunk.UserID,
		"project_id": chunk.ProjectID,
		"session_id": chunk.SessionID,
		"doc_id":     chunk.DocID,
		"message_id": chunk.MessageID,
	} {
		if v != "" {
			chunkProps[k] = v
		}
	}

	muts := []graph.Mutation{
		graph.NodeMerge{Label: graph.LabelChunk, Key: chunkRef.Key, OnCreate: chunkProps},
	}

	userRef := graph.NodeRef{Label: graph.LabelUser, Key: map[string]any{"user_id": chunk.UserID}}
	if chunk.UserID != "" {
		muts = append(muts, graph.NodeMerge{Label: graph.LabelUser, Key: userRef.Key})
		authorRel := graph.RelCreated
		if chunk.IsPrivate {
			authorRel = graph.RelOwns
		}
		muts = append(muts, graph.EdgeMerge{From: userRef, To: chunkRef, Type: authorRel})
	}

	projectRef := graph.NodeRef{Label: graph.LabelProject, Key: map[string]any{"project_id": chunk.ProjectID}}
	if chunk.ProjectID != "" {
		muts = append(muts, graph.NodeMerge{Label: graph.LabelProject, Key: projectRef.Key})
	}
	sessionRef := graph.NodeRef{Label: graph.LabelSession, Key: map[string]any{"session_id": chunk.SessionID}}
	if chunk.SessionID != "" {
		muts = append(muts, graph.NodeMerge{Label: graph.LabelSession, Key: sessionRef.Key, OnCreate: map[string]any{"timestamp": tsStr}})
		if chunk.ProjectID != "" {
			muts = append(muts, graph.EdgeMerge{From: sessionRef, To: projectRef, Type: graph.RelPartOf})
		}
		if chunk.UserID != "" {
			muts = append(muts, graph.EdgeMerge{From: userRef, To: sessionRef, Type: graph.RelParticipatedIn})
		}
	}

	switch {
	case chunk.SourceType == domain.SourceMessage && chunk.MessageID != "":
		messageRef := graph.NodeRef{Label: graph.LabelMessage, Key: map[string]any{"message_id": chunk.MessageID}}
		muts = append(muts, graph.NodeMerge{
			Label: graph.LabelMessage,
			Key:   messageRef.Key,
			OnCreate: map[string]any{
				"timestamp":           tsStr,
				"is_twin_interaction": chunk.IsTwinInteraction,
			},
		})
		muts = append(muts, graph.EdgeMerge{From: chunkRef, To: messageRef, Type: graph.RelPartOf})
		if chunk.UserID != "" {
			muts = append(muts, graph.EdgeMerge{From: userRef, To: messageRef, Type: graph.RelAuthored})
		}
		if chunk.SessionID != "" {
			muts = append(muts, graph.EdgeMerge{From: messageRef, To: sessionRef, Type: graph.RelPostedIn})
		}

	case (chunk.SourceType == domain.SourceDocumentChunk || chunk.SourceType == domain.SourceTranscriptSnippet) && chunk.DocID != "":
		docRef := graph.NodeRef{Label: graph.LabelDocument, Key: map[string]any{"document_id": chunk.DocID}}
		docProps := map[string]any{"is_private": chunk.IsPrivate}
		if chunk.DocName != "" {
			docProps["name"] = chunk.DocName
		}
		if chunk.SourceType == domain.SourceTranscriptSnippet {
			docProps["source_type"] = "transcript"
		}
		muts = append(muts, graph.NodeMerge{Label: graph.LabelDocument, Key: docRef.Key, OnCreate: docProps})
		muts = append(muts, graph.EdgeMerge{From: chunkRef, To: docRef, Type: graph.RelPartOf})
		if chunk.UserID != "" {
			muts = append(muts, graph.EdgeMerge{From: userRef, To: docRef, Type: graph.RelUploaded})
		}
		if chunk.SessionID != "" {
			muts = append(muts, graph.EdgeMerge{From: docRef, To: sessionRef, Type: graph.RelAttachedTo})
		} else if chunk.ProjectID != "" {
			muts = append(muts, graph.EdgeMerge{From: docRef, To: projectRef, Type: graph.RelPartOf})
		}

	case chunk.SessionID != "":
		muts = append(muts, graph.EdgeMerge{From: chunkRef, To: sessionRef, Type: graph.RelPartOf})

	case chunk.ProjectID != "":
		muts = append(muts, graph.EdgeMerge{From: chunkRef, To: projectRef, Type: graph.RelPartOf})
	}

	for _, topic := range metadataTopics(chunk.Metadata, "topics") {
		topicRef := graph.NodeRef{Label: graph.LabelTopic, Key: map[string]any{"name": topic}}
		muts = append(muts, graph.NodeMerge{Label: graph.LabelTopic, Key: topicRef.Key})
		muts = append(muts, graph.EdgeMerge{From: chunkRef, To: topicRef, Type: graph.RelMentions})
	}
	for _, topic := range metadataTopics(chunk.Metadata, "preference_topics") {
		topicRef := graph.NodeRef{Label: graph.LabelTopic, Key: map[string]any{"name": topic}}
		muts = append(muts, graph.NodeMerge{Label: graph.LabelTopic, Key: topicRef.Key})
		muts = append(muts, graph.EdgeMerge{From: chunkRef, To: topicRef, Type: graph.RelStatesPreference})
	}

	return muts
}

// metadataTopics reads a string list out of free-form metadata; both []string
// and decoded-JSON []any are accepted.
func metadataTopics(metadata map[string]any, key string) []string {
	if len(metadata) == 0 {
		return nil
	}
	var out []string
	switch raw := metadata[key].(type) {
	case []string:
		for _, t := range raw {
			if t != "" {
				out = append(out, t)
			}
		}
	case []any:
		for _, item := range raw {
			if t, ok := item.(string); ok && t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}
