package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// documentUpdateProps builds the SET map for a metadata update. Keys travel
// as a Cypher parameter map, never spliced into statement text, so free-form
// names are fine; only the identity fields stay immutable.
func documentUpdateProps(sourceURI string, metadata map[string]any) map[string]any {
	props := map[string]any{}
	for k, v := range metadata {
		if k == "document_id" || k == "doc_id" {
			continue
		}
		props[k] = v
	}
	if sourceURI != "" {
		props["source_uri"] = sourceURI
	}
	return props
}

// UpdateDocumentMetadata applies post-ingest updates to a Document node only;
// vector records are untouched. Returns false when the document is unknown.
func (s *Store) UpdateDocumentMetadata(ctx context.Context, docID string, sourceURI string, metadata map[string]any) (bool, error) {
	const op = "graph.update_document_metadata"
	props := documentUpdateProps(sourceURI, metadata)

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (d:Document {document_id: $doc_id})
SET d += $props
RETURN count(d) AS n
`, map[string]any{
			"doc_id": docID,
			"props":  props,
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := record.Get("n")
		return n, nil
	})
	if err != nil {
		return false, classifyError(op, err)
	}
	n, _ := result.(int64)
	return n > 0, nil
}
