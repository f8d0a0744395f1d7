package graph

import "testing"

func TestDocumentUpdatePropsAllowsFreeFormKeys(t *testing.T) {
	t.Parallel()

	props := documentUpdateProps("s3://bucket/report.pdf", map[string]any{
		"review-date":  "2026-09-01",
		"author email": "alice@example.com",
		"page_count":   12,
		"document_id":  "forged",
		"doc_id":       "forged",
	})

	if props["review-date"] != "2026-09-01" || props["author email"] != "alice@example.com" {
		t.Fatalf("free-form metadata keys must pass through: %v", props)
	}
	if props["page_count"] != 12 {
		t.Fatalf("plain keys lost: %v", props)
	}
	if _, ok := props["document_id"]; ok {
		t.Fatalf("document_id must stay immutable")
	}
	if _, ok := props["doc_id"]; ok {
		t.Fatalf("doc_id must stay immutable")
	}
	if props["source_uri"] != "s3://bucket/report.pdf" {
		t.Fatalf("source_uri missing: %v", props)
	}
}

func TestDocumentUpdatePropsOmitsEmptySourceURI(t *testing.T) {
	t.Parallel()

	props := documentUpdateProps("", map[string]any{"status": "final"})
	if _, ok := props["source_uri"]; ok {
		t.Fatalf("empty source_uri must not clear the stored value: %v", props)
	}
	if props["status"] != "final" {
		t.Fatalf("metadata lost: %v", props)
	}
}
