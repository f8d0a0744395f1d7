package domain

import (
	"testing"
	"time"
)

func validChunk() Chunk {
	return Chunk{
		ChunkID:    "c1",
		Text:       "some text",
		SourceType: SourceMessage,
		UserID:     "u1",
		MessageID:  "m1",
		Timestamp:  time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestChunkValidateOK(t *testing.T) {
	t.Parallel()
	if err := validChunk().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChunkValidateRejections(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		mutate func(*Chunk)
	}{
		{"missing chunk_id", func(c *Chunk) { c.ChunkID = " " }},
		{"empty text", func(c *Chunk) { c.Text = "" }},
		{"whitespace text", func(c *Chunk) { c.Text = "   " }},
		{"bad source type", func(c *Chunk) { c.SourceType = "email" }},
		{"private without owner", func(c *Chunk) { c.IsPrivate = true; c.UserID = "" }},
		{"message without message_id", func(c *Chunk) { c.MessageID = "" }},
		{"document without doc_id", func(c *Chunk) {
			c.SourceType = SourceDocumentChunk
			c.DocID = ""
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validChunk()
			tc.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !IsKind(err, KindInvalidInput) {
				t.Fatalf("expected invalid_input, got %v", KindOf(err))
			}
		})
	}
}

func TestChunkValidateTranscriptWithoutDocID(t *testing.T) {
	t.Parallel()
	// Transcript snippets are validated upstream by the connector; the chunk
	// itself only requires doc_id for document_chunk.
	c := validChunk()
	c.SourceType = SourceTranscriptSnippet
	c.MessageID = ""
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()
	c := Chunk{
		ChunkID:           "c2",
		Text:              "the text",
		SourceType:        SourceDocumentChunk,
		UserID:            "u1",
		ProjectID:         "p1",
		SessionID:         "s1",
		DocID:             "d1",
		DocName:           "Design Notes",
		Timestamp:         time.Date(2026, 1, 5, 8, 30, 0, 0, time.UTC),
		IsPrivate:         true,
		IsTwinInteraction: false,
		Metadata:          map[string]any{"topics": []any{"design"}},
	}
	got := ChunkFromPayload(c.Payload())
	if got.ChunkID != c.ChunkID || got.Text != c.Text || got.SourceType != c.SourceType {
		t.Fatalf("identity fields lost: %+v", got)
	}
	if got.UserID != c.UserID || got.ProjectID != c.ProjectID || got.SessionID != c.SessionID {
		t.Fatalf("scope fields lost: %+v", got)
	}
	if got.DocID != c.DocID || got.DocName != c.DocName {
		t.Fatalf("document fields lost: %+v", got)
	}
	if !got.IsPrivate || got.IsTwinInteraction {
		t.Fatalf("visibility flags lost: %+v", got)
	}
	if !got.Timestamp.Equal(c.Timestamp) {
		t.Fatalf("timestamp mismatch: got=%v want=%v", got.Timestamp, c.Timestamp)
	}
	if got.Metadata == nil {
		t.Fatalf("metadata lost")
	}
}

func TestPayloadOmitsEmptyScopeFields(t *testing.T) {
	t.Parallel()
	p := Chunk{ChunkID: "c3", Text: "t", SourceType: SourceQuery, UserID: "u1"}.Payload()
	for _, field := range []string{FieldProjectID, FieldSessionID, FieldDocID, FieldDocName, FieldMessageID, FieldMetadata} {
		if _, present := p[field]; present {
			t.Fatalf("empty field %s should be omitted", field)
		}
	}
	if _, present := p[FieldTimestampEpoch]; !present {
		t.Fatalf("timestamp_epoch must always be present")
	}
}

func TestChunkFromPayloadFallsBackToEpoch(t *testing.T) {
	t.Parallel()
	want := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	c := ChunkFromPayload(map[string]any{
		FieldChunkID:        "c4",
		FieldText:           "t",
		FieldTimestampEpoch: float64(want.Unix()),
	})
	if !c.Timestamp.Equal(want) {
		t.Fatalf("epoch fallback failed: got=%v want=%v", c.Timestamp, want)
	}
}

func TestChunkFromPayloadTolerantOfGarbage(t *testing.T) {
	t.Parallel()
	c := ChunkFromPayload(map[string]any{
		FieldChunkID:   42,
		FieldText:      nil,
		FieldTimestamp: "not-a-time",
		FieldIsPrivate: "yes",
	})
	if c.ChunkID != "" || c.Text != "" || c.IsPrivate {
		t.Fatalf("malformed fields should be dropped: %+v", c)
	}
}
