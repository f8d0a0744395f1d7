package domain

import (
	"strings"
	"time"
)

// SourceType identifies where an authored unit of text came from.
type SourceType string

const (
	SourceMessage           SourceType = "message"
	SourceDocumentChunk     SourceType = "document_chunk"
	SourceTranscriptSnippet SourceType = "transcript_snippet"
	SourceQuery             SourceType = "query"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceMessage, SourceDocumentChunk, SourceTranscriptSnippet, SourceQuery:
		return true
	default:
		return false
	}
}

// Payload field names shared by the vector index and the HTTP surface.
const (
	FieldChunkID           = "chunk_id"
	FieldText              = "text"
	FieldSourceType        = "source_type"
	FieldUserID            = "user_id"
	FieldProjectID         = "project_id"
	FieldSessionID         = "session_id"
	FieldDocID             = "doc_id"
	FieldDocName           = "doc_name"
	FieldMessageID         = "message_id"
	FieldTimestamp         = "timestamp"
	FieldTimestampEpoch    = "timestamp_epoch"
	FieldIsPrivate         = "is_private"
	FieldIsTwinInteraction = "is_twin_interaction"
	FieldMetadata          = "metadata"
)

// Chunk is the atomic unit of memory. It lives in both stores: the vector
// index holds the payload plus the embedding, the graph holds a Chunk node
// wired to its authoring user and context entities.
type Chunk struct {
	ChunkID           string
	Text              string
	SourceType        SourceType
	UserID            string
	ProjectID         string
	SessionID         string
	DocID             string
	DocName           string
	MessageID         string
	Timestamp         time.Time
	IsPrivate         bool
	IsTwinInteraction bool
	Metadata          map[string]any
}

// Validate enforces the ingest-time invariants: non-empty id and text, a
// recognized source type, private content has an owner, and typed sources
// carry their parent id.
func (c Chunk) Validate() error {
	if strings.TrimSpace(c.ChunkID) == "" {
		return E(KindInvalidInput, "chunk.validate", strErr("chunk_id is required"))
	}
	if strings.TrimSpace(c.Text) == "" {
		return E(KindInvalidInput, "chunk.validate", strErr("text must be non-empty"))
	}
	if !c.SourceType.Valid() {
		return Errorf(KindInvalidInput, "chunk.validate", "unrecognized source_type %q", string(c.SourceType))
	}
	if c.IsPrivate && strings.TrimSpace(c.UserID) == "" {
		return E(KindInvalidInput, "chunk.validate", strErr("private chunk requires user_id"))
	}
	if c.SourceType == SourceDocumentChunk && strings.TrimSpace(c.DocID) == "" {
		return E(KindInvalidInput, "chunk.validate", strErr("document_chunk requires doc_id"))
	}
	if c.SourceType == SourceMessage && strings.TrimSpace(c.MessageID) == "" {
		return E(KindInvalidInput, "chunk.validate", strErr("message requires message_id"))
	}
	return nil
}

// Payload flattens the chunk into the vector-store payload map. The timestamp
// is stored twice: RFC3339 for readers, epoch seconds for range filters.
func (c Chunk) Payload() map[string]any {
	ts := c.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	p := map[string]any{
		FieldChunkID:           c.ChunkID,
		FieldText:              c.Text,
		FieldSourceType:        string(c.SourceType),
		FieldTimestamp:         ts.UTC().Format(time.RFC3339),
		FieldTimestampEpoch:    float64(ts.UnixNano()) / float64(time.Second),
		FieldIsPrivate:         c.IsPrivate,
		FieldIsTwinInteraction: c.IsTwinInteraction,
	}
	if c.UserID != "" {
		p[FieldUserID] = c.UserID
	}
	if c.ProjectID != "" {
		p[FieldProjectID] = c.ProjectID
	}
	if c.SessionID != "" {
		p[FieldSessionID] = c.SessionID
	}
	if c.DocID != "" {
		p[FieldDocID] = c.DocID
	}
	if c.DocName != "" {
		p[FieldDocName] = c.DocName
	}
	if c.MessageID != "" {
		p[FieldMessageID] = c.MessageID
	}
	if len(c.Metadata) > 0 {
		meta := make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			meta[k] = v
		}
		p[FieldMetadata] = meta
	}
	return p
}

// ChunkFromPayload rebuilds a Chunk from a vector-store payload. Unknown or
// malformed fields are dropped rather than failing the whole result.
func ChunkFromPayload(p map[string]any) Chunk {
	c := Chunk{
		ChunkID:           asString(p[FieldChunkID]),
		Text:              asString(p[FieldText]),
		SourceType:        SourceType(asString(p[FieldSourceType])),
		UserID:            asString(p[FieldUserID]),
		ProjectID:         asString(p[FieldProjectID]),
		SessionID:         asString(p[FieldSessionID]),
		DocID:             asString(p[FieldDocID]),
		DocName:           asString(p[FieldDocName]),
		MessageID:         asString(p[FieldMessageID]),
		IsPrivate:         asBool(p[FieldIsPrivate]),
		IsTwinInteraction: asBool(p[FieldIsTwinInteraction]),
	}
	if raw := asString(p[FieldTimestamp]); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			c.Timestamp = ts
		}
	}
	if c.Timestamp.IsZero() {
		if epoch, ok := p[FieldTimestampEpoch].(float64); ok && epoch > 0 {
			c.Timestamp = time.Unix(0, int64(epoch*float64(time.Second))).UTC()
		}
	}
	if meta, ok := p[FieldMetadata].(map[string]any); ok && len(meta) > 0 {
		c.Metadata = meta
	}
	return c
}

// ScoredChunk is one vector search hit.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
