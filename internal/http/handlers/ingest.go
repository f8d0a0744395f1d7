package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lishiyo/twincore-prototype-sub000/internal/http/response"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/apierr"
	"github.com/lishiyo/twincore-prototype-sub000/internal/services"
)

type IngestHandler struct {
	messages  *services.MessageConnector
	documents *services.DocumentConnector
}

func NewIngestHandler(messages *services.MessageConnector, documents *services.DocumentConnector) *IngestHandler {
	return &IngestHandler{messages: messages, documents: documents}
}

type ingestMessageReq struct {
	Text       string         `json:"text"`
	UserID     string         `json:"user_id"`
	MessageID  string         `json:"message_id"`
	ProjectID  string         `json:"project_id"`
	SessionID  string         `json:"session_id"`
	Timestamp  *time.Time     `json:"timestamp"`
	IsTwinChat bool           `json:"is_twin_chat"`
	IsPrivate  *bool          `json:"is_private"`
	Metadata   map[string]any `json:"metadata"`
}

// POST /v1/ingest/message
func (h *IngestHandler) IngestMessage(c *gin.Context) {
	var req ingestMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, 400, "invalid_request", err)
		return
	}
	in := services.MessageInput{
		Text:       req.Text,
		UserID:     req.UserID,
		MessageID:  req.MessageID,
		ProjectID:  req.ProjectID,
		SessionID:  req.SessionID,
		IsTwinChat: req.IsTwinChat,
		IsPrivate:  req.IsPrivate,
		Metadata:   req.Metadata,
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}
	chunk, err := h.messages.Ingest(c.Request.Context(), in)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{
		"status":     "accepted",
		"chunk_id":   chunk.ChunkID,
		"message_id": chunk.MessageID,
	})
}

type ingestDocumentReq struct {
	Text      string         `json:"text"`
	DocID     string         `json:"doc_id"`
	DocName   string         `json:"doc_name"`
	UserID    string         `json:"user_id"`
	ProjectID string         `json:"project_id"`
	SessionID string         `json:"session_id"`
	SourceURI string         `json:"source_uri"`
	Timestamp *time.Time     `json:"timestamp"`
	IsPrivate bool           `json:"is_private"`
	Metadata  map[string]any `json:"metadata"`
}

// POST /v1/ingest/document
func (h *IngestHandler) IngestDocument(c *gin.Context) {
	var req ingestDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, 400, "invalid_request", err)
		return
	}
	in := services.DocumentInput{
		Text:      req.Text,
		DocID:     req.DocID,
		DocName:   req.DocName,
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		SessionID: req.SessionID,
		SourceURI: req.SourceURI,
		IsPrivate: req.IsPrivate,
		Metadata:  req.Metadata,
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}
	docID, chunkCount, err := h.documents.IngestDocument(c.Request.Context(), in)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{
		"status":      "accepted",
		"doc_id":      docID,
		"chunk_count": chunkCount,
	})
}

type ingestChunkReq struct {
	Text      string         `json:"text"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
	DocID     string         `json:"doc_id"`
	ProjectID string         `json:"project_id"`
	Timestamp *time.Time     `json:"timestamp"`
	IsPrivate bool           `json:"is_private"`
	Metadata  map[string]any `json:"metadata"`
}

// POST /v1/ingest/chunk
func (h *IngestHandler) IngestChunk(c *gin.Context) {
	var req ingestChunkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, 400, "invalid_request", err)
		return
	}
	in := services.TranscriptChunkInput{
		Text:      req.Text,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		DocID:     req.DocID,
		ProjectID: req.ProjectID,
		IsPrivate: req.IsPrivate,
		Metadata:  req.Metadata,
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}
	chunk, err := h.documents.IngestChunk(c.Request.Context(), in)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{
		"status":   "accepted",
		"chunk_id": chunk.ChunkID,
		"doc_id":   chunk.DocID,
	})
}

type updateDocumentMetadataReq struct {
	SourceURI string         `json:"source_uri"`
	Metadata  map[string]any `json:"metadata"`
}

// POST /v1/documents/:doc_id/metadata
func (h *IngestHandler) UpdateDocumentMetadata(c *gin.Context) {
	docID := c.Param("doc_id")
	var req updateDocumentMetadataReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, 400, "invalid_request", err)
		return
	}
	updated, err := h.documents.UpdateDocumentMetadata(c.Request.Context(), docID, req.SourceURI, req.Metadata)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if !updated {
		response.RespondDomainError(c, apierr.New(404, "document_not_found",
			fmt.Errorf("document %s not found", docID)))
		return
	}
	response.RespondOK(c, gin.H{"status": "updated", "doc_id": docID})
}
