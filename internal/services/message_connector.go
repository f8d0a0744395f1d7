package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/logger"
)

// MessageInput is a chat or twin-dialogue message to ingest.
type MessageInput struct {
	Text       string         `json:"text"`
	UserID     string         `json:"user_id"`
	MessageID  string         `json:"message_id"`
	ProjectID  string         `json:"project_id"`
	SessionID  string         `json:"session_id"`
	Timestamp  time.Time      `json:"timestamp"`
	IsTwinChat bool           `json:"is_twin_chat"`
	// IsPrivate defaults to IsTwinChat when omitted: twin dialogue is private
	// by convention unless the caller overrides.
	IsPrivate *bool          `json:"is_private"`
	Metadata  map[string]any `json:"metadata"`
}

type MessageConnector struct {
	log         *logger.Logger
	coordinator *Coordinator
}

func NewMessageConnector(log *logger.Logger, coordinator *Coordinator) *MessageConnector {
	return &MessageConnector{
		log:         log.With("service", "MessageConnector"),
		coordinator: coordinator,
	}
}

// Ingest validates the message, fills generated ids and defaults, and emits
// one chunk through the coordinator.
func (mc *MessageConnector) Ingest(ctx context.Context, in MessageInput) (domain.Chunk, error) {
	const op = "message_connector.ingest"
	if strings.TrimSpace(in.Text) == "" {
		return domain.Chunk{}, domain.Errorf(domain.KindInvalidInput, op, "text is required")
	}
	if strings.TrimSpace(in.UserID) == "" {
		return domain.Chunk{}, domain.Errorf(domain.KindInvalidInput, op, "user_id is required")
	}

	messageID := strings.TrimSpace(in.MessageID)
	if messageID == "" {
		messageID = uuid.NewString()
	}
	timestamp := in.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	isPrivate := in.IsTwinChat
	if in.IsPrivate != nil {
		isPrivate = *in.IsPrivate
	}

	chunk := domain.Chunk{
		ChunkID:           uuid.NewString(),
		Text:              in.Text,
		SourceType:        domain.SourceMessage,
		UserID:            in.UserID,
		ProjectID:         in.ProjectID,
		SessionID:         in.SessionID,
		MessageID:         messageID,
		Timestamp:         timestamp,
		IsPrivate:         isPrivate,
		IsTwinInteraction: in.IsTwinChat,
		Metadata:          in.Metadata,
	}
	if err := mc.coordinator.IngestChunk(ctx, chunk); err != nil {
		return domain.Chunk{}, err
	}
	mc.log.Debug("message ingested",
		"chunk_id", chunk.ChunkID,
		"message_id", messageID,
		"user_id", in.UserID,
		"is_twin_chat", in.IsTwinChat,
	)
	return chunk, nil
}
