package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/collabhub/realtime/domain"
)

type chatPayload struct {
	Type       string `json:"type"`
	WorkItemID uint64 `json:"workItemId"`
	FromUserID uint64 `json:"from"`
	Content    string `json:"content"`
}

// chatForwarder is the edge where the chat-persistence collaborator
// plugs in: it turns an inbound frame into the stored event the fan-out
// carries. The writer persists first; no event exists if that fails.
type chatForwarder struct {
	uidGenerator domain.UIDGenerator
	writer       ChatWriter
}

// ChatWriter is the external chat store. The CRUD side owns the message
// tables; this service only needs the write to succeed.
type ChatWriter interface {
	InsertMessage(ctx context.Context, fromUserID uint64, workItemID uint64, content string) error
}

func NewChatForwarder(uidGenerator domain.UIDGenerator, writer ChatWriter) *chatForwarder {
	return &chatForwarder{
		uidGenerator: uidGenerator,
		writer:       writer,
	}
}

func (f *chatForwarder) Forward(ctx context.Context, fromUserID uint64, msg *domain.MessageFrame) (*domain.NotificationEvent, error) {
	if err := f.writer.InsertMessage(ctx, fromUserID, msg.WorkItemID, msg.Content); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	id, err := f.uidGenerator.NewUID(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}

	payload, err := json.Marshal(chatPayload{
		Type:       domain.FrameChatMessage,
		WorkItemID: msg.WorkItemID,
		FromUserID: fromUserID,
		Content:    msg.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	return &domain.NotificationEvent{
		ID:           id,
		Type:         domain.EventChatMessage,
		OriginUserID: fromUserID,
		WorkItemID:   msg.WorkItemID,
		Payload:      payload,
		CreatedAt:    time.Now(),
	}, nil
}
