package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Event types produced at the publish boundary.
const (
	EventChatMessage    = "chat_message"
	EventFileShared     = "file_shared"
	EventWorkItemUpdate = "work_item_update"
	EventNotification   = "notification"
)

// NotificationEvent is an immutable fact to be delivered. The id is
// unique and used for idempotent redelivery to reconnecting clients.
type NotificationEvent struct {
	ID           uint64          `json:"id"`
	Type         string          `json:"type"`
	OriginUserID uint64          `json:"originUserId"`
	WorkItemID   uint64          `json:"workItemId,omitempty"`
	Urgent       bool            `json:"urgent,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Audience describes the target of a publish. Either an explicit user
// set, or a work-item reference resolved through the membership
// collaborator. Exactly one should be set.
type Audience struct {
	UserIDs    []uint64
	WorkItemID uint64
}

// AudienceResolver is the membership collaborator: it turns a work-item
// reference into the set of users watching it.
type AudienceResolver interface {
	Resolve(ctx context.Context, workItemID uint64) ([]uint64, error)
}

// NotificationRouter fans one event out to every live connection of the
// audience that preference filtering leaves in.
type NotificationRouter interface {
	Publish(ctx context.Context, event *NotificationEvent, audience Audience) error
}

// NotificationStore is the persisted-notification collaborator: it keeps
// the badge-count copy of every event per recipient, whether or not the
// event was delivered live.
type NotificationStore interface {
	Insert(ctx context.Context, userID uint64, event *NotificationEvent) error
	List(ctx context.Context, userID uint64, beforeID *uint64, limit int) ([]NotificationEvent, error)
	UnreadCount(ctx context.Context, userID uint64) (int, error)
	MarkRead(ctx context.Context, userID uint64, eventID uint64) error
}

// ChatForwarder is the chat-persistence collaborator. Forward persists an
// inbound message and returns the stored event for fan-out; no event is
// published unless persistence succeeded.
type ChatForwarder interface {
	Forward(ctx context.Context, fromUserID uint64, msg *MessageFrame) (*NotificationEvent, error)
}

type UIDGenerator interface {
	NewUID(ctx context.Context) (uint64, error)
}

// PublishEventUseCase is the full publish path: assign an id, persist
// the per-recipient copies, then hand the event to the live fan-out.
type PublishEventUseCase interface {
	Execute(ctx context.Context, event *NotificationEvent, audience Audience) error
}
