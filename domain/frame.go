package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Frame type tags exchanged over a websocket connection. Inbound frames
// with a tag outside this set are rejected, not silently dropped.
const (
	FrameHeartbeat         = "heartbeat"
	FrameHeartbeatResponse = "heartbeat_response"
	FrameActivity          = "activity"
	FrameMessage           = "message"
	FrameResume            = "resume"
	FrameNotification      = "notification"
	FramePresence          = "presence"
	FrameChatMessage       = "chat_message"
	FrameFileShared        = "file_shared"
	FrameError             = "error"
)

const (
	ActivityInput   = "input"
	ActivityVisible = "visible"
	ActivityHidden  = "hidden"
)

type HeartbeatFrame struct {
	Type string `json:"type"`
}

type ActivityFrame struct {
	Type      string    `json:"type"`
	Signal    string    `json:"signal"`
	Timestamp time.Time `json:"timestamp"`
}

type MessageFrame struct {
	Type       string `json:"type"`
	WorkItemID uint64 `json:"workItemId"`
	Content    string `json:"content"`
}

type ResumeFrame struct {
	Type        string `json:"type"`
	LastEventID uint64 `json:"lastEventId"`
}

type ErrorFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// InboundFrame is the decoded form of one client frame. Exactly one of
// the variant fields is set, matching Kind.
type InboundFrame struct {
	Kind     string
	Activity *ActivityFrame
	Message  *MessageFrame
	Resume   *ResumeFrame
}

// DecodeInboundFrame parses a client frame by its type tag.
func DecodeInboundFrame(data []byte) (*InboundFrame, error) {
	var tag struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("decode frame tag: %w", err)
	}

	frame := InboundFrame{Kind: tag.Type}

	switch tag.Type {
	case FrameHeartbeat:
	case FrameActivity:
		frame.Activity = &ActivityFrame{}
		if err := json.Unmarshal(data, frame.Activity); err != nil {
			return nil, fmt.Errorf("decode activity frame: %w", err)
		}
	case FrameMessage:
		frame.Message = &MessageFrame{}
		if err := json.Unmarshal(data, frame.Message); err != nil {
			return nil, fmt.Errorf("decode message frame: %w", err)
		}
	case FrameResume:
		frame.Resume = &ResumeFrame{}
		if err := json.Unmarshal(data, frame.Resume); err != nil {
			return nil, fmt.Errorf("decode resume frame: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, tag.Type)
	}

	return &frame, nil
}

func NewHeartbeatResponse() HeartbeatFrame {
	return HeartbeatFrame{Type: FrameHeartbeatResponse}
}

func NewErrorFrame(reason string) ErrorFrame {
	return ErrorFrame{Type: FrameError, Reason: reason}
}
