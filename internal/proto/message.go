package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeSend     = "send"
	InboundTypeMarkRead = "mark_read"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNewMessage  = "new_message"
	EventMessageRead = "message_read"
)

// SendData asks the server to deliver a message to another user.
type SendData struct {
	ReceiverID int64  `json:"receiver_id"`
	Content    string `json:"content"`
}

// MarkReadData marks an inbound message as read.
type MarkReadData struct {
	MessageID int64 `json:"message_id"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessagePayload describes a persisted message on the wire.
type MessagePayload struct {
	ID         int64  `json:"id"`
	ChatBoxID  int64  `json:"chat_box_id,omitempty"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Content    string `json:"content"`
	IsRead     bool   `json:"is_read"`
	TS         int64  `json:"ts"`
}

// MessageReadPayload notifies a sender that their message was read.
type MessageReadPayload struct {
	MessageID int64 `json:"message_id"`
	ReadBy    int64 `json:"read_by"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
