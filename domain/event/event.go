// Package event defines the wire events exchanged with live connections.
// Names are kept stable for client compatibility.
package event

import (
	"encoding/json"
	"messenger/domain"
	"time"
)

type Name string

// Outbound events pushed to connections.
const (
	ReceiveMessage Name = "receive_message"
	MessageSent    Name = "message_sent"
	UserOnline     Name = "user_online"
	UserOffline    Name = "user_offline"
	UserTyping     Name = "user_typing"
	UserStopTyping Name = "user_stop_typing"
	Error          Name = "error"
)

// Inbound events sent by clients.
const (
	Authenticate  Name = "authenticate"
	SendMessage   Name = "send_message"
	Typing        Name = "typing"
	StopTyping    Name = "stop_typing"
	MarkRead      Name = "mark_read"
	DeleteMessage Name = "delete_message"
)

// Envelope frames every event on the wire: {"event": "...", "data": {...}}.
type Envelope struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode serializes an outbound event into its envelope.
func Encode(name Name, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: data})
}

type MessagePayload struct {
	ID            string    `json:"id"`
	SenderID      string    `json:"senderId"`
	ReceiverID    string    `json:"receiverId"`
	Content       string    `json:"content"`
	Type          string    `json:"type"`
	FileURL       string    `json:"fileUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	IsRead        bool      `json:"isRead"`
	CorrelationID string    `json:"correlationId,omitempty"`
}

func NewMessagePayload(m domain.Message) MessagePayload {
	return MessagePayload{
		ID:            m.ID.String(),
		SenderID:      m.SenderID.String(),
		ReceiverID:    m.ReceiverID.String(),
		Content:       m.Content,
		Type:          string(m.Type),
		FileURL:       m.FileURL,
		CreatedAt:     m.CreatedAt,
		IsRead:        m.IsRead,
		CorrelationID: m.CorrelationID,
	}
}

type PresencePayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

// TypingPayload carries ExpiresInMs so receivers clear the indicator on their
// own; a stop signal is never guaranteed to arrive.
type TypingPayload struct {
	UserID      string `json:"userId"`
	Username    string `json:"username,omitempty"`
	ReceiverID  string `json:"receiverId"`
	ExpiresInMs int64  `json:"expiresInMs"`
}

type StopTypingPayload struct {
	UserID     string `json:"userId"`
	ReceiverID string `json:"receiverId"`
}

type ErrorPayload struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Inbound payloads.

type SendMessageRequest struct {
	ReceiverID    string `json:"receiverId"`
	Content       string `json:"content"`
	Type          string `json:"type"`
	FileURL       string `json:"fileUrl"`
	CorrelationID string `json:"correlationId"`
}

type TypingRequest struct {
	ReceiverID string `json:"receiverId"`
}

type MarkReadRequest struct {
	MessageIDs []string `json:"messageIds"`
}

type DeleteMessageRequest struct {
	MessageID string `json:"messageId"`
}
