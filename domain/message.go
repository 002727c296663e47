// Package domain contains core concepts of the messenger.
// This file defines Message and the rules attached to it.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

type MessageID string

func (m MessageID) String() string { return string(m) }

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
)

// previewLength is the number of runes kept when a text message is summarised.
const previewLength = 30

var mediaPreviews = map[MessageType]string{
	MessageTypeImage:    "📷 Photo",
	MessageTypeAudio:    "🎵 Voice message",
	MessageTypeVideo:    "🎬 Video",
	MessageTypeDocument: "📄 Document",
}

// ParseMessageType maps the wire tag to a MessageType. An empty tag means text.
func ParseMessageType(s string) (MessageType, error) {
	if s == "" {
		return MessageTypeText, nil
	}
	t := MessageType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unsupported message type %q", s)
	}
	return t, nil
}

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeAudio, MessageTypeVideo, MessageTypeDocument:
		return true
	}
	return false
}

func (t MessageType) IsMedia() bool {
	return t.Valid() && t != MessageTypeText
}

// Message is a one-to-one chat message.
// It is persisted exactly once; only IsRead changes afterwards, and only through the recipient.
type Message struct {
	ID            MessageID
	SenderID      UserID
	ReceiverID    UserID
	Content       string
	Type          MessageType
	FileURL       string
	CreatedAt     time.Time
	IsRead        bool
	CorrelationID string
}

func (m Message) HasParticipant(userID UserID) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Peer returns the other participant of the conversation seen from userID.
func (m Message) Peer(userID UserID) UserID {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Preview is the short label shown in a chat list.
func (m Message) Preview() string {
	if label, ok := mediaPreviews[m.Type]; ok {
		return label
	}
	if m.Content == "" {
		return "Media"
	}
	if utf8.RuneCountInString(m.Content) > previewLength {
		return string([]rune(m.Content)[:previewLength]) + "..."
	}
	return m.Content
}
