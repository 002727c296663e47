package api

import (
	"messenger/domain"
	"time"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SendMessageRequest struct {
	ReceiverID    string `json:"receiverId" binding:"required"`
	Content       string `json:"content"`
	Type          string `json:"type"`
	FileURL       string `json:"fileUrl"`
	CorrelationID string `json:"correlationId"`
}

type MarkReadRequest struct {
	MessageIDs []string `json:"messageIds" binding:"required"`
}

type MarkReadResponse struct {
	Updated int `json:"updated"`
}

type ContactResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

type ChatResponse struct {
	UserID          string    `json:"userId"`
	Username        string    `json:"username"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
	Online          bool      `json:"online"`
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func toContactResponse(c domain.Contact, _ int) ContactResponse {
	return ContactResponse{ID: c.ID.String(), Username: c.Name, Online: c.Online}
}

func toChatResponse(c domain.ChatSummary, _ int) ChatResponse {
	return ChatResponse{
		UserID:          c.PeerID.String(),
		Username:        c.PeerName,
		LastMessage:     c.LastMessage,
		LastMessageTime: c.LastMessageTime,
		UnreadCount:     c.UnreadCount,
		Online:          c.Online,
	}
}
