package domain

import "time"

// ChatSummary is one entry of a user's chat list.
type ChatSummary struct {
	PeerID          UserID
	PeerName        string
	LastMessage     string
	LastMessageTime time.Time
	UnreadCount     int
	Online          bool
}

// Contact is another user as seen from the contact list.
type Contact struct {
	ID     UserID
	Name   string
	Online bool
}
