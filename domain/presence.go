package domain

import "time"

// PresenceState is derived from the connection registry, never asserted by clients.
type PresenceState int

const (
	Offline PresenceState = iota
	Online
)

func (p PresenceState) String() string {
	if p == Online {
		return "online"
	}
	return "offline"
}

// PresenceChange is a registry transition: a user gained its first live
// connection, or its current connection went away.
type PresenceChange struct {
	UserID UserID
	State  PresenceState
	At     time.Time
}
