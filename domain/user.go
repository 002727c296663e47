package domain

import "time"

// UserID is the opaque identity of a user, owned by the user store.
type UserID string

func (u UserID) String() string { return string(u) }

// User is immutable once created.
type User struct {
	ID        UserID
	Name      string
	CreatedAt time.Time
}
