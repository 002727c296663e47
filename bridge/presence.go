// Package bridge republishes presence transitions on external buses so that
// other services can follow who is online without holding a connection.
package bridge

import (
	"encoding/json"
	"messenger/domain"
	"time"
)

// PresenceMessage is the payload published on Redis and NATS.
type PresenceMessage struct {
	UserID string    `json:"userId"`
	State  string    `json:"state"`
	At     time.Time `json:"at"`
}

func encodePresence(change domain.PresenceChange) ([]byte, error) {
	return json.Marshal(PresenceMessage{
		UserID: change.UserID.String(),
		State:  change.State.String(),
		At:     change.At.UTC(),
	})
}
