package repositories

import (
	"messenger/internal"
	"strings"
	"time"
)

// InspectRow decodes the entries of this package's keyspace for the debug inspector.
func InspectRow(key string, val []byte) internal.InspectRow {
	row := internal.InspectRow{Key: key, Type: "RAW", Size: len(val)}
	namespace, _, _ := strings.Cut(key, ":")
	switch namespace {
	case "msg":
		if m, err := decodeMessage(val); err == nil {
			row.Type = "MESSAGE"
			row.Fields = map[string]any{
				"id":         m.ID,
				"senderId":   m.SenderID,
				"receiverId": m.ReceiverID,
				"type":       m.Type,
				"preview":    m.Preview(),
				"isRead":     m.IsRead,
				"createdAt":  m.CreatedAt.Format(time.RFC3339Nano),
			}
		}
	case "user":
		if u, err := decodeUser(val); err == nil {
			row.Type = "USER"
			row.Fields = map[string]any{"id": u.ID, "name": u.Name}
		}
	case "username":
		row.Type = "USERNAME_INDEX"
		row.Fields = map[string]any{"userId": string(val)}
	case "conv", "part":
		row.Type = "INDEX"
	}
	return row
}
