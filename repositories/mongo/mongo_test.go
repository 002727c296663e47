package mongo

import (
	"context"
	"fmt"
	"messenger/domain"
	customerrors "messenger/errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to MONGO_URI on a throwaway database.
func newTestClient(t *testing.T) *Client {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := NewClient(ctx, uri, fmt.Sprintf("messenger_test_%s", uuid.NewString()[:8]))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.database.Drop(ctx)
		_ = client.Close(ctx)
	})
	return client
}

func TestMongo_Conversation_Round_Trip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	messages := newTestClient(t).Messages()

	// Given three messages, the first one the most recent
	at := time.Now().UTC().Truncate(time.Millisecond)
	for i, content := range []string{"third", "first", "second"} {
		offset := []time.Duration{2, 0, 1}[i] * time.Second
		_, err := messages.InsertMessage(ctx, domain.Message{
			SenderID: "alice", ReceiverID: "bob", Content: content,
			Type: domain.MessageTypeText, CreatedAt: at.Add(offset),
		})
		req.NoError(err)
	}

	// When the two most recent are fetched
	conversation, err := messages.FindConversation(ctx, "bob", "alice", 2)

	// Then they come back oldest first
	req.NoError(err)
	req.Len(conversation, 2)
	req.Equal("second", conversation[0].Content)
	req.Equal("third", conversation[1].Content)

	// And only bob can mark them read
	ids := []domain.MessageID{conversation[0].ID, conversation[1].ID}
	count, err := messages.SetRead(ctx, ids, "alice")
	req.NoError(err)
	req.Zero(count)
	count, err = messages.SetRead(ctx, ids, "bob")
	req.NoError(err)
	req.Equal(2, count)

	// And a stranger cannot delete
	deleted, err := messages.DeleteMessage(ctx, ids[0], "mallory")
	req.NoError(err)
	req.False(deleted)
	deleted, err = messages.DeleteMessage(ctx, ids[0], "alice")
	req.NoError(err)
	req.True(deleted)

	byBob, err := messages.FindByParticipant(ctx, "bob")
	req.NoError(err)
	req.Len(byBob, 2)
}

func TestMongo_Users(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	users := newTestClient(t).Users()

	alice, err := users.CreateUser(ctx, "Alice")
	req.NoError(err)
	_, err = users.CreateUser(ctx, "alice")
	req.ErrorIs(err, customerrors.ErrUserAlreadyExists)

	exists, err := users.Exists(ctx, alice.ID)
	req.NoError(err)
	req.True(exists)

	name, found, err := users.DisplayName(ctx, alice.ID)
	req.NoError(err)
	req.True(found)
	req.Equal("Alice", name)

	_, found, err = users.DisplayName(ctx, "nobody")
	req.NoError(err)
	req.False(found)
}
