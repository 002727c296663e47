package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"messenger/domain"
	"messenger/domain/event"
	customerrors "messenger/errors"
	"messenger/mocks"
	"messenger/observability"
	"messenger/repositories"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type routerFixture struct {
	registry  *Registry
	store     *mocks.MockIStore
	directory *mocks.MockIUserDirectory
	router    *MessageRouter
}

func newRouterFixture(t *testing.T) routerFixture {
	ctrl := gomock.NewController(t)
	log := slog.Default()
	registry := NewRegistry()
	store := mocks.NewMockIStore(ctrl)
	directory := mocks.NewMockIUserDirectory(ctrl)
	router := NewMessageRouter(log, registry, store, directory, observability.NewNoopMonitoringManager(log), 20)
	router.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return routerFixture{registry: registry, store: store, directory: directory, router: router}
}

func (f routerFixture) connect(t *testing.T, userID domain.UserID) *fakeHandle {
	handle := newFakeHandle(userID)
	_, err := f.registry.Register(userID, handle)
	require.NoError(t, err)
	return handle
}

func TestMessageRouter_Send_Delivers_To_Both_Sides(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newRouterFixture(t)
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")

	f.directory.EXPECT().Exists(gomock.Any(), domain.UserID("bob")).Return(true, nil)
	f.store.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, m domain.Message) (domain.MessageID, error) {
			req.Empty(m.ID)
			req.False(m.IsRead)
			return "m1", nil
		})

	// When alice sends a text to bob
	message, err := f.router.Send(ctx, domain.SendMessageCommand{
		SenderID:      "alice",
		ReceiverID:    "bob",
		Content:       "hello",
		CorrelationID: "tmp-1",
	})

	// Then the message is persisted with the store id and the server time
	req.NoError(err)
	req.Equal(domain.MessageID("m1"), message.ID)
	req.Equal(domain.MessageTypeText, message.Type)
	req.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), message.CreatedAt)

	// And bob receives it while alice gets her confirmation
	payload := event.NewMessagePayload(message)
	req.Equal([]pushed{{Name: event.ReceiveMessage, Payload: payload}}, bob.Events())
	req.Equal([]pushed{{Name: event.MessageSent, Payload: payload}}, alice.Events())
	req.Equal("tmp-1", payload.CorrelationID)
}

func TestMessageRouter_Send_Rejects_Invalid_Commands_Before_Any_Call(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newRouterFixture(t)

	cases := []domain.SendMessageCommand{
		{SenderID: "alice", ReceiverID: "bob"},
		{SenderID: "alice", ReceiverID: "", Content: "hi"},
		{SenderID: "alice", ReceiverID: "bob", Type: "sticker", Content: "hi"},
		{SenderID: "alice", ReceiverID: "bob", Type: domain.MessageTypeImage},
		{SenderID: "alice", ReceiverID: "bob", Content: strings.Repeat("a", 21)},
	}
	for _, cmd := range cases {
		_, err := f.router.Send(ctx, cmd)
		req.ErrorIs(err, customerrors.ErrInvalidMessage, fmt.Sprintf("%+v", cmd))
	}
}

func TestMessageRouter_Send_Unknown_Recipient_Is_Not_Persisted(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	alice := f.connect(t, "alice")

	f.directory.EXPECT().Exists(gomock.Any(), domain.UserID("nobody")).Return(false, nil)
	f.store.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).Times(0)

	_, err := f.router.Send(context.Background(), domain.SendMessageCommand{
		SenderID: "alice", ReceiverID: "nobody", Content: "hello",
	})

	req.ErrorIs(err, customerrors.ErrUnknownRecipient)
	req.Empty(alice.Events())
}

func TestMessageRouter_Send_Persistence_Failure_Pushes_Nothing(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")

	f.directory.EXPECT().Exists(gomock.Any(), domain.UserID("bob")).Return(true, nil)
	f.store.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).Return(domain.MessageID(""), fmt.Errorf("disk full"))

	_, err := f.router.Send(context.Background(), domain.SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Content: "hello",
	})

	req.ErrorIs(err, customerrors.ErrPersistence)
	req.Empty(alice.Events())
	req.Empty(bob.Events())
}

func TestMessageRouter_Send_Delivery_Failure_Is_Absorbed(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	alice := f.connect(t, "alice")
	bob := f.connect(t, "bob")
	// Given bob's connection died without unregistering yet
	req.NoError(bob.Close())

	f.directory.EXPECT().Exists(gomock.Any(), domain.UserID("bob")).Return(true, nil)
	f.store.EXPECT().InsertMessage(gomock.Any(), gomock.Any()).Return(domain.MessageID("m1"), nil)

	// When alice sends
	message, err := f.router.Send(context.Background(), domain.SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Content: "hello",
	})

	// Then the send still succeeds and alice is confirmed
	req.NoError(err)
	req.Equal(domain.MessageID("m1"), message.ID)
	req.Len(alice.Events(), 1)
	req.Equal(event.MessageSent, alice.Events()[0].Name)
}

func TestMessageRouter_Offline_Recipient_Reads_On_Next_Fetch(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := slog.Default()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	users := repositories.NewUserRepository(db)
	store := repositories.NewMessageRepository(db, log)
	alice, err := users.CreateUser(ctx, "alice")
	req.NoError(err)
	bob, err := users.CreateUser(ctx, "bob")
	req.NoError(err)

	registry := NewRegistry()
	router := NewMessageRouter(log, registry, store, users, observability.NewNoopMonitoringManager(log), 0)
	aliceHandle := newFakeHandle(alice.ID)
	_, err = registry.Register(alice.ID, aliceHandle)
	req.NoError(err)

	// Given bob is offline when alice writes to him
	sent, err := router.Send(ctx, domain.SendMessageCommand{SenderID: alice.ID, ReceiverID: bob.ID, Content: "are you there?"})
	req.NoError(err)
	req.Len(aliceHandle.Events(), 1)

	// When bob fetches the conversation later
	conversation, err := store.FindConversation(ctx, bob.ID, alice.ID, 0)

	// Then the message is there, unread
	req.NoError(err)
	req.Len(conversation, 1)
	req.Equal(sent.ID, conversation[0].ID)
	req.False(conversation[0].IsRead)

	// When bob reads it
	count, err := router.MarkRead(ctx, []domain.MessageID{sent.ID}, bob.ID)
	req.NoError(err)
	req.Equal(1, count)

	// Then alice cannot mark her own message read, and bob reading twice counts nothing
	count, err = router.MarkRead(ctx, []domain.MessageID{sent.ID}, alice.ID)
	req.NoError(err)
	req.Zero(count)
	count, err = router.MarkRead(ctx, []domain.MessageID{sent.ID}, bob.ID)
	req.NoError(err)
	req.Zero(count)
}

func TestMessageRouter_MarkRead_Empty_Does_Not_Touch_The_Store(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	f.store.EXPECT().SetRead(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	count, err := f.router.MarkRead(context.Background(), nil, "bob")

	req.NoError(err)
	req.Zero(count)
}

func TestMessageRouter_Delete(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	f.store.EXPECT().DeleteMessage(gomock.Any(), domain.MessageID("m1"), domain.UserID("alice")).Return(true, nil)
	f.store.EXPECT().DeleteMessage(gomock.Any(), domain.MessageID("m2"), domain.UserID("alice")).Return(false, fmt.Errorf("io"))

	deleted, err := f.router.Delete(context.Background(), "m1", "alice")
	req.NoError(err)
	req.True(deleted)

	_, err = f.router.Delete(context.Background(), "m2", "alice")
	req.ErrorIs(err, customerrors.ErrPersistence)
}
