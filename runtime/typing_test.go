package runtime

import (
	"context"
	"errors"
	"log/slog"
	"messenger/domain"
	"messenger/domain/event"
	"messenger/mocks"
	"messenger/observability"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTypingSignalRelay(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := slog.Default()
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockIUserDirectory(ctrl)
	registry := NewRegistry()
	monitoring := observability.NewNoopMonitoringManager(log)
	relay := NewTypingSignalRelay(log, registry, directory, monitoring, 5*time.Second)

	alice := newFakeHandle("alice")
	bob := newFakeHandle("bob")
	for _, h := range []*fakeHandle{alice, bob} {
		_, err := registry.Register(h.UserID(), h)
		req.NoError(err)
	}
	directory.EXPECT().DisplayName(gomock.Any(), domain.UserID("alice")).Return("Alice", true, nil)

	// When alice starts then stops typing to bob
	relay.NotifyTyping(ctx, "alice", "bob")
	relay.NotifyStopTyping(ctx, "alice", "bob")

	// Then bob sees both signals, the first one with the sender name and its expiry
	req.Equal([]pushed{
		{Name: event.UserTyping, Payload: event.TypingPayload{UserID: "alice", Username: "Alice", ReceiverID: "bob", ExpiresInMs: 5000}},
		{Name: event.UserStopTyping, Payload: event.StopTypingPayload{UserID: "alice", ReceiverID: "bob"}},
	}, bob.Events())
	req.Empty(alice.Events())
}

func TestTypingSignalRelay_Directory_Failure_Still_Relays(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := slog.Default()
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockIUserDirectory(ctrl)
	registry := NewRegistry()
	relay := NewTypingSignalRelay(log, registry, directory, observability.NewNoopMonitoringManager(log), time.Second)
	bob := newFakeHandle("bob")
	_, err := registry.Register("bob", bob)
	req.NoError(err)
	directory.EXPECT().DisplayName(gomock.Any(), domain.UserID("alice")).Return("", false, errors.New("store down"))

	// When the sender name cannot be resolved
	relay.NotifyTyping(ctx, "alice", "bob")

	// Then the signal goes out without a username
	req.Equal([]pushed{
		{Name: event.UserTyping, Payload: event.TypingPayload{UserID: "alice", ReceiverID: "bob", ExpiresInMs: 1000}},
	}, bob.Events())
}

func TestTypingSignalRelay_Drops_Silently(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := slog.Default()
	ctrl := gomock.NewController(t)
	// No DisplayName call is expected: dropped signals never touch the directory
	directory := mocks.NewMockIUserDirectory(ctrl)
	registry := NewRegistry()
	monitoring := observability.NewNoopMonitoringManager(log)
	relay := NewTypingSignalRelay(log, registry, directory, monitoring, time.Second)
	alice := newFakeHandle("alice")
	_, err := registry.Register("alice", alice)
	req.NoError(err)

	// Offline recipient, self typing and empty recipient are all dropped
	relay.NotifyTyping(ctx, "alice", "carol")
	relay.NotifyTyping(ctx, "alice", "alice")
	relay.NotifyStopTyping(ctx, "alice", "")

	req.Empty(alice.Events())
	req.Equal(uint64(1), monitoring.GetLatest().TypingDropped)
}
