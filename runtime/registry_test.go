package runtime

import (
	"fmt"
	"messenger/domain"
	customerrors "messenger/errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Register_First_Connection_Goes_Online(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	observer := &recorder{}
	registry.AddObserver(observer)
	alice := newFakeHandle("alice")

	// When alice connects
	previous, err := registry.Register("alice", alice)

	// Then she is reachable and exactly one transition is reported
	req.NoError(err)
	req.Nil(previous)
	handle, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(alice.ID(), handle.ID())
	req.Equal([]domain.PresenceState{domain.Online}, observer.States("alice"))
	req.Equal(1, registry.Len())
	req.ElementsMatch([]domain.UserID{"alice"}, registry.AllOnline())
}

func TestRegistry_Replacement_Keeps_User_Online(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	observer := &recorder{}
	registry.AddObserver(observer)
	first := newFakeHandle("alice")
	second := newFakeHandle("alice")

	// Given alice connected once
	_, err := registry.Register("alice", first)
	req.NoError(err)

	// When she connects again
	previous, err := registry.Register("alice", second)

	// Then the old handle is handed back and no transition is reported
	req.NoError(err)
	req.Equal(first.ID(), previous.ID())
	handle, _ := registry.Lookup("alice")
	req.Equal(second.ID(), handle.ID())
	req.Equal([]domain.PresenceState{domain.Online}, observer.States("alice"))
	req.Equal(1, registry.Len())

	// And registering the same handle twice is a no-op
	previous, err = registry.Register("alice", second)
	req.NoError(err)
	req.Nil(previous)
}

func TestRegistry_Stale_Unregister_Is_Ignored(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	observer := &recorder{}
	registry.AddObserver(observer)
	first := newFakeHandle("alice")
	second := newFakeHandle("alice")

	// Given alice reconnected before her first connection noticed it was closed
	_, err := registry.Register("alice", first)
	req.NoError(err)
	_, err = registry.Register("alice", second)
	req.NoError(err)

	// When the first connection finally unregisters
	removed := registry.Unregister("alice", first)

	// Then alice stays online on the second one
	req.False(removed)
	_, ok := registry.Lookup("alice")
	req.True(ok)
	req.Contains(registry.AllOnline(), domain.UserID("alice"))
	req.Equal(1, registry.Len())
	req.Equal([]domain.PresenceState{domain.Online}, observer.States("alice"))

	// When the current connection unregisters
	removed = registry.Unregister("alice", second)

	// Then she goes offline, once
	req.True(removed)
	_, ok = registry.Lookup("alice")
	req.False(ok)
	req.Equal([]domain.PresenceState{domain.Online, domain.Offline}, observer.States("alice"))
	req.False(registry.Unregister("alice", second))
	req.Zero(registry.Len())
}

func TestRegistry_Malformed_Registration(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	observer := &recorder{}
	registry.AddObserver(observer)

	_, err := registry.Register("", newFakeHandle(""))
	req.ErrorIs(err, customerrors.ErrMalformedRegistration)

	_, err = registry.Register("alice", nil)
	req.ErrorIs(err, customerrors.ErrMalformedRegistration)

	_, err = registry.Register("alice", newFakeHandle("bob"))
	req.ErrorIs(err, customerrors.ErrMalformedRegistration)

	req.False(registry.Unregister("alice", nil))
	req.Zero(registry.Len())
	req.Zero(observer.Len())
}

func TestRegistry_Concurrent_Connect_Disconnect_Storm(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	observer := &recorder{}
	registry.AddObserver(observer)

	users := 20
	rounds := 50

	// Given several goroutines per user connecting and disconnecting at once
	var wg sync.WaitGroup
	for u := range users {
		userID := domain.UserID(fmt.Sprintf("user-%d", u))
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range rounds {
					handle := newFakeHandle(userID)
					if _, err := registry.Register(userID, handle); err != nil {
						t.Error(err)
					}
					registry.Unregister(userID, handle)
				}
			}()
		}
	}
	wg.Wait()

	// Then every user is offline and transitions strictly alternate per user
	req.Zero(registry.Len())
	req.Empty(registry.AllOnline())
	for u := range users {
		states := observer.States(domain.UserID(fmt.Sprintf("user-%d", u)))
		req.NotEmpty(states)
		req.Equal(domain.Offline, states[len(states)-1])
		for i, state := range states {
			if i%2 == 0 {
				req.Equal(domain.Online, state)
			} else {
				req.Equal(domain.Offline, state)
			}
		}
	}
}

func TestRegistry_Handles_Snapshot(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := newFakeHandle("alice")
	bob := newFakeHandle("bob")

	_, err := registry.Register("alice", alice)
	req.NoError(err)
	_, err = registry.Register("bob", bob)
	req.NoError(err)

	req.Len(registry.Handles(), 2)
	req.ElementsMatch([]domain.UserID{"alice", "bob"}, registry.AllOnline())
}
