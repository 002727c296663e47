package runtime

import (
	"context"
	"messenger/domain"
	"messenger/domain/event"
	customerrors "messenger/errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type pushed struct {
	Name    event.Name
	Payload any
}

// fakeHandle records what is pushed to it. A closed handle rejects pushes.
type fakeHandle struct {
	id     string
	userID domain.UserID

	mu     sync.Mutex
	events []pushed
	closed bool
}

func newFakeHandle(userID domain.UserID) *fakeHandle {
	return &fakeHandle{id: uuid.NewString(), userID: userID}
}

func (f *fakeHandle) ID() string { return f.id }
func (f *fakeHandle) UserID() domain.UserID { return f.userID }
func (f *fakeHandle) CreatedAt() time.Time { return time.Time{} }

func (f *fakeHandle) Push(_ context.Context, name event.Name, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return customerrors.ErrConnectionClosed
	}
	f.events = append(f.events, pushed{Name: name, Payload: payload})
	return nil
}

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeHandle) Events() []pushed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushed{}, f.events...)
}

// recorder collects presence transitions, both as a registry observer and as
// a tracker subscriber.
type recorder struct {
	mu      sync.Mutex
	changes []domain.PresenceChange
}

func (r *recorder) Observe(change domain.PresenceChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *recorder) OnPresenceChange(_ context.Context, change domain.PresenceChange) {
	r.Observe(change)
}

func (r *recorder) States(userID domain.UserID) []domain.PresenceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []domain.PresenceState
	for _, c := range r.changes {
		if c.UserID == userID {
			states = append(states, c.State)
		}
	}
	return states
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}
