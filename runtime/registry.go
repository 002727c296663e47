package runtime

import (
	"hash/maphash"
	"messenger/contract"
	"messenger/domain"
	customerrors "messenger/errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

// shardCount must stay a power of 2.
const shardCount = 32

// TransitionObserver is told about every true presence transition.
// Observe is called while the shard lock of the user is held: it must only
// record the change in memory and return.
type TransitionObserver interface {
	Observe(change domain.PresenceChange)
}

type shard struct {
	mu          sync.RWMutex
	connections map[domain.UserID]contract.ConnectionHandle
}

// Registry maps a user to at most one live connection.
//
// Users are spread over 32 shards, each guarded by its own RWMutex, so churn on
// one user never waits on a lock held for another shard. No method performs
// network I/O: pushes happen after a handle has been captured by the caller.
//
// A Registry is built at server start and drained at shutdown.
type Registry struct {
	shards    [shardCount]*shard
	seed      maphash.Seed
	size      int32
	now       func() time.Time
	observers atomic.Pointer[[]TransitionObserver]
}

func NewRegistry() *Registry {
	r := &Registry{seed: maphash.MakeSeed(), now: time.Now}
	for i := range shardCount {
		r.shards[i] = &shard{connections: make(map[domain.UserID]contract.ConnectionHandle)}
	}
	r.observers.Store(&[]TransitionObserver{})
	return r
}

// AddObserver subscribes to presence transitions. Observers are expected to be
// wired before the first connection is registered.
func (r *Registry) AddObserver(observers ...TransitionObserver) {
	for {
		current := r.observers.Load()
		next := append(append([]TransitionObserver{}, *current...), observers...)
		if r.observers.CompareAndSwap(current, &next) {
			return
		}
	}
}

func (r *Registry) getShard(userID domain.UserID) *shard {
	h := maphash.String(r.seed, string(userID))
	return r.shards[h&(shardCount-1)]
}

// Register installs handle as the live connection of userID and returns the
// handle it replaced, if any. Closing the replaced handle is the caller's job.
// Only a new mapping is reported to observers: a replacement keeps the user online.
func (r *Registry) Register(userID domain.UserID, handle contract.ConnectionHandle) (contract.ConnectionHandle, error) {
	if userID == "" || handle == nil || handle.ID() == "" || handle.UserID() != userID {
		return nil, customerrors.ErrMalformedRegistration
	}

	s := r.getShard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.connections[userID]
	if existed && previous.ID() == handle.ID() {
		return nil, nil
	}
	s.connections[userID] = handle
	if existed {
		return previous, nil
	}
	atomic.AddInt32(&r.size, 1)
	r.notify(domain.PresenceChange{UserID: userID, State: domain.Online, At: r.now().UTC()})
	return nil, nil
}

// Unregister removes the mapping only if handle is still the registered one.
// It returns false when handle was already superseded or removed: a stale
// disconnect must never take a reconnected user offline.
func (r *Registry) Unregister(userID domain.UserID, handle contract.ConnectionHandle) bool {
	if handle == nil {
		return false
	}

	s := r.getShard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.connections[userID]
	if !ok || current.ID() != handle.ID() {
		return false
	}
	delete(s.connections, userID)
	atomic.AddInt32(&r.size, -1)
	r.notify(domain.PresenceChange{UserID: userID, State: domain.Offline, At: r.now().UTC()})
	return true
}

// Lookup returns the current live connection of userID.
// The handle may die right after: pushes to it must tolerate failure.
func (r *Registry) Lookup(userID domain.UserID) (contract.ConnectionHandle, bool) {
	s := r.getShard(userID)
	s.mu.RLock()
	handle, ok := s.connections[userID]
	s.mu.RUnlock()
	return handle, ok
}

// AllOnline is a point-in-time snapshot of reachable users, in no particular order.
func (r *Registry) AllOnline() []domain.UserID {
	users := make([]domain.UserID, 0, r.Len())
	for _, s := range r.shards {
		s.mu.RLock()
		users = append(users, lo.Keys(s.connections)...)
		s.mu.RUnlock()
	}
	return users
}

// Handles snapshots every live connection. Used at shutdown to close them.
func (r *Registry) Handles() []contract.ConnectionHandle {
	handles := make([]contract.ConnectionHandle, 0, r.Len())
	for _, s := range r.shards {
		s.mu.RLock()
		handles = append(handles, lo.Values(s.connections)...)
		s.mu.RUnlock()
	}
	return handles
}

func (r *Registry) Len() int {
	return int(atomic.LoadInt32(&r.size))
}

func (r *Registry) notify(change domain.PresenceChange) {
	for _, o := range *r.observers.Load() {
		o.Observe(change)
	}
}
