package runtime

import (
	"context"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
	"messenger/observability"
	"sync"
	"time"
)

type pendingOffline struct {
	generation uint64
	timer      *time.Timer
	change     domain.PresenceChange
}

type offlineExpiry struct {
	userID     domain.UserID
	generation uint64
}

// PresenceTracker turns registry transitions into presence events.
//
// The registry hands transitions over through Observe while holding the user's
// shard lock, so the queue preserves per-user order. Run drains the queue on
// its own goroutine and calls every subscriber; subscribers may push to
// connections because no registry lock is held at that point.
//
// With a debounce window, an offline transition is held back. If the same user
// comes back online before the window ends, both events are dropped since the
// user's observable state never changed.
type PresenceTracker struct {
	log         *slog.Logger
	monitoring  *observability.MonitoringManager
	debounce    time.Duration
	subscribers []contract.PresenceSubscriber

	mu     sync.Mutex
	queue  []domain.PresenceChange
	signal chan struct{}

	expired    chan offlineExpiry
	pending    map[domain.UserID]pendingOffline
	generation uint64
}

func NewPresenceTracker(log *slog.Logger, monitoring *observability.MonitoringManager, debounce time.Duration) *PresenceTracker {
	return &PresenceTracker{
		log:        log,
		monitoring: monitoring,
		debounce:   debounce,
		signal:     make(chan struct{}, 1),
		expired:    make(chan offlineExpiry),
		pending:    make(map[domain.UserID]pendingOffline),
	}
}

// Subscribe adds broadcast targets. It must be called before Run.
func (t *PresenceTracker) Subscribe(subscribers ...contract.PresenceSubscriber) *PresenceTracker {
	t.subscribers = append(t.subscribers, subscribers...)
	return t
}

// Observe records a transition. It never blocks.
func (t *PresenceTracker) Observe(change domain.PresenceChange) {
	t.mu.Lock()
	t.queue = append(t.queue, change)
	t.mu.Unlock()

	select {
	case t.signal <- struct{}{}:
	default:
	}
}

func (t *PresenceTracker) Run(ctx context.Context) error {
	defer t.stopPending()
	for {
		select {
		case <-ctx.Done():
			t.log.Debug("Presence tracker stopped")
			return nil
		case <-t.signal:
			for _, change := range t.drain() {
				t.handle(ctx, change)
			}
		case exp := <-t.expired:
			p, ok := t.pending[exp.userID]
			if !ok || p.generation != exp.generation {
				continue
			}
			delete(t.pending, exp.userID)
			t.publish(ctx, p.change)
		}
	}
}

func (t *PresenceTracker) drain() []domain.PresenceChange {
	t.mu.Lock()
	defer t.mu.Unlock()
	changes := t.queue
	t.queue = nil
	return changes
}

func (t *PresenceTracker) handle(ctx context.Context, change domain.PresenceChange) {
	if t.debounce <= 0 {
		t.publish(ctx, change)
		return
	}

	switch change.State {
	case domain.Offline:
		t.generation++
		generation := t.generation
		userID := change.UserID
		timer := time.AfterFunc(t.debounce, func() {
			select {
			case t.expired <- offlineExpiry{userID: userID, generation: generation}:
			case <-ctx.Done():
			}
		})
		t.pending[userID] = pendingOffline{generation: generation, timer: timer, change: change}
	case domain.Online:
		if p, ok := t.pending[change.UserID]; ok {
			p.timer.Stop()
			delete(t.pending, change.UserID)
			t.log.Debug("Presence flap absorbed", "user_id", change.UserID)
			return
		}
		t.publish(ctx, change)
	}
}

func (t *PresenceTracker) publish(ctx context.Context, change domain.PresenceChange) {
	t.log.Debug("Presence changed", "user_id", change.UserID, "state", change.State.String())
	t.monitoring.PresenceChanged(ctx, change.State)
	for _, s := range t.subscribers {
		s.OnPresenceChange(ctx, change)
	}
}

func (t *PresenceTracker) stopPending() {
	for userID, p := range t.pending {
		p.timer.Stop()
		delete(t.pending, userID)
	}
}
