package observability

import (
	"context"
	"log/slog"
	"messenger/domain"
	"messenger/domain/event"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "messenger"

// MonitoringStats is the snapshot served to operators.
type MonitoringStats struct {
	OnlineUsers         int       `json:"online_users"`
	MessagesPersisted   uint64    `json:"messages_persisted"`
	MessagesDelivered   uint64    `json:"messages_delivered"`
	DeliveryFailures    uint64    `json:"delivery_failures"`
	PresenceTransitions uint64    `json:"presence_transitions"`
	TypingDropped       uint64    `json:"typing_dropped"`
	AllocMemMb          uint64    `json:"alloc_mem_mb"`
	NumGoroutine        int       `json:"num_goroutine"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// MonitoringManager counts delivery outcomes twice: in local atomics for the
// stats endpoint and in OpenTelemetry instruments for the exporter.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats
	interval    time.Duration
	onlineCount func() int

	messagesPersisted   uint64
	messagesDelivered   uint64
	deliveryFailures    uint64
	presenceTransitions uint64
	typingDropped       uint64

	persistedCounter  metric.Int64Counter
	deliveredCounter  metric.Int64Counter
	failureCounter    metric.Int64Counter
	presenceCounter   metric.Int64Counter
	typingDropCounter metric.Int64Counter
}

func NewMonitoringManager(log *slog.Logger, meter metric.Meter, onlineCount func() int, interval time.Duration) (*MonitoringManager, error) {
	if onlineCount == nil {
		onlineCount = func() int { return 0 }
	}
	mm := &MonitoringManager{log: log, interval: interval, onlineCount: onlineCount}

	var err error
	if mm.persistedCounter, err = meter.Int64Counter("messenger.messages.persisted",
		metric.WithDescription("Messages durably stored")); err != nil {
		return nil, err
	}
	if mm.deliveredCounter, err = meter.Int64Counter("messenger.events.delivered",
		metric.WithDescription("Events pushed to a live connection")); err != nil {
		return nil, err
	}
	if mm.failureCounter, err = meter.Int64Counter("messenger.events.delivery_failures",
		metric.WithDescription("Events that could not be pushed to a live connection")); err != nil {
		return nil, err
	}
	if mm.presenceCounter, err = meter.Int64Counter("messenger.presence.transitions",
		metric.WithDescription("Online/offline transitions emitted")); err != nil {
		return nil, err
	}
	if mm.typingDropCounter, err = meter.Int64Counter("messenger.typing.dropped",
		metric.WithDescription("Typing signals dropped because the recipient was offline")); err != nil {
		return nil, err
	}
	if _, err = meter.Int64ObservableGauge("messenger.users.online",
		metric.WithDescription("Users with a live connection"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(mm.onlineCount()))
			return nil
		})); err != nil {
		return nil, err
	}
	return mm, nil
}

// NewNoopMonitoringManager never exports anything. Used by tests and tools.
func NewNoopMonitoringManager(log *slog.Logger) *MonitoringManager {
	mm, _ := NewMonitoringManager(log, NoopMeter(), nil, time.Second)
	return mm
}

func (mm *MonitoringManager) MessagePersisted(ctx context.Context) {
	atomic.AddUint64(&mm.messagesPersisted, 1)
	mm.persistedCounter.Add(ctx, 1)
}

func (mm *MonitoringManager) EventDelivered(ctx context.Context, name event.Name) {
	atomic.AddUint64(&mm.messagesDelivered, 1)
	mm.deliveredCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(name))))
}

func (mm *MonitoringManager) DeliveryFailed(ctx context.Context, name event.Name) {
	atomic.AddUint64(&mm.deliveryFailures, 1)
	mm.failureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(name))))
}

func (mm *MonitoringManager) PresenceChanged(ctx context.Context, state domain.PresenceState) {
	atomic.AddUint64(&mm.presenceTransitions, 1)
	mm.presenceCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state.String())))
}

func (mm *MonitoringManager) TypingDropped(ctx context.Context) {
	atomic.AddUint64(&mm.typingDropped, 1)
	mm.typingDropCounter.Add(ctx, 1)
}

// Run refreshes the stats snapshot on every tick until ctx is done.
func (mm *MonitoringManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(mm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mm.log.Debug("Monitoring manager stopped")
			return nil
		case <-ticker.C:
			mm.updateStats()
		}
	}
}

func (mm *MonitoringManager) updateStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := MonitoringStats{
		OnlineUsers:         mm.onlineCount(),
		MessagesPersisted:   atomic.LoadUint64(&mm.messagesPersisted),
		MessagesDelivered:   atomic.LoadUint64(&mm.messagesDelivered),
		DeliveryFailures:    atomic.LoadUint64(&mm.deliveryFailures),
		PresenceTransitions: atomic.LoadUint64(&mm.presenceTransitions),
		TypingDropped:       atomic.LoadUint64(&mm.typingDropped),
		AllocMemMb:          m.Alloc / 1024 / 1024,
		NumGoroutine:        runtime.NumGoroutine(),
		UpdatedAt:           time.Now().UTC(),
	}

	mm.mu.Lock()
	mm.latestStats = stats
	mm.mu.Unlock()

	mm.log.Debug("Stats updated",
		"online_users", stats.OnlineUsers,
		"delivered", stats.MessagesDelivered,
		"delivery_failures", stats.DeliveryFailures,
	)
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.updateStats()
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}
