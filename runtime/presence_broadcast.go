package runtime

import (
	"context"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
	"messenger/domain/event"
	"messenger/observability"
)

// PresenceBroadcaster notifies every online user, except the subject, of a
// presence change. It is one PresenceSubscriber among others: targeting only a
// contact list would be another subscriber, not a registry change.
type PresenceBroadcaster struct {
	log        *slog.Logger
	registry   contract.IRegistry
	directory  contract.IUserDirectory
	monitoring *observability.MonitoringManager
}

func NewPresenceBroadcaster(log *slog.Logger, registry contract.IRegistry,
	directory contract.IUserDirectory, monitoring *observability.MonitoringManager) *PresenceBroadcaster {
	return &PresenceBroadcaster{log: log, registry: registry, directory: directory, monitoring: monitoring}
}

func (b *PresenceBroadcaster) OnPresenceChange(ctx context.Context, change domain.PresenceChange) {
	name := event.UserOffline
	if change.State == domain.Online {
		name = event.UserOnline
	}
	payload := event.PresencePayload{UserID: change.UserID.String()}
	if username, ok, err := b.directory.DisplayName(ctx, change.UserID); err == nil && ok {
		payload.Username = username
	}

	for _, userID := range b.registry.AllOnline() {
		if userID == change.UserID {
			continue
		}
		handle, ok := b.registry.Lookup(userID)
		if !ok {
			continue
		}
		if err := handle.Push(ctx, name, payload); err != nil {
			b.monitoring.DeliveryFailed(ctx, name)
			b.log.Debug("Presence event not delivered",
				"event", name,
				"subject", change.UserID,
				"user_id", userID,
				"error", err)
			continue
		}
		b.monitoring.EventDelivered(ctx, name)
	}
}
