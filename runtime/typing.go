package runtime

import (
	"context"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
	"messenger/domain/event"
	"messenger/observability"
	"time"
)

// TypingSignalRelay forwards ephemeral typing signals.
// Nothing is stored or acknowledged, and a signal for an offline recipient is
// dropped. Each typing event carries a TTL so receivers expire it themselves.
type TypingSignalRelay struct {
	log        *slog.Logger
	registry   contract.IRegistry
	directory  contract.IUserDirectory
	monitoring *observability.MonitoringManager
	ttl        time.Duration
}

func NewTypingSignalRelay(log *slog.Logger, registry contract.IRegistry, directory contract.IUserDirectory,
	monitoring *observability.MonitoringManager, ttl time.Duration) *TypingSignalRelay {
	return &TypingSignalRelay{log: log, registry: registry, directory: directory, monitoring: monitoring, ttl: ttl}
}

func (t *TypingSignalRelay) NotifyTyping(ctx context.Context, senderID, recipientID domain.UserID) {
	handle, ok := t.recipient(ctx, senderID, recipientID)
	if !ok {
		return
	}
	payload := event.TypingPayload{
		UserID:      senderID.String(),
		ReceiverID:  recipientID.String(),
		ExpiresInMs: t.ttl.Milliseconds(),
	}
	if username, found, err := t.directory.DisplayName(ctx, senderID); err == nil && found {
		payload.Username = username
	}
	t.push(ctx, handle, recipientID, event.UserTyping, payload)
}

func (t *TypingSignalRelay) NotifyStopTyping(ctx context.Context, senderID, recipientID domain.UserID) {
	handle, ok := t.recipient(ctx, senderID, recipientID)
	if !ok {
		return
	}
	t.push(ctx, handle, recipientID, event.UserStopTyping, event.StopTypingPayload{
		UserID:     senderID.String(),
		ReceiverID: recipientID.String(),
	})
}

// recipient resolves the online handle a signal goes to, counting offline drops.
func (t *TypingSignalRelay) recipient(ctx context.Context, senderID, recipientID domain.UserID) (contract.ConnectionHandle, bool) {
	if recipientID == "" || senderID == recipientID {
		return nil, false
	}
	handle, ok := t.registry.Lookup(recipientID)
	if !ok {
		t.monitoring.TypingDropped(ctx)
		return nil, false
	}
	return handle, true
}

func (t *TypingSignalRelay) push(ctx context.Context, handle contract.ConnectionHandle, recipientID domain.UserID, name event.Name, payload any) {
	if err := handle.Push(ctx, name, payload); err != nil {
		t.monitoring.TypingDropped(ctx)
		t.log.Debug("Typing signal dropped", "event", name, "user_id", recipientID, "error", err)
	}
}
