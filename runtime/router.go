// Package runtime holds the live side of the messenger: who is connected,
// presence propagation, and routing of messages and typing signals to
// connections. Storage and transports are reached through contract interfaces.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
	"messenger/domain/event"
	customerrors "messenger/errors"
	"messenger/observability"
	"time"
	"unicode/utf8"
)

// MessageRouter persists messages, then tries to deliver them live.
//
// Persistence is the observable completion of a send. Live delivery is best
// effort: a recipient that is offline, or whose connection dies mid-push, reads
// the message on its next conversation fetch.
type MessageRouter struct {
	log              *slog.Logger
	registry         contract.IRegistry
	store            contract.IStore
	directory        contract.IUserDirectory
	monitoring       *observability.MonitoringManager
	maxContentLength int
	now              func() time.Time
}

func NewMessageRouter(log *slog.Logger, registry contract.IRegistry, store contract.IStore,
	directory contract.IUserDirectory, monitoring *observability.MonitoringManager, maxContentLength int) *MessageRouter {
	return &MessageRouter{
		log:              log,
		registry:         registry,
		store:            store,
		directory:        directory,
		monitoring:       monitoring,
		maxContentLength: maxContentLength,
		now:              time.Now,
	}
}

// Send validates, persists and routes a message.
// Only validation and persistence errors are returned. Nothing is pushed when
// persistence fails.
func (r *MessageRouter) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if cmd.Type == "" {
		cmd.Type = domain.MessageTypeText
	}
	if err := cmd.Validate(); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", customerrors.ErrInvalidMessage, err)
	}
	if r.maxContentLength > 0 && utf8.RuneCountInString(cmd.Content) > r.maxContentLength {
		return domain.Message{}, fmt.Errorf("%w: content exceeds %d characters",
			customerrors.ErrInvalidMessage, r.maxContentLength)
	}

	exists, err := r.directory.Exists(ctx, cmd.ReceiverID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", customerrors.ErrPersistence, err)
	}
	if !exists {
		return domain.Message{}, customerrors.ErrUnknownRecipient
	}

	message := domain.Message{
		SenderID:      cmd.SenderID,
		ReceiverID:    cmd.ReceiverID,
		Content:       cmd.Content,
		Type:          cmd.Type,
		FileURL:       cmd.FileURL,
		CreatedAt:     r.now().UTC(),
		IsRead:        false,
		CorrelationID: cmd.CorrelationID,
	}
	id, err := r.store.InsertMessage(ctx, message)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", customerrors.ErrPersistence, err)
	}
	message.ID = id
	r.monitoring.MessagePersisted(ctx)

	payload := event.NewMessagePayload(message)
	r.deliver(ctx, message.ReceiverID, event.ReceiveMessage, payload)
	r.deliver(ctx, message.SenderID, event.MessageSent, payload)

	return message, nil
}

// MarkRead flips the read flag of the messages addressed to readerID.
// The count only includes messages that were actually unread.
func (r *MessageRouter) MarkRead(ctx context.Context, ids []domain.MessageID, readerID domain.UserID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	count, err := r.store.SetRead(ctx, ids, readerID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", customerrors.ErrPersistence, err)
	}
	return count, nil
}

// Delete removes a message when requesterID took part in it.
func (r *MessageRouter) Delete(ctx context.Context, id domain.MessageID, requesterID domain.UserID) (bool, error) {
	deleted, err := r.store.DeleteMessage(ctx, id, requesterID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", customerrors.ErrPersistence, err)
	}
	return deleted, nil
}

// deliver pushes to the user's live connection if any. Failures are absorbed.
func (r *MessageRouter) deliver(ctx context.Context, userID domain.UserID, name event.Name, payload event.MessagePayload) {
	handle, ok := r.registry.Lookup(userID)
	if !ok {
		r.log.Debug("Recipient offline, message left for next fetch",
			"event", name,
			"user_id", userID,
			"message_id", payload.ID)
		return
	}
	if err := handle.Push(ctx, name, payload); err != nil {
		r.monitoring.DeliveryFailed(ctx, name)
		r.log.Warn("Live delivery failed",
			"event", name,
			"user_id", userID,
			"connection_id", handle.ID(),
			"message_id", payload.ID,
			"error", fmt.Errorf("%w: %v", customerrors.ErrDeliveryFailure, err))
		return
	}
	r.monitoring.EventDelivered(ctx, name)
}
