package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"messenger/domain"

	"github.com/nats-io/nats.go"
)

type natsConn interface {
	Publish(subject string, data []byte) error
	Status() nats.Status
}

// NatsPublisher publishes on "{prefix}.{state}.{userID}" so consumers can
// subscribe to one state with a wildcard, e.g. "presence.online.*".
type NatsPublisher struct {
	log    *slog.Logger
	conn   natsConn
	prefix string
}

func NewNatsPublisher(log *slog.Logger, conn natsConn, prefix string) *NatsPublisher {
	return &NatsPublisher{log: log, conn: conn, prefix: prefix}
}

func (p *NatsPublisher) Subject(change domain.PresenceChange) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, change.State, change.UserID)
}

func (p *NatsPublisher) OnPresenceChange(_ context.Context, change domain.PresenceChange) {
	data, err := encodePresence(change)
	if err != nil {
		p.log.Error("Unable to encode presence", "user_id", change.UserID, "error", err)
		return
	}
	subject := p.Subject(change)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn("NATS presence publish failed", "subject", subject, "error", err)
	}
}

func (p *NatsPublisher) Name() string { return "nats" }

func (p *NatsPublisher) Ping(_ context.Context) error {
	if status := p.conn.Status(); status != nats.CONNECTED {
		return fmt.Errorf("nats connection is %s", status)
	}
	return nil
}
