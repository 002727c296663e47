package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"messenger/domain"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	channels    []string
	messages    [][]byte
	err         error
	hang        bool
	hadDeadline bool
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, message.([]byte))
	_, f.hadDeadline = ctx.Deadline()
	if f.hang {
		<-ctx.Done()
		return redis.NewIntResult(0, ctx.Err())
	}
	return redis.NewIntResult(1, f.err)
}

func (f *fakeRedis) Ping(_ context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

type fakeNats struct {
	subjects []string
	status   nats.Status
}

func (f *fakeNats) Publish(subject string, _ []byte) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

func (f *fakeNats) Status() nats.Status { return f.status }

func Test_Redis_Publisher_Publishes_Json_Presence(t *testing.T) {
	req := require.New(t)
	client := &fakeRedis{}
	publisher := NewRedisPublisher(slog.Default(), client, "presence", time.Second)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	// When alice comes online
	publisher.OnPresenceChange(context.Background(), domain.PresenceChange{UserID: "alice", State: domain.Online, At: at})

	// Then one message is published on the configured channel
	req.Equal([]string{"presence"}, client.channels)
	var message PresenceMessage
	req.NoError(json.Unmarshal(client.messages[0], &message))
	req.Equal(PresenceMessage{UserID: "alice", State: "online", At: at}, message)
	req.NoError(publisher.Ping(context.Background()))
}

func Test_Redis_Publisher_Absorbs_Errors(t *testing.T) {
	req := require.New(t)
	client := &fakeRedis{err: fmt.Errorf("connection refused")}
	publisher := NewRedisPublisher(slog.Default(), client, "presence", time.Second)

	req.NotPanics(func() {
		publisher.OnPresenceChange(context.Background(), domain.PresenceChange{UserID: "alice", State: domain.Offline})
	})
	req.Error(publisher.Ping(context.Background()))
}

func Test_Redis_Publisher_Gives_Up_On_A_Stalled_Server(t *testing.T) {
	req := require.New(t)
	client := &fakeRedis{hang: true}
	publisher := NewRedisPublisher(slog.Default(), client, "presence", 50*time.Millisecond)

	// When the server never answers
	start := time.Now()
	publisher.OnPresenceChange(context.Background(), domain.PresenceChange{UserID: "alice", State: domain.Online})

	// Then the publish is abandoned after the timeout instead of stalling the caller
	req.Less(time.Since(start), time.Second)
	req.True(client.hadDeadline)
	req.Len(client.channels, 1)
}

func Test_Nats_Publisher_Subject_Per_State_And_User(t *testing.T) {
	req := require.New(t)
	conn := &fakeNats{status: nats.CONNECTED}
	publisher := NewNatsPublisher(slog.Default(), conn, "presence")

	publisher.OnPresenceChange(context.Background(), domain.PresenceChange{UserID: "alice", State: domain.Online})
	publisher.OnPresenceChange(context.Background(), domain.PresenceChange{UserID: "alice", State: domain.Offline})

	req.Equal([]string{"presence.online.alice", "presence.offline.alice"}, conn.subjects)
	req.NoError(publisher.Ping(context.Background()))

	conn.status = nats.RECONNECTING
	req.Error(publisher.Ping(context.Background()))
}
