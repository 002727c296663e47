//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"messenger/domain"
	"messenger/domain/event"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// ConnectionHandle is one live transport session of a user.
// Push must not block on network I/O: it either enqueues the event or fails.
// A push to a dead connection returns an error, it never panics.
type ConnectionHandle interface {
	ID() string
	UserID() domain.UserID
	CreatedAt() time.Time
	Push(ctx context.Context, name event.Name, payload any) error
	Close() error
}

// IRegistry is the single source of truth for "is this user reachable now".
type IRegistry interface {
	Register(userID domain.UserID, handle ConnectionHandle) (ConnectionHandle, error)
	Unregister(userID domain.UserID, handle ConnectionHandle) bool
	Lookup(userID domain.UserID) (ConnectionHandle, bool)
	AllOnline() []domain.UserID
}

// PresenceSubscriber receives presence transitions, in order per user.
type PresenceSubscriber interface {
	OnPresenceChange(ctx context.Context, change domain.PresenceChange)
}

type IUserDirectory interface {
	Exists(ctx context.Context, userID domain.UserID) (bool, error)
	DisplayName(ctx context.Context, userID domain.UserID) (string, bool, error)
}

type IUserRepository interface {
	IUserDirectory
	CreateUser(ctx context.Context, name string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// IStore is the durable message store.
// FindConversation returns messages ordered by creation time, oldest first;
// limit <= 0 returns the whole conversation.
type IStore interface {
	InsertMessage(ctx context.Context, message domain.Message) (domain.MessageID, error)
	SetRead(ctx context.Context, ids []domain.MessageID, readerID domain.UserID) (int, error)
	DeleteMessage(ctx context.Context, id domain.MessageID, requesterID domain.UserID) (bool, error)
	FindConversation(ctx context.Context, a, b domain.UserID, limit int) ([]domain.Message, error)
	FindByParticipant(ctx context.Context, userID domain.UserID) ([]domain.Message, error)
}

type IRouter interface {
	Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	MarkRead(ctx context.Context, ids []domain.MessageID, readerID domain.UserID) (int, error)
	Delete(ctx context.Context, id domain.MessageID, requesterID domain.UserID) (bool, error)
}

type ITypingRelay interface {
	NotifyTyping(ctx context.Context, senderID, recipientID domain.UserID)
	NotifyStopTyping(ctx context.Context, senderID, recipientID domain.UserID)
}
