package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"messenger/domain"
	"messenger/domain/event"
	customerrors "messenger/errors"
	"messenger/mocks"
	"messenger/observability"
	"messenger/runtime/workers"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type stubAuthenticator map[string]domain.UserID

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (domain.UserID, error) {
	if userID, ok := s[token]; ok {
		return userID, nil
	}
	return "", customerrors.ErrInvalidToken
}

type fakeChatService struct {
	contacts     []domain.Contact
	chats        []domain.ChatSummary
	conversation []domain.Message
	err          error
}

func (f fakeChatService) Conversation(_ context.Context, _, _ domain.UserID) ([]domain.Message, error) {
	return f.conversation, f.err
}

func (f fakeChatService) Chats(_ context.Context, _ domain.UserID) ([]domain.ChatSummary, error) {
	return f.chats, f.err
}

func (f fakeChatService) Contacts(_ context.Context, _ domain.UserID) ([]domain.Contact, error) {
	return f.contacts, f.err
}

func (f fakeChatService) Online(_ context.Context) ([]domain.Contact, error) {
	return f.contacts, f.err
}

type fakeDependency struct {
	name string
	err  error
}

func (f fakeDependency) Name() string { return f.name }
func (f fakeDependency) Ping(_ context.Context) error { return f.err }

func newTestRouter(t *testing.T, chat fakeChatService, deps ...fakeDependency) (*gin.Engine, *mocks.MockIRouter) {
	gin.SetMode(gin.TestMode)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	router := mocks.NewMockIRouter(gomock.NewController(t))
	var dependencies []workers.Dependency
	for _, d := range deps {
		dependencies = append(dependencies, d)
	}
	handler := NewHandler(log, chat, router, observability.NewNoopMonitoringManager(log), dependencies...)
	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	return NewRouter(handler, stubAuthenticator{"alice-token": "alice"}, ws), router
}

func do(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Authorization", "Bearer alice-token")
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, r)
	return w
}

func Test_Protected_Routes_Require_A_Token(t *testing.T) {
	req := require.New(t)
	engine, _ := newTestRouter(t, fakeChatService{})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/contacts", nil))
	req.Equal(http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	engine.ServeHTTP(w, r)
	req.Equal(http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/contacts?token=alice-token", nil))
	req.Equal(http.StatusOK, w.Code)
}

func Test_Contacts_And_Chats(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	engine, _ := newTestRouter(t, fakeChatService{
		contacts: []domain.Contact{{ID: "b", Name: "bob", Online: true}},
		chats:    []domain.ChatSummary{{PeerID: "b", PeerName: "bob", LastMessage: "hi", LastMessageTime: at, UnreadCount: 2}},
	})

	w := do(engine, http.MethodGet, "/api/contacts", nil)
	req.Equal(http.StatusOK, w.Code)
	var contacts []ContactResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &contacts))
	req.Equal([]ContactResponse{{ID: "b", Username: "bob", Online: true}}, contacts)

	w = do(engine, http.MethodGet, "/api/chats", nil)
	req.Equal(http.StatusOK, w.Code)
	var chats []ChatResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &chats))
	req.Len(chats, 1)
	req.Equal(2, chats[0].UnreadCount)
	req.Equal("bob", chats[0].Username)
}

func Test_Conversation_Maps_Unknown_Peer_To_404(t *testing.T) {
	req := require.New(t)
	engine, _ := newTestRouter(t, fakeChatService{err: customerrors.ErrUserNotFound})

	w := do(engine, http.MethodGet, "/api/messages/ghost", nil)
	req.Equal(http.StatusNotFound, w.Code)
}

func Test_Send_Message(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("should return the persisted message", func(t *testing.T) {
		req := require.New(t)
		engine, router := newTestRouter(t, fakeChatService{})
		router.EXPECT().Send(gomock.Any(), domain.SendMessageCommand{
			SenderID: "alice", ReceiverID: "bob", Content: "hi", Type: domain.MessageTypeText,
		}).Return(domain.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Content: "hi", Type: domain.MessageTypeText, CreatedAt: at}, nil)

		w := do(engine, http.MethodPost, "/api/messages", SendMessageRequest{ReceiverID: "bob", Content: "hi"})

		req.Equal(http.StatusCreated, w.Code)
		var payload event.MessagePayload
		req.NoError(json.Unmarshal(w.Body.Bytes(), &payload))
		req.Equal("m1", payload.ID)
		req.Equal("alice", payload.SenderID)
	})

	t.Run("should map validation and persistence errors", func(t *testing.T) {
		req := require.New(t)
		engine, router := newTestRouter(t, fakeChatService{})
		router.EXPECT().Send(gomock.Any(), gomock.Any()).Return(domain.Message{}, fmt.Errorf("%w: empty", customerrors.ErrInvalidMessage))
		router.EXPECT().Send(gomock.Any(), gomock.Any()).Return(domain.Message{}, fmt.Errorf("%w: disk full", customerrors.ErrPersistence))

		req.Equal(http.StatusBadRequest, do(engine, http.MethodPost, "/api/messages", SendMessageRequest{ReceiverID: "bob"}).Code)
		w := do(engine, http.MethodPost, "/api/messages", SendMessageRequest{ReceiverID: "bob", Content: "hi"})
		req.Equal(http.StatusInternalServerError, w.Code)
		req.NotContains(w.Body.String(), "disk full")
	})

	t.Run("should reject an unknown type before routing", func(t *testing.T) {
		req := require.New(t)
		engine, router := newTestRouter(t, fakeChatService{})
		router.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

		w := do(engine, http.MethodPost, "/api/messages", SendMessageRequest{ReceiverID: "bob", Type: "sticker"})
		req.Equal(http.StatusBadRequest, w.Code)
	})
}

func Test_Mark_Read_And_Delete(t *testing.T) {
	req := require.New(t)
	engine, router := newTestRouter(t, fakeChatService{})

	router.EXPECT().MarkRead(gomock.Any(), []domain.MessageID{"m1", "m2"}, domain.UserID("alice")).Return(1, nil)
	w := do(engine, http.MethodPost, "/api/messages/read", MarkReadRequest{MessageIDs: []string{"m1", "m2"}})
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"updated":1}`, w.Body.String())

	router.EXPECT().Delete(gomock.Any(), domain.MessageID("m1"), domain.UserID("alice")).Return(true, nil)
	req.Equal(http.StatusNoContent, do(engine, http.MethodDelete, "/api/messages/m1", nil).Code)

	router.EXPECT().Delete(gomock.Any(), domain.MessageID("m9"), domain.UserID("alice")).Return(false, nil)
	req.Equal(http.StatusNotFound, do(engine, http.MethodDelete, "/api/messages/m9", nil).Code)
}

func Test_Health(t *testing.T) {
	req := require.New(t)

	engine, _ := newTestRouter(t, fakeChatService{}, fakeDependency{name: "badger"})
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	req.Equal(http.StatusOK, w.Code)

	engine, _ = newTestRouter(t, fakeChatService{}, fakeDependency{name: "badger"}, fakeDependency{name: "redis", err: fmt.Errorf("down")})
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	req.Equal(http.StatusServiceUnavailable, w.Code)
	var health HealthResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &health))
	req.Equal("degraded", health.Status)
	req.Equal("down", health.Dependencies["redis"])
}
