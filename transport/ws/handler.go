package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"messenger/auth"
	"messenger/contract"
	"messenger/domain"
	"messenger/domain/event"
	customerrors "messenger/errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type Config struct {
	BufferSize     int
	AuthTimeout    time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	// AllowedOrigins lists the browser origins accepted on upgrade. Empty keeps
	// the same-origin check; "*" accepts any origin.
	AllowedOrigins []string
}

// checkOrigin returns nil for an empty allow-list so the upgrader falls back
// to its same-origin check. Requests without an Origin header are not from a
// browser and pass.
func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return lo.ContainsBy(allowed, func(candidate string) bool {
			return candidate == "*" || strings.EqualFold(candidate, origin)
		})
	}
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.UserID, error)
}

// Handler upgrades HTTP requests and runs one session per connection:
// authenticate, register, dispatch inbound events, unregister.
type Handler struct {
	log      *slog.Logger
	upgrader websocket.Upgrader
	auth     Authenticator
	registry contract.IRegistry
	router   contract.IRouter
	typing   contract.ITypingRelay
	config   Config
}

func NewHandler(log *slog.Logger, authenticator Authenticator, registry contract.IRegistry,
	router contract.IRouter, typing contract.ITypingRelay, config Config) *Handler {
	return &Handler{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(config.AllowedOrigins),
		},
		auth:     authenticator,
		registry: registry,
		router:   router,
		typing:   typing,
		config:   config,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// A token carried by the request is checked before upgrading so that the
	// client gets a plain 401.
	var userID domain.UserID
	token := auth.ExtractToken(r)
	if token != "" {
		var err error
		if userID, err = h.auth.Authenticate(ctx, token); err != nil {
			h.log.Debug("WebSocket authentication refused", "error", err)
			http.Error(w, customerrors.ErrInvalidToken.Error(), http.StatusUnauthorized)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("WebSocket upgrade failed", "error", err)
		return
	}

	if userID == "" {
		if userID, err = h.authenticateFirstFrame(ctx, conn); err != nil {
			h.log.Debug("WebSocket authentication refused", "error", err)
			h.reject(conn)
			return
		}
	}

	h.serve(ctx, conn, userID)
}

// authenticateFirstFrame waits for {"event":"authenticate","data":"<token>"}.
// The data may also be {"token":"<token>"}.
func (h *Handler) authenticateFirstFrame(ctx context.Context, conn *websocket.Conn) (domain.UserID, error) {
	_ = conn.SetReadDeadline(time.Now().Add(h.config.AuthTimeout))
	conn.SetReadLimit(h.config.MaxMessageSize)
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	var envelope event.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Event != event.Authenticate {
		return "", customerrors.ErrInvalidToken
	}
	var token string
	if err := json.Unmarshal(envelope.Data, &token); err != nil {
		var object struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(envelope.Data, &object); err != nil {
			return "", customerrors.ErrInvalidToken
		}
		token = object.Token
	}
	return h.auth.Authenticate(ctx, token)
}

func (h *Handler) reject(conn *websocket.Conn) {
	data, _ := event.Encode(event.Error, event.ErrorPayload{Error: customerrors.ErrInvalidToken.Error()})
	deadline := time.Now().Add(h.config.WriteWait)
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.WriteMessage(websocket.TextMessage, data)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"), deadline)
	_ = conn.Close()
}

func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, userID domain.UserID) {
	c := NewConnection(h.log, conn, userID, h.config)
	go c.writePump()

	previous, err := h.registry.Register(userID, c)
	if err != nil {
		c.log.Error("Connection registration failed", "error", err)
		_ = c.Close()
		return
	}
	if previous != nil {
		c.log.Debug("Connection replaced", "previous_connection_id", previous.ID())
		_ = previous.Close()
	}
	c.log.Debug("Connection registered")

	defer func() {
		_ = c.Close()
		if h.registry.Unregister(userID, c) {
			c.log.Debug("Connection unregistered")
		}
	}()

	c.readPump(h.config.MaxMessageSize, func(raw []byte) {
		h.dispatch(ctx, c, raw)
	})
}

func (h *Handler) dispatch(ctx context.Context, c *Connection, raw []byte) {
	var envelope event.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		h.replyError(ctx, c, "invalid json", "")
		return
	}

	switch envelope.Event {
	case event.SendMessage:
		var req event.SendMessageRequest
		if err := json.Unmarshal(envelope.Data, &req); err != nil {
			h.replyError(ctx, c, "invalid send_message payload", "")
			return
		}
		messageType, err := domain.ParseMessageType(req.Type)
		if err != nil {
			h.replyError(ctx, c, err.Error(), req.CorrelationID)
			return
		}
		_, err = h.router.Send(ctx, domain.SendMessageCommand{
			SenderID:      c.UserID(),
			ReceiverID:    domain.UserID(req.ReceiverID),
			Content:       req.Content,
			Type:          messageType,
			FileURL:       req.FileURL,
			CorrelationID: req.CorrelationID,
		})
		if err != nil {
			h.replyError(ctx, c, clientError(err), req.CorrelationID)
		}

	case event.Typing, event.StopTyping:
		var req event.TypingRequest
		if err := json.Unmarshal(envelope.Data, &req); err != nil {
			return
		}
		if envelope.Event == event.Typing {
			h.typing.NotifyTyping(ctx, c.UserID(), domain.UserID(req.ReceiverID))
		} else {
			h.typing.NotifyStopTyping(ctx, c.UserID(), domain.UserID(req.ReceiverID))
		}

	case event.MarkRead:
		var req event.MarkReadRequest
		if err := json.Unmarshal(envelope.Data, &req); err != nil {
			h.replyError(ctx, c, "invalid mark_read payload", "")
			return
		}
		ids := lo.Map(req.MessageIDs, func(id string, _ int) domain.MessageID { return domain.MessageID(id) })
		if _, err := h.router.MarkRead(ctx, ids, c.UserID()); err != nil {
			h.replyError(ctx, c, clientError(err), "")
		}

	case event.DeleteMessage:
		var req event.DeleteMessageRequest
		if err := json.Unmarshal(envelope.Data, &req); err != nil {
			h.replyError(ctx, c, "invalid delete_message payload", "")
			return
		}
		deleted, err := h.router.Delete(ctx, domain.MessageID(req.MessageID), c.UserID())
		if err != nil {
			h.replyError(ctx, c, clientError(err), "")
		} else if !deleted {
			h.replyError(ctx, c, "message not found", "")
		}

	case event.Authenticate:
		// Already authenticated.

	default:
		h.replyError(ctx, c, "unsupported event", "")
	}
}

func (h *Handler) replyError(ctx context.Context, c *Connection, message, correlationID string) {
	err := c.Push(ctx, event.Error, event.ErrorPayload{Error: message, CorrelationID: correlationID})
	if err != nil {
		c.log.Debug("Error reply dropped", "error", err)
	}
}

// clientError turns an internal error into the text sent to clients.
// Persistence details are never exposed.
func clientError(err error) string {
	switch {
	case errors.Is(err, customerrors.ErrInvalidMessage):
		return err.Error()
	case errors.Is(err, customerrors.ErrUnknownRecipient):
		return customerrors.ErrUnknownRecipient.Error()
	case errors.Is(err, customerrors.ErrInvalidToken), errors.Is(err, customerrors.ErrUserNotFound):
		return customerrors.ErrInvalidToken.Error()
	case errors.Is(err, customerrors.ErrPersistence):
		return "message could not be saved"
	default:
		return "internal error"
	}
}
