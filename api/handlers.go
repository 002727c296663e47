package api

import (
	"context"
	"errors"
	"log/slog"
	"messenger/contract"
	"messenger/domain"
	"messenger/domain/event"
	customerrors "messenger/errors"
	"messenger/observability"
	"messenger/runtime/workers"
	"messenger/services"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

const requestTimeout = 10 * time.Second

// Handler holds all HTTP handlers and their dependencies
type Handler struct {
	log          *slog.Logger
	chat         services.IChatService
	router       contract.IRouter
	monitoring   *observability.MonitoringManager
	dependencies []workers.Dependency
}

func NewHandler(log *slog.Logger, chat services.IChatService, router contract.IRouter,
	monitoring *observability.MonitoringManager, dependencies ...workers.Dependency) *Handler {
	return &Handler{
		log:          log,
		chat:         chat,
		router:       router,
		monitoring:   monitoring,
		dependencies: dependencies,
	}
}

func (h *Handler) Contacts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	contacts, err := h.chat.Contacts(ctx, GetUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(contacts, toContactResponse))
}

func (h *Handler) Chats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	chats, err := h.chat.Chats(ctx, GetUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(chats, toChatResponse))
}

func (h *Handler) Online(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	online, err := h.chat.Online(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(online, toContactResponse))
}

// Conversation returns the history with a peer and marks it read for the caller.
func (h *Handler) Conversation(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	messages, err := h.chat.Conversation(ctx, GetUserID(c), domain.UserID(c.Param("userId")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(messages, func(m domain.Message, _ int) event.MessagePayload {
		return event.NewMessagePayload(m)
	}))
}

// SendMessage goes through the same router as the live connection, so the
// recipient and the sender's connection receive the usual events.
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	messageType, err := domain.ParseMessageType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	message, err := h.router.Send(ctx, domain.SendMessageCommand{
		SenderID:      GetUserID(c),
		ReceiverID:    domain.UserID(req.ReceiverID),
		Content:       req.Content,
		Type:          messageType,
		FileURL:       req.FileURL,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, event.NewMessagePayload(message))
}

func (h *Handler) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	ids := lo.Map(req.MessageIDs, func(id string, _ int) domain.MessageID { return domain.MessageID(id) })
	updated, err := h.router.MarkRead(ctx, ids, GetUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MarkReadResponse{Updated: updated})
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	deleted, err := h.router.Delete(ctx, domain.MessageID(c.Param("messageId")), GetUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitoring.GetLatest())
}

// Health pings every dependency and answers 503 when one is down.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "ok", Dependencies: make(map[string]string)}
	status := http.StatusOK
	for _, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			response.Dependencies[dep.Name()] = err.Error()
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Dependencies[dep.Name()] = "ok"
	}
	c.JSON(status, response)
}

// fail maps domain errors to HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, customerrors.ErrInvalidMessage):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, customerrors.ErrUnknownRecipient), errors.Is(err, customerrors.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
