// Package api is the REST surface of the messenger, served with gin.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the routes. The WebSocket endpoint authenticates on its own
// because browsers cannot set headers on the upgrade request.
func NewRouter(handler *Handler, authenticator Authenticator, ws http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), CORS())

	router.GET("/healthz", handler.Health)
	router.GET("/ws", gin.WrapH(ws))

	protected := router.Group("/api")
	protected.Use(AuthMiddleware(authenticator))
	{
		protected.GET("/contacts", handler.Contacts)
		protected.GET("/chats", handler.Chats)
		protected.GET("/online", handler.Online)
		protected.GET("/stats", handler.Stats)
		protected.GET("/messages/:userId", handler.Conversation)
		protected.POST("/messages", handler.SendMessage)
		protected.POST("/messages/read", handler.MarkRead)
		protected.DELETE("/messages/:messageId", handler.DeleteMessage)
	}
	return router
}
