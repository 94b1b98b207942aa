package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/uniadvisor/advisory-server/internal/auth"
	"github.com/uniadvisor/advisory-server/internal/chat"
	"github.com/uniadvisor/advisory-server/internal/config"
	"github.com/uniadvisor/advisory-server/internal/mail"
	"github.com/uniadvisor/advisory-server/internal/store"
)

// NewServer builds the HTTP server: the request API, the account
// endpoints, and the websocket gateway.
func NewServer(svc *chat.Service, presence chat.Presence, authService *auth.Service, sender mail.Sender, userStore store.UserStore, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(svc, presence, authService, sender, userStore, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter wires all routes onto a gin engine. Split from NewServer so
// tests can drive the handler directly.
func NewRouter(svc *chat.Service, presence chat.Presence, authService *auth.Service, sender mail.Sender, userStore store.UserStore, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	router.POST("/api/register", apiHandlers.Register)
	router.POST("/api/login", apiHandlers.Login)

	chatHandlers := NewChatHandlers(svc, logger)
	chatGroup := router.Group("/api/chat", AuthMiddleware(authService, logger))
	{
		chatGroup.POST("/boxes", chatHandlers.CreateChatBox)
		chatGroup.POST("/boxes/:id", chatHandlers.CreateChatBoxWith)
		chatGroup.GET("/boxes", chatHandlers.ListChatBoxes)
		chatGroup.GET("/boxes/:id", chatHandlers.GetChatBox)
		chatGroup.GET("/boxes/:id/messages", chatHandlers.GetHistory)
		chatGroup.POST("/boxes/:id/messages", chatHandlers.SendMessage)
		chatGroup.POST("/messages", chatHandlers.SendDirectMessage)
		chatGroup.GET("/messages/:id", chatHandlers.GetConversation)
		chatGroup.POST("/messages/:id/read", chatHandlers.MarkRead)
		chatGroup.GET("/unread", chatHandlers.GetUnread)
	}

	userHandlers := NewUserHandlers(userStore, logger)
	userGroup := router.Group("/api/users", AuthMiddleware(authService, logger))
	{
		userGroup.GET("/search", userHandlers.SearchUsers)
		userGroup.GET("/me", userHandlers.Me)
	}

	mailHandlers := NewMailHandlers(sender, logger)
	router.POST("/api/mail/send",
		AuthMiddleware(authService, logger),
		RequireRole(store.RoleAdmin),
		mailHandlers.SendMail,
	)

	wsHandler := NewWSHandler(svc, presence, authService, cfg.WSRateLimitPerMin, logger)
	router.GET("/ws", wsHandler.Handle)

	return router
}
