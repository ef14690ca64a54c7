package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/squadchat/internal/auth"
	"github.com/vovakirdan/squadchat/internal/config"
	"github.com/vovakirdan/squadchat/internal/core"
	"github.com/vovakirdan/squadchat/internal/service/groups"
	"github.com/vovakirdan/squadchat/internal/store"
)

// Deps are the collaborators the HTTP layer routes into.
type Deps struct {
	Hub     *core.Hub
	History *core.History
	Auth    *auth.Service
	Groups  *groups.Service
	Users   store.UserStore
}

// NewServer builds the HTTP server with REST, WebSocket and operational routes.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) (*stdhttp.Server, error) {
	gin.SetMode(gin.ReleaseMode)
	registerValidators()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	pageDefaults := core.Page{Number: 1, Size: cfg.DefaultPageSize}

	limiter, err := newIPRateLimiter(cfg.HTTPRateLimit, cfg.HTTPRateWindow, cfg.RateLimitCacheSize)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ws := NewWSHandler(deps.Hub, deps.Auth, WSOptions{
		OriginPatterns:    cfg.AllowedOrigins,
		MaxMessageBytes:   cfg.MaxMessageBytes,
		ClientBuffer:      cfg.ClientBufferSize,
		MessagesPerMinute: cfg.WSMessagesPerMinute,
		Location:          loc,
	}, logger)
	router.GET("/ws", gin.WrapH(ws))

	authHandlers := NewAuthHandlers(deps.Auth, logger)
	userHandlers := NewUserHandlers(deps.Users, logger)
	groupHandlers := NewGroupHandlers(deps.Groups, logger)
	messageHandlers := NewMessageHandlers(deps.Hub, deps.History, pageDefaults, loc, logger)

	api := router.Group("/api")
	api.Use(RateLimitMiddleware(limiter, logger))
	{
		api.POST("/auth/register", authHandlers.Register)
		api.POST("/auth/login", authHandlers.Login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(deps.Auth, logger))
		{
			protected.GET("/auth/me", authHandlers.Me)

			protected.GET("/users/:id", userHandlers.GetUser)
			protected.PUT("/users/profile", userHandlers.UpdateProfile)

			protected.POST("/groups", groupHandlers.CreateGroup)
			protected.POST("/groups/join", groupHandlers.JoinGroup)
			protected.GET("/groups", groupHandlers.ListGroups)
			protected.GET("/groups/:groupId", groupHandlers.GetGroup)
			protected.DELETE("/groups/:groupId/leave", groupHandlers.LeaveGroup)

			protected.GET("/groups/:groupId/messages", messageHandlers.ListMessages)
			protected.POST("/groups/:groupId/messages", messageHandlers.PostMessage)
		}
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       2 * time.Minute,
	}, nil
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
