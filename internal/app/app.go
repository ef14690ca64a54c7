package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/squadchat/internal/auth"
	"github.com/vovakirdan/squadchat/internal/config"
	"github.com/vovakirdan/squadchat/internal/core"
	"github.com/vovakirdan/squadchat/internal/service/groups"
	"github.com/vovakirdan/squadchat/internal/store"
	"github.com/vovakirdan/squadchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/squadchat/internal/transport/http"
)

// App wires together store, core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	authority := core.NewAuthority(st)
	msgLog := core.NewMessageLog(st, authority, core.LogConfig{
		MaxMessageLength: cfg.MaxMessageLength,
		MaxPageSize:      cfg.MaxPageSize,
	})
	hub := core.NewHub(msgLog, authority, logger)

	server, err := transporthttp.NewServer(transporthttp.Deps{
		Hub:     hub,
		History: core.NewHistory(msgLog, authority),
		Auth:    authService,
		Groups:  groups.New(st, hub, logger),
		Users:   st,
	}, cfg, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	var hubDone sync.WaitGroup
	hubDone.Add(1)
	go func() {
		defer hubDone.Done()
		a.hub.Run(hubCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup(stopHub, &hubDone)
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		// Hijacked WebSocket connections are not tracked by Shutdown; stopping
		// the hub closes them.
		stopHub()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup(stopHub, &hubDone)
			return err
		}

		a.cleanup(stopHub, &hubDone)
		return <-serverErr
	}
}

// cleanup stops the hub and closes the database.
func (a *App) cleanup(stopHub context.CancelFunc, hubDone *sync.WaitGroup) {
	stopHub()
	hubDone.Wait()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
