// Package app wires the realtime core together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"collabd/pkg/api"
	"collabd/pkg/auth"
	"collabd/pkg/broker"
	"collabd/pkg/cache"
	"collabd/pkg/chat"
	"collabd/pkg/config"
	"collabd/pkg/kanban"
	"collabd/pkg/logger"
	"collabd/pkg/presence"
	"collabd/pkg/store"
	"collabd/pkg/ws"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg *config.Config

	store    *store.Pebble
	cache    *cache.Cache
	broker   *broker.Shared
	presence *presence.Registry
	gateway  *auth.Gateway

	srv *http.Server
}

// New validates the config and initializes storage and the component
// graph. It does not start the HTTP server; call Run to start and block
// until shutdown.
func New(cfg *config.Config) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	st, err := store.OpenPebble(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", cfg.Storage.DBPath, err)
	}
	ca, err := cache.Open(cfg.Storage.CachePath)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open cache at %s: %w", cfg.Storage.CachePath, err)
	}

	a := &App{
		cfg:      cfg,
		store:    st,
		cache:    ca,
		broker:   broker.NewShared(ca, time.Duration(cfg.WS.PublishTimeoutMS)*time.Millisecond),
		presence: presence.New(ca),
		gateway:  auth.New(cfg.Auth.JWTSecret, st, time.Duration(cfg.Auth.TokenTTLMin)*time.Minute),
	}
	return a, nil
}

// handler builds the full HTTP route table: REST surface plus the two
// WebSocket endpoints.
func (a *App) handler() http.Handler {
	dispatcher := chat.NewDispatcher(a.store, a.presence, a.broker)
	kb := kanban.New(a.store, a.broker)

	r := api.New(a.gateway, a.store, kb, a.presence).Router()

	wsh := ws.NewHandler(a.gateway, a.store, a.presence, a.broker, dispatcher, ws.Options{
		OutboundQueue: a.cfg.WS.OutboundQueue,
		PingPeriod:    time.Duration(a.cfg.WS.HeartbeatSeconds) * time.Second,
		IdleTimeout:   time.Duration(a.cfg.WS.IdleSeconds) * time.Second,
		RateRPS:       a.cfg.WS.RateRPS,
		RateBurst:     a.cfg.WS.RateBurst,
	})
	r.HandleFunc("/ws/chat/", wsh.Chat)
	r.HandleFunc("/ws/kanban/", wsh.Kanban)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Run starts the HTTP server and blocks until ctx is canceled or a fatal
// server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.srv = &http.Server{Addr: a.cfg.Addr(), Handler: a.handler()}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_started", "addr", a.cfg.Addr())
		errCh <- a.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server_shutdown_failed", "error", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Close releases storage handles.
func (a *App) Close() {
	if err := a.cache.Close(); err != nil {
		logger.Error("cache_close_failed", "error", err)
	}
	if err := a.store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
}
