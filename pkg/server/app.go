package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"NoisyMarket/pkg/config"
	xhttp "NoisyMarket/pkg/http"
	applogger "NoisyMarket/pkg/logger"
)

// Component is a background service started with the app and stopped on shutdown.
type Component interface {
	Start() error
	Stop(ctx context.Context) error
}

type namedComponent struct {
	name string
	c    Component
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	components []namedComponent
	started    []namedComponent
}

// New creates a new App around the HTTP server.
func New(cfg *config.Config, log *applogger.Logger, srv *xhttp.Server) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{cfg: cfg, log: log, httpServer: srv}
}

// AddComponent registers a background service. Components start in registration order and stop
// in reverse.
func (a *App) AddComponent(name string, c Component) {
	a.components = append(a.components, namedComponent{name: name, c: c})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and the HTTP server, then blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.Start(); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start starts the components, then the HTTP server.
func (a *App) Start() error {
	for _, nc := range a.components {
		if err := nc.c.Start(); err != nil {
			a.log.Error("component start failed", applogger.String("component", nc.name), applogger.Error(err))
			return err
		}
		a.started = append(a.started, nc)
		a.log.Info("component started", applogger.String("component", nc.name))
	}
	if a.httpServer == nil {
		return nil
	}
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// Shutdown stops the HTTP server first so no new work arrives, then the started components.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	for i := len(a.started) - 1; i >= 0; i-- {
		nc := a.started[i]
		if err := nc.c.Stop(shutdownCtx); err != nil {
			a.log.Warn("component stop error", applogger.String("component", nc.name), applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.started = nil

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
