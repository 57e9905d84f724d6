package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "MarketMood/pkg/http"
	applogger "MarketMood/pkg/logger"
)

// Scheduler is the recurring job runner owned by the App.
type Scheduler interface {
	Start()
	Stop(ctx context.Context) error
}

// Resource is an infrastructure client closed on shutdown.
type Resource struct {
	Name   string
	Closer io.Closer
}

// App encapsulates the application lifecycle: the HTTP server, the
// scheduler and the infrastructure clients they depend on.
type App struct {
	logger          *applogger.Logger
	httpServer      *xhttp.Server
	scheduler       Scheduler
	startScheduler  bool
	shutdownTimeout time.Duration
	resources       []Resource
}

// New creates a new App. Resources are closed in reverse order on shutdown.
func New(
	logger *applogger.Logger,
	httpServer *xhttp.Server,
	scheduler Scheduler,
	startScheduler bool,
	shutdownTimeout time.Duration,
	resources ...Resource,
) *App {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &App{
		logger:          logger,
		httpServer:      httpServer,
		scheduler:       scheduler,
		startScheduler:  startScheduler,
		shutdownTimeout: shutdownTimeout,
		resources:       resources,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	if a.startScheduler {
		a.scheduler.Start()
	} else {
		a.logger.Warn("scheduler disabled, only manual triggers will run")
	}

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return a.Shutdown()
}

// Shutdown stops accepting requests, waits for in-flight jobs and closes
// every resource.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		a.logger.Warn("scheduler stop error", applogger.Error(err))
	}
	for i := len(a.resources) - 1; i >= 0; i-- {
		r := a.resources[i]
		if err := r.Closer.Close(); err != nil {
			a.logger.Warn("close error", applogger.String("resource", r.Name), applogger.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	return nil
}
