package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TradeGate/internal/service/stream"
	"TradeGate/internal/usecase"
	pkgch "TradeGate/pkg/clickhouse"
	"TradeGate/pkg/config"
	xhttp "TradeGate/pkg/http"
	pkgkafka "TradeGate/pkg/kafka"
	applogger "TradeGate/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	gateway     *usecase.Gateway
	streamCli   *stream.Client
	producer    *pkgkafka.Producer
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies. streamCli,
// producer and chClient may be nil when the corresponding backend is
// disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	gateway *usecase.Gateway,
	streamCli *stream.Client,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		gateway:     gateway,
		streamCli:   streamCli,
		producer:    producer,
		chClient:    chClient,
		httpHandler: handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.log, a.cfg.Server.SlowRequest),
	)

	// Start realtime signal stream feeding the gateway's fast lane
	if a.streamCli != nil {
		go func() {
			if err := a.streamCli.Connect(ctx); err != nil {
				a.log.Warn("signal stream connect failed, retrying in background", applogger.Error(err))
			} else if err := a.streamCli.Subscribe(ctx); err != nil {
				a.log.Warn("signal stream subscribe failed", applogger.Error(err))
			}
			a.streamCli.Run(ctx, a.gateway)
		}()
		a.log.Info("signal stream started", applogger.String("url", a.cfg.Stream.URL))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("gateway ready",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Strings("pairs", a.cfg.Gateway.Pairs))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	// Stop the gateway loops first so nothing new executes
	a.gateway.Shutdown()

	if a.streamCli != nil {
		if err := a.streamCli.Close(); err != nil {
			a.log.Warn("signal stream close error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
