package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/config"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/handlers"
	"github.com/anatoly-dev/go-ws-matchmaker/pkg/metrics"
)

// ShutdownHook releases an optional integration after the hub has stopped.
type ShutdownHook struct {
	Name  string
	Close func(ctx context.Context) error
}

type Server struct {
	server         *http.Server
	wsHandler      *handlers.WebSocketHandler
	healthHandler  *handlers.HealthCheckHandler
	iceHandler     *handlers.ICEHandler
	metricsHandler *metrics.MetricsHandler
	sessionService *SessionService
	hooks          []ShutdownHook
	logger         *zap.Logger
	cfg            *config.ServerConfig
}

func NewServer(
	wsHandler *handlers.WebSocketHandler,
	healthHandler *handlers.HealthCheckHandler,
	iceHandler *handlers.ICEHandler,
	metricsHandler *metrics.MetricsHandler,
	sessionService *SessionService,
	logger *zap.Logger,
	cfg *config.ServerConfig,
) *Server {
	return &Server{
		wsHandler:      wsHandler,
		healthHandler:  healthHandler,
		iceHandler:     iceHandler,
		metricsHandler: metricsHandler,
		sessionService: sessionService,
		logger:         logger,
		cfg:            cfg,
	}
}

// OnShutdown registers a hook run after the hub stops, in registration order.
func (s *Server) OnShutdown(name string, fn func(ctx context.Context) error) {
	s.hooks = append(s.hooks, ShutdownHook{Name: name, Close: fn})
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.metricsHandler.Instrument("/ws", s.wsHandler.HandleConnection))
	mux.HandleFunc("/health", s.metricsHandler.Instrument("/health", s.healthHandler.HandleHealthCheck))
	mux.HandleFunc("/ice-servers", s.metricsHandler.Instrument("/ice-servers", s.iceHandler.HandleICEServers))
	mux.Handle("/metrics", s.metricsHandler.Handler())
	return mux
}

// Start serves until SIGINT/SIGTERM or ctx cancellation, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.sessionService.Start()

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.cfg.Port))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		s.logger.Error("Server failed", zap.Error(err))
		s.shutdown(context.Background())
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
		s.logger.Info("Received shutdown signal")
	}

	shutdownTimeout := 30 * time.Second
	if s.cfg.ShutdownTimeout > 0 {
		shutdownTimeout = s.cfg.ShutdownTimeout
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down services", zap.Duration("timeout", shutdownTimeout))
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting HTTP requests, closes every websocket, stops the
// hub and then runs the registered hooks.
func (s *Server) Shutdown(ctx context.Context) error {
	var httpErr error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			httpErr = fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	s.shutdown(ctx)

	if httpErr != nil {
		return httpErr
	}
	s.logger.Info("Server stopped gracefully")
	return nil
}

func (s *Server) shutdown(ctx context.Context) {
	if err := s.wsHandler.CloseConnections(ctx); err != nil {
		s.logger.Error("Error closing WebSocket connections", zap.Error(err))
	}

	s.sessionService.Stop()
	s.metricsHandler.Stop()

	for _, hook := range s.hooks {
		if err := hook.Close(ctx); err != nil {
			s.logger.Error("Error during shutdown", zap.String("component", hook.Name), zap.Error(err))
		}
	}
}
