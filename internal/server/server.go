package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"modelgate/internal/config"
	"modelgate/internal/engine"
	"modelgate/internal/metrics"
	"modelgate/internal/models"
	"modelgate/internal/translator"
)

const (
	readTimeout = 30 * time.Second
	idleTimeout = 120 * time.Second
)

// Completer serves canonical chat requests.
type Completer interface {
	Complete(ctx context.Context, req models.ChatRequest) (*models.Completion, error)
}

// StateReporter exposes the engine session lifecycle for health checks.
type StateReporter interface {
	State() engine.State
}

// Server is the HTTP surface of the gateway.
type Server struct {
	cfg       config.ServerConfig
	completer Completer
	session   StateReporter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	app       *echo.Echo
	address   string
	now       func() time.Time
}

// New constructs an HTTP server wired with routing and middleware. A nil
// metrics disables GET /metrics.
func New(cfg config.ServerConfig, completer Completer, session StateReporter, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	if completer == nil {
		return nil, errors.New("completer must not be nil")
	}
	if session == nil {
		return nil, errors.New("session must not be nil")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("server port must be a valid TCP port, got %d", cfg.Port)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: newRequestID,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	srv := &Server{
		cfg:       cfg,
		completer: completer,
		session:   session,
		metrics:   m,
		logger:    logger,
		app:       e,
		address:   fmt.Sprintf(":%d", cfg.Port),
		now:       time.Now,
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting server", "addr", s.address)

	// No write timeout: a completion may legitimately run for the whole
	// request timeout.
	httpServer := &http.Server{
		Addr:        s.address,
		Handler:     s.app,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/chat", s.handleChat)
	s.app.POST("/v1/chat/completions", s.handleChat)
	if s.metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	state := s.session.State()
	status := http.StatusOK
	if state == engine.StateFailed {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]string{"status": state.String()})
}

func (s *Server) handleChat(c echo.Context) error {
	var req translator.ChatCompletionRequest
	if err := decodeRequestBody(c, s.cfg.MaxBodyBytes, &req); err != nil {
		return err
	}

	completion, err := s.completer.Complete(c.Request().Context(), req.ToModel())
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, translator.FromCompletion(s.now().Unix(), completion))
}
