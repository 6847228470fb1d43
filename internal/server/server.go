package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/hermes/internal/docs"
	"github.com/mohammad-safakhou/hermes/internal/scheduler"
	"github.com/mohammad-safakhou/hermes/internal/workflow"
)

// MusicRunner runs media acquisition requests.
type MusicRunner interface {
	Run(ctx context.Context, threadID, text string) (workflow.Result, error)
}

// Chatter answers general questions.
type Chatter interface {
	Chat(ctx context.Context, threadID, text string) (string, error)
}

// DocsService answers questions grounded in ingested pages.
type DocsService interface {
	Ingest(ctx context.Context, pageURL, class string) (docs.IngestResult, error)
	Similar(ctx context.Context, question string) ([]docs.Hit, error)
	Ask(ctx context.Context, threadID, question string) (docs.Answer, error)
}

// Jobs lists and cancels deferred jobs.
type Jobs interface {
	Jobs() []scheduler.JobInfo
	Cancel(id string) error
}

// Deps are the services exposed over HTTP. Nil services leave their routes unregistered.
type Deps struct {
	Music     MusicRunner
	Chat      Chatter
	Docs      DocsService
	Jobs      Jobs
	Metrics   http.Handler
	JWTSecret string
	Logger    *zap.Logger
}

// New builds the echo instance with every route wired.
func New(d Deps) *echo.Echo {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP))
			return nil
		},
	}))
	// Unified HTTP error handler with structured JSON and logging
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		fields := []zap.Field{zap.Int("status", code), zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err)}
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Info("request rejected", fields...)
		}
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	api := e.Group("/api")
	if d.JWTSecret != "" {
		api.Use(authMiddleware([]byte(d.JWTSecret)))
	}
	h := &handlers{deps: d, logger: logger}
	if d.Chat != nil {
		api.POST("/chat", h.chat)
	}
	if d.Music != nil {
		api.POST("/music", h.music)
	}
	if d.Docs != nil {
		g := api.Group("/docs")
		g.POST("/ask", h.ask)
		g.POST("/ingest", h.ingest)
		g.POST("/similar", h.similar)
	}
	if d.Jobs != nil {
		api.GET("/jobs", h.listJobs)
		api.DELETE("/jobs/:id", h.cancelJob)
	}
	return e
}

// Serve starts e on addr and shuts it down gracefully when ctx is cancelled.
func Serve(ctx context.Context, e *echo.Echo, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
