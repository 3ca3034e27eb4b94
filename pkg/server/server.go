// Package server exposes the report pipeline over HTTP, streaming each run
// to its client as server-sent events.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docker/briefing/pkg/pipeline"
	"github.com/docker/briefing/pkg/session"
)

// Runtime is the swappable part of the server, rebuilt on config reload.
// Runs keep the Runtime they started with.
type Runtime struct {
	Orchestrator   *pipeline.Orchestrator
	DefaultAspects []string
}

type Server struct {
	e        *echo.Echo
	runtime  atomic.Pointer[Runtime]
	sessions session.Store
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	shutdownTimeout time.Duration
}

type Opt func(*Server)

func WithLogger(logger *slog.Logger) Opt {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Opt {
	return func(s *Server) {
		s.gatherer = g
	}
}

func WithShutdownTimeout(d time.Duration) Opt {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

func New(rt *Runtime, sessions session.Store, opts ...Opt) (*Server, error) {
	if rt == nil || rt.Orchestrator == nil {
		return nil, errors.New("server requires an orchestrator")
	}
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}

	s := &Server{
		sessions:        sessions,
		gatherer:        prometheus.DefaultGatherer,
		logger:          slog.Default(),
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runtime.Store(rt)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("HTTP request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	api := e.Group("/api")
	api.POST("/reports", s.createReport)
	api.GET("/reports/ws", s.streamReportWS)
	api.GET("/sessions", s.listSessions)
	api.GET("/sessions/:id", s.getSession)
	api.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	s.e = e
	return s, nil
}

// Swap replaces the runtime used by new runs.
func (s *Server) Swap(rt *Runtime) {
	if rt == nil || rt.Orchestrator == nil {
		return
	}
	s.runtime.Store(rt)
	s.logger.Info("Server runtime reloaded")
}

func (s *Server) Handler() http.Handler {
	return s.e
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Server shutdown did not complete", "error", err)
		}
	}()

	s.logger.Info("Server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Listen accepts host:port or unix:///path/to/socket.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig

	if path, ok := strings.CutPrefix(addr, "unix://"); ok {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("removing stale socket: %w", err)
		}
		return lc.Listen(ctx, "unix", path)
	}
	return lc.Listen(ctx, "tcp", addr)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getSession(c echo.Context) error {
	sess, err := s.sessions.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load session")
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) listSessions(c echo.Context) error {
	sessions, err := s.sessions.List(c.Request().Context(), c.QueryParam("user_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return c.JSON(http.StatusOK, sessions)
}
