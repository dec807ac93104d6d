package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/dagbolade/mcp-guard/internal/proxy"
)

// Server hosts the interception surface: a health endpoint answered locally
// and a catch-all route that hands every other exchange to the pipeline.
type Server struct {
	echo   *echo.Echo
	config Config
}

// Health is what /healthz reports. PolicyAvailable is always true in server
// mode, where no local source file exists to go missing.
type Health struct {
	Status          string `json:"status"`
	PolicyMode      string `json:"policy_mode"`
	FailMode        string `json:"fail_mode"`
	PolicyAvailable bool   `json:"policy_available"`
}

// HealthFunc produces the current health snapshot.
type HealthFunc func() Health

func New(cfg Config, pipeline *proxy.Pipeline, health HealthFunc) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, health())
	})
	e.Any("/*", pipeline.Handle)

	return &Server{echo: e, config: cfg}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)
	log.Info().Int("port", s.config.Server.Port).
		Str("upstream", s.config.Proxy.Upstream).
		Msg("starting guard proxy")

	s.echo.Server.ReadTimeout = time.Duration(s.config.Server.ReadTimeoutSec) * time.Second
	s.echo.Server.WriteTimeout = time.Duration(s.config.Server.WriteTimeoutSec) * time.Second

	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down proxy")

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(s.config.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}
