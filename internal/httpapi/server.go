// Package httpapi exposes the recommendation engine over a small REST API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Soochol/superclaude-auto-flags/internal/app"
	"github.com/Soochol/superclaude-auto-flags/internal/learning"
	"github.com/Soochol/superclaude-auto-flags/internal/search"
)

// Server provides HTTP endpoints for autoflags.
type Server struct {
	echo   *echo.Echo
	app    *app.App
	logger *zap.Logger
	addr   string
}

// NewServer creates a new HTTP server listening on addr.
func NewServer(a *app.App, logger *zap.Logger, addr string) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("app cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{echo: e, app: a, logger: logger, addr: addr}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/recommend", s.handleRecommend)
	v1.POST("/feedback", s.handleFeedback)
	v1.GET("/report/:user", s.handleReport)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Learning bool   `json:"learning"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Learning: s.app.StoreErr == nil,
	})
}

func (s *Server) handleRecommend(c echo.Context) error {
	var req app.RecommendInput
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid recommend request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Category == "" && req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "category or text is required")
	}

	res, err := s.app.Recommend(c.Request().Context(), req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleFeedback(c echo.Context) error {
	var fb learning.Feedback
	if err := c.Bind(&fb); err != nil {
		s.logger.Warn("invalid feedback request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := s.app.SubmitFeedback(c.Request().Context(), fb)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleReport(c echo.Context) error {
	report, err := s.app.Report(c.Request().Context(), c.Param("user"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// toHTTPError maps domain errors to status codes.
func toHTTPError(err error) *echo.HTTPError {
	var status int
	switch {
	case errors.Is(err, learning.ErrUnknownInteraction):
		status = http.StatusNotFound
	case errors.Is(err, learning.ErrDuplicateFeedback):
		status = http.StatusConflict
	case errors.Is(err, learning.ErrInvalidFeedback):
		status = http.StatusBadRequest
	case errors.Is(err, learning.ErrUnknownCategory), errors.Is(err, search.ErrNoCategory):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, learning.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}
	return echo.NewHTTPError(status, err.Error())
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
