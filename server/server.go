package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/RyanBlaney/sonido-emotion/config"
	"github.com/RyanBlaney/sonido-emotion/inference"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

// Server exposes an inference runtime over HTTP
type Server struct {
	echo    *echo.Echo
	runtime *inference.Runtime
	config  config.ServerConfig
	logger  logging.Logger
}

// New builds the HTTP server. rt may be nil, in which case /health reports no
// model and /predict fails with 500.
func New(cfg config.ServerConfig, rt *inference.Runtime) *Server {
	s := &Server{
		echo:    echo.New(),
		runtime: rt,
		config:  cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "http_server",
		}),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:     true,
		LogURI:        true,
		LogStatus:     true,
		LogLatency:    true,
		LogRequestID:  true,
		LogValuesFunc: s.logRequest,
	}))
	s.echo.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			s.logger.Error(err, "Recovered from panic", logging.Fields{
				"uri":   c.Request().RequestURI,
				"stack": string(stack),
			})
			return err
		},
	}))
	if cfg.EnableCORS {
		s.echo.Use(middleware.CORS())
	}
	if cfg.BodyLimit != "" {
		s.echo.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/predict", s.handlePredict)
}

// Handler returns the root HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address and blocks until the server stops.
// A clean Shutdown is not reported as an error.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("Starting ML server", logging.Fields{"address": addr})

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) logRequest(c echo.Context, v middleware.RequestLoggerValues) error {
	fields := logging.Fields{
		"method":     v.Method,
		"uri":        v.URI,
		"status":     v.Status,
		"latency":    v.Latency.String(),
		"request_id": v.RequestID,
	}
	if v.Status >= http.StatusInternalServerError {
		s.logger.Warn("Request failed", fields)
		return nil
	}
	s.logger.Debug("Request handled", fields)
	return nil
}

// handleError renders every error as {"error": message}
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message = fmt.Sprint(he.Message)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Error: message})
	}
	if err != nil {
		s.logger.Error(err, "Failed to write error response")
	}
}
