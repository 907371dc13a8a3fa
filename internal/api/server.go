package api

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samcharles93/wick/internal/logger"
	"github.com/samcharles93/wick/internal/version"
)

type Server struct {
	service *InferenceService
	log     logger.Logger
}

func NewServer(service *InferenceService, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{service: service, log: log}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/generate", s.handleGenerate)
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func (s *Server) handleHealth(c *echo.Context) error {
	resp := HealthResponse{Status: "ok", Version: version.String()}
	if s.service != nil {
		resp.Model = s.service.model
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGenerate(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "inference service not configured")
	}
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	ctx := c.Request().Context()

	if !req.Stream {
		resp, err := s.service.Generate(ctx, req, nil)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, resp)
	}

	stream, err := NewSSEStreamWriter(c)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
	if _, err := s.service.Generate(ctx, req, stream); err != nil {
		if !stream.Started() {
			return s.fail(c, err)
		}
		s.log.Warn("stream failed", "error", err)
		return stream.Failed(err)
	}
	return nil
}

func (s *Server) fail(c *echo.Context, err error) error {
	status, errType := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("generation failed", "error", err, "status", status)
	}
	return writeError(c, status, errType, err.Error())
}
