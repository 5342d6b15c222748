// Package api serves a loaded session over HTTP for local worker use.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/gpunexus/gpuf/internal/bridge"
	"github.com/gpunexus/gpuf/internal/engine"
	"github.com/gpunexus/gpuf/internal/logger"
	"github.com/gpunexus/gpuf/internal/metrics"
	"github.com/gpunexus/gpuf/internal/version"
)

type ServerOptions struct {
	Host    *bridge.Host
	Results *ResultStore
	// Defaults for POST /v1/session and POST /v1/generate.
	ContextSize uint32
	GPULayers   uint32
	MaxTokens   uint
	Logger      logger.Logger
}

type Server struct {
	host    *bridge.Host
	results *ResultStore
	opts    ServerOptions
	log     logger.Logger
}

func NewServer(opts ServerOptions) *Server {
	if opts.Host == nil {
		opts.Host = bridge.NewHost(bridge.HostOptions{Logger: opts.Logger})
	}
	if opts.Results == nil {
		opts.Results = NewResultStore(10 * time.Minute)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Server{
		host:    opts.Host,
		results: opts.Results,
		opts:    opts,
		log:     opts.Logger.With("component", "api"),
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/version", s.handleVersion)
	e.GET("/v1/health", s.handleHealth)
	e.GET("/v1/system", s.handleSystem)
	e.GET("/v1/status", s.handleStatus)

	e.POST("/v1/session", s.handleCreateSession)
	e.GET("/v1/session", s.handleGetSession)
	e.DELETE("/v1/session", s.handleDeleteSession)

	e.POST("/v1/generate", s.handleGenerate)
	e.GET("/v1/generations/:id", s.handleGetGeneration)
	e.GET("/v1/last-error", s.handleLastError)

	e.GET("/metrics", wrapHandler(metrics.Handler()))
}

func (s *Server) handleVersion(c *echo.Context) error {
	info := version.Resolve()
	return c.JSON(http.StatusOK, VersionResponse{
		Version: s.host.Version(),
		Commit:  info.Commit,
		Built:   info.BuildTime,
	})
}

func (s *Server) handleHealth(c *echo.Context) error {
	rt := s.host.Runtime()
	resp := HealthResponse{
		Status:      "ok",
		Initialized: rt.Initialized(),
		Session:     s.host.Session() != nil,
	}
	if dev := rt.Device(); dev != nil {
		resp.Device = dev.Name()
	}
	if !resp.Initialized {
		resp.Status = "uninitialized"
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateSession(c *echo.Context) error {
	req, err := decodeJSON[SessionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Model) == "" {
		return writeBadRequest(c, "model is required")
	}
	opts := engine.SessionOptions{
		ContextSize: s.opts.ContextSize,
		GPULayers:   s.opts.GPULayers,
	}
	if req.ContextSize != nil {
		opts.ContextSize = *req.ContextSize
	}
	if req.GPULayers != nil {
		opts.GPULayers = *req.GPULayers
	}
	if req.Sampling != nil {
		sc, err := req.Sampling.apply(opts.Sampling)
		if err != nil {
			return writeBadRequest(c, err.Error())
		}
		opts.Sampling = sc
	}

	info, err := s.host.Load(req.Model, opts)
	if err != nil {
		return writeEngineError(c, err)
	}
	s.log.Info("session loaded", "id", info.ID, "model", info.ModelPath)
	return c.JSON(http.StatusCreated, info)
}

func (s *Server) handleGetSession(c *echo.Context) error {
	sess := s.host.Session()
	if sess == nil {
		return writeNotFound(c, "no model loaded")
	}
	return c.JSON(http.StatusOK, sess.Info())
}

func (s *Server) handleDeleteSession(c *echo.Context) error {
	if s.host.Session() == nil {
		return writeNotFound(c, "no model loaded")
	}
	if err := s.host.Close(); err != nil {
		return writeEngineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGenerate(c *echo.Context) error {
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	genReq := engine.GenerationRequest{
		Prompt:    req.Prompt,
		MaxTokens: s.opts.MaxTokens,
	}
	if req.MaxTokens != nil {
		genReq.MaxTokens = *req.MaxTokens
	}
	if req.Sampling != nil {
		sess := s.host.Session()
		if sess == nil {
			return writeEngineError(c, &engine.Error{Kind: engine.NotInitialized, Op: "llm_generate", Err: engine.ErrNotInitialized})
		}
		sc, err := req.Sampling.apply(sess.Sampling())
		if err != nil {
			return writeBadRequest(c, err.Error())
		}
		genReq.Sampling = &sc
	}

	var writer *SSEStreamWriter
	if req.Stream {
		w, err := NewSSEStreamWriter(c)
		if err != nil {
			return writeBadRequest(c, err.Error())
		}
		writer = w
		genReq.Stream = w.EmitToken
	}

	res, err := s.host.Generate(c.Request().Context(), genReq)
	if err != nil {
		if writer != nil {
			if writer.Started() {
				return writer.Fail(err)
			}
			c.Response().Header().Del(echo.HeaderContentType)
		}
		return writeEngineError(c, err)
	}
	s.results.Save(res)

	if writer != nil {
		return writer.Done(res)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleGetGeneration(c *echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeBadRequest(c, "invalid generation id")
	}
	res, ok := s.results.Get(id)
	if !ok {
		return writeNotFound(c, "generation not found")
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleSystem(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.host.SystemInfo())
}

func (s *Server) handleStatus(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.host.Status())
}

func (s *Server) handleLastError(c *echo.Context) error {
	msg := s.host.LastError()
	return c.JSON(http.StatusOK, LastErrorResponse{Pending: msg != "", Message: msg})
}

func wrapHandler(h http.Handler) echo.HandlerFunc {
	return func(c *echo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}
