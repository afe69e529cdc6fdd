// Package api exposes the automation operations over HTTP. The routing
// layer only translates requests and typed errors; all behavior lives in
// the orchestrator.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davidrg-mx/clubagent/api/schemas"
	"github.com/davidrg-mx/clubagent/internal/config"
)

// Service is the orchestrator surface the HTTP layer depends on.
type Service interface {
	Extract(ctx context.Context, req schemas.ExtractRequest) *schemas.ExtractResult
	Login(ctx context.Context, req schemas.LoginRequest) (*schemas.LoginResponse, error)
	CloseSession(ctx context.Context, sessionID string)
	Extractors() []string
	Ready(ctx context.Context) bool
}

// Server wraps the gin engine and the listening http.Server.
type Server struct {
	svc    Service
	cfg    config.ServerConfig
	logger *zap.Logger
	http   *http.Server
}

// NewServer builds the router and binds all routes.
func NewServer(svc Service, cfg config.ServerConfig, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger.Named("api"),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	// cors.New rejects a config with no allowed origins, so an unset list
	// falls back to allow-all like the config default.
	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 || (len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", s.handleHealth)

	v1 := router.Group("/v1")
	{
		v1.GET("/extractors", s.handleExtractors)
		v1.POST("/login", s.handleLogin)
		v1.POST("/extract", s.handleExtract)
		v1.DELETE("/sessions/:id", s.handleCloseSession)
	}

	s.http = &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router,
		ReadTimeout: cfg.ReadTimeout,
	}
	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening.", zap.String("addr", s.cfg.Addr()))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("Request handled.",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if !s.svc.Ready(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "browser_ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "browser_ready": true})
}

func (s *Server) handleExtractors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"extractors": s.svc.Extractors()})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req schemas.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.svc.Login(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleExtract(c *gin.Context) {
	var req schemas.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The extract contract reports failure through the result body, so the
	// status stays 200 unless login itself never produced a session.
	result := s.svc.Extract(c.Request.Context(), req)
	status := http.StatusOK
	if !result.Success && result.Login == nil {
		status = http.StatusUnauthorized
	}
	c.JSON(status, result)
}

func (s *Server) handleCloseSession(c *gin.Context) {
	s.svc.CloseSession(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"closed": c.Param("id")})
}

// writeError maps typed domain errors to HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var loginErr *schemas.LoginError
	if errors.As(err, &loginErr) && len(loginErr.Details) > 0 {
		body["details"] = loginErr.Details
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed.", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	var (
		loginErr      *schemas.LoginError
		navErr        *schemas.NavigationError
		notReadyErr   *schemas.BrowserNotReadyError
		notFoundErr   *schemas.SessionNotFoundError
		unknownExtErr *schemas.UnknownExtractorError
	)
	switch {
	case errors.As(err, &loginErr):
		return http.StatusUnauthorized
	case errors.As(err, &unknownExtErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &notReadyErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &navErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
