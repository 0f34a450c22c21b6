// Package server wires the HTTP surface: the Messages endpoint with its
// streaming and passthrough paths, token counting, and health.
package server

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"claudebridge/internal/anthropic"
	"claudebridge/internal/config"
	"claudebridge/internal/router"
	"claudebridge/internal/upstream"
)

// Server owns the gin engine and the shared upstream client.
type Server struct {
	cfg    *config.Config
	router *router.Router
	client *upstream.Client
	engine *gin.Engine
}

// New builds the server and registers all routes.
func New(cfg *config.Config) *Server {
	if cfg.ParseLogLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:    cfg,
		router: router.New(cfg),
		client: upstream.New(),
		engine: gin.New(),
	}

	s.engine.Use(gin.Recovery(), requestLogger())

	s.engine.GET("/", s.handleRoot)
	s.engine.GET("/health", s.handleHealth)
	s.engine.POST("/v1/messages", s.handleMessages)
	s.engine.POST("/v1/messages/count_tokens", s.handleCountTokens)

	return s
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() *gin.Engine { return s.engine }

// Run serves until the listener fails.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	logrus.Infof("listening on %s, target provider %s", addr, s.cfg.TargetProvider)
	return s.engine.Run(addr)
}

// requestLogger logs one line per request with method, path, status and
// latency.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request completed")
	}
}

// writeError sends an Anthropic-shaped error body with its mapped status.
func writeError(c *gin.Context, errType, message string) {
	c.JSON(anthropic.ErrorStatus(errType), anthropic.NewErrorResponse(errType, message))
}

func writeErrorDetail(c *gin.Context, detail anthropic.ErrorDetail) {
	writeError(c, detail.Type, detail.Message)
}
