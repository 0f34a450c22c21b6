package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":              "ok",
		"target_llm_provider": s.cfg.TargetProvider,
	})
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "claudebridge",
		"message": "Anthropic Messages proxy is running",
	})
}
