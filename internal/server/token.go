package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"claudebridge/internal/anthropic"
	"claudebridge/internal/config"
	"claudebridge/internal/router"
	"claudebridge/internal/tokencount"
	"claudebridge/internal/translate"
)

// handleCountTokens estimates the prompt size of a Messages request. The
// body is translated to the upstream shape first so the count reflects the
// prompt the upstream will see. For the anthropic passthrough provider the
// count comes from the upstream's own counting endpoint.
func (s *Server) handleCountTokens(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody))
	if err != nil {
		writeError(c, anthropic.ErrTypeInvalidRequest, "failed to read request body")
		return
	}

	if s.cfg.TargetProvider == config.ProviderAnthropic {
		s.relayCountTokens(c, body)
		return
	}

	var req anthropic.CountTokensRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(c, anthropic.ErrTypeInvalidRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Model == "" {
		writeError(c, anthropic.ErrTypeInvalidRequest, "model is required")
		return
	}
	if len(req.Messages) == 0 {
		writeError(c, anthropic.ErrTypeInvalidRequest, "messages must not be empty")
		return
	}

	route, err := s.router.Resolve(req.Model)
	if err != nil {
		if errors.Is(err, router.ErrModelUnresolvable) {
			writeError(c, anthropic.ErrTypeNotFound, err.Error())
			return
		}
		writeError(c, anthropic.ErrTypeAPI, err.Error())
		return
	}

	msgReq := &anthropic.MessagesRequest{
		Model:      req.Model,
		Messages:   req.Messages,
		System:     req.System,
		Tools:      req.Tools,
		ToolChoice: req.ToolChoice,
		MaxTokens:  1,
	}
	chatReq, err := translate.ToChatRequest(msgReq, route.Model, route.Provider)
	if err != nil {
		writeError(c, anthropic.ErrTypeInvalidRequest, err.Error())
		return
	}

	if !tokencount.Available() {
		c.JSON(http.StatusNotImplemented, anthropic.NewErrorResponse(
			anthropic.ErrTypeAPI, "token counting is unavailable"))
		return
	}

	count := tokencount.EstimateChatTokens(chatReq)
	c.JSON(http.StatusOK, anthropic.CountTokensResponse{InputTokens: count})
}

// relayCountTokens forwards the raw body to the passthrough provider's
// own counting endpoint.
func (s *Server) relayCountTokens(c *gin.Context, body []byte) {
	route, err := s.router.Resolve("")
	if err != nil {
		writeError(c, anthropic.ErrTypeAPI, err.Error())
		return
	}

	resp, err := s.client.RelayCountTokens(c.Request.Context(), route, body)
	if err != nil {
		writeErrorDetail(c, translate.ErrorFromTransport(err))
		return
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		logrus.Errorf("reading passthrough count_tokens reply: %v", err)
		writeError(c, anthropic.ErrTypeAPI, "failed to read upstream reply")
		return
	}
	c.Data(resp.StatusCode, "application/json", raw)
}
