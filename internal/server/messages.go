package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"claudebridge/internal/anthropic"
	"claudebridge/internal/config"
	"claudebridge/internal/openai"
	"claudebridge/internal/router"
	"claudebridge/internal/translate"
	"claudebridge/internal/upstream"
)

const maxRequestBody = 32 << 20

// handleMessages is the Messages endpoint. Requests to the anthropic
// passthrough provider are relayed verbatim; everything else is decoded,
// routed and translated to the upstream Chat Completions surface.
func (s *Server) handleMessages(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody))
	if err != nil {
		writeError(c, anthropic.ErrTypeInvalidRequest, "failed to read request body")
		return
	}

	if s.cfg.TargetProvider == config.ProviderAnthropic {
		s.relayMessages(c, body)
		return
	}

	var req anthropic.MessagesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(c, anthropic.ErrTypeInvalidRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, anthropic.ErrTypeInvalidRequest, err.Error())
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

	chatReq, err := translate.ToChatRequest(&req, route.Model, route.Provider)
	if err != nil {
		writeError(c, anthropic.ErrTypeInvalidRequest, err.Error())
		return
	}

	logrus.WithFields(logrus.Fields{
		"model":          req.Model,
		"upstream_model": route.Model,
		"provider":       route.Provider,
		"stream":         req.Stream,
	}).Debug("forwarding messages request")

	if req.Stream {
		s.streamMessages(c, &req, route, chatReq)
		return
	}

	completion, err := s.client.CreateChatCompletion(c.Request.Context(), route, chatReq)
	if err != nil {
		writeErrorDetail(c, upstreamErrorDetail(err))
		return
	}
	resp, err := translate.ToMessagesResponse(completion, req.Model)
	if err != nil {
		writeError(c, anthropic.ErrTypeAPI, err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}

// streamMessages runs the streaming path: open the upstream stream, then
// pump chunks through the event translator until the upstream ends, the
// client disconnects, or the upstream fails mid-stream.
func (s *Server) streamMessages(c *gin.Context, req *anthropic.MessagesRequest, route router.Route, chatReq *openai.ChatRequest) {
	stream, err := s.client.StreamChatCompletion(c.Request.Context(), route, chatReq)
	if err != nil {
		writeErrorDetail(c, upstreamErrorDetail(err))
		return
	}
	defer stream.Close()

	setSSEHeaders(c)
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		writeError(c, anthropic.ErrTypeAPI, "streaming unsupported by connection")
		return
	}

	tr := translate.NewStreamTranslator(&sseSink{c: c, flusher: flusher}, req.Model)

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			logrus.Debug("client disconnected, stopping stream")
			return false
		default:
		}

		if stream.Next() {
			chunk := stream.Current()
			if err := tr.Push(&chunk); err != nil {
				logrus.Debugf("stopping stream, client write failed: %v", err)
				return false
			}
			return true
		}

		if err := stream.Err(); err != nil {
			logrus.Errorf("upstream stream failed: %v", err)
			if err := tr.FailWith(translate.ErrorFromTransport(err)); err != nil {
				logrus.Debugf("client write failed during stream error: %v", err)
			}
			return false
		}
		if err := tr.Finish(); err != nil {
			logrus.Debugf("client write failed during stream finish: %v", err)
		}
		return false
	})

	if tr.Finished() {
		writeStreamDone(c, flusher)
	}
}

// relayMessages forwards the raw body to the passthrough provider and
// copies the reply back, flushing as it goes so streams pass through.
func (s *Server) relayMessages(c *gin.Context, body []byte) {
	route, err := s.router.Resolve(gjson.GetBytes(body, "model").String())
	if err != nil {
		writeError(c, anthropic.ErrTypeAPI, err.Error())
		return
	}
	streaming := gjson.GetBytes(body, "stream").Bool()

	resp, err := s.client.RelayMessages(c.Request.Context(), route, body, streaming)
	if err != nil {
		writeErrorDetail(c, translate.ErrorFromTransport(err))
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Header("Content-Type", contentType)
	c.Status(resp.StatusCode)

	flusher, _ := c.Writer.(http.Flusher)
	buf := make([]byte, 32<<10)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := c.Writer.Write(buf[:n]); writeErr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				logrus.Errorf("passthrough copy failed: %v", readErr)
			}
			return
		}
	}
}

// upstreamErrorDetail classifies a client error: an HTTP status reply is
// translated from its body, anything else is a connection failure.
func upstreamErrorDetail(err error) anthropic.ErrorDetail {
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		return translate.ErrorFromUpstream(statusErr.StatusCode, statusErr.Body)
	}
	return translate.ErrorFromTransport(err)
}
