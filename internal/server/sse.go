package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"claudebridge/internal/anthropic"
)

// setSSEHeaders prepares the response for an SSE stream.
func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
}

// sseSink writes translated events in the Anthropic SSE framing:
// event: <type>\ndata: <json>\n\n, flushed per event.
type sseSink struct {
	c       *gin.Context
	flusher http.Flusher
}

func (s *sseSink) Send(event anthropic.StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.Errorf("failed to encode stream event %s: %v", event.EventType(), err)
		return err
	}
	s.c.SSEvent(event.EventType(), string(payload))
	s.flusher.Flush()
	return nil
}

// writeStreamDone emits the terminating [DONE] sentinel after
// message_stop.
func writeStreamDone(c *gin.Context, flusher http.Flusher) {
	if _, err := c.Writer.WriteString("data: [DONE]\n\n"); err != nil {
		return
	}
	flusher.Flush()
}
