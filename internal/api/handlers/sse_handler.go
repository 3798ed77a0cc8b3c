package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoocv/internal/progress"
)

// Events streams the same progress events as WebSocket as text/event-stream.
func (h *ProgressHandler) Events(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	sub, current, ok := h.subscribe(c, p)
	if !ok {
		return
	}
	defer h.hub.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	_ = progress.Follow(c.Request.Context(), sub, current, h.heartbeat, func(ev progress.Event) error {
		c.SSEvent(string(ev.Type), ev)
		c.Writer.Flush()
		return c.Request.Context().Err()
	})
}
