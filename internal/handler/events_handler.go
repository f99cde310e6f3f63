package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gradua/ceremonia-api/internal/broadcast"
	"github.com/gradua/ceremonia-api/internal/service"
	"github.com/gradua/ceremonia-api/pkg/response"
)

// EventsHandler streams attendance events to projection screens over SSE.
type EventsHandler struct {
	roster    *service.RosterService
	hub       *broadcast.Hub
	keepalive time.Duration
}

// NewEventsHandler constructs EventsHandler.
func NewEventsHandler(roster *service.RosterService, hub *broadcast.Hub, keepalive time.Duration) *EventsHandler {
	if keepalive <= 0 {
		keepalive = 25 * time.Second
	}
	return &EventsHandler{roster: roster, hub: hub, keepalive: keepalive}
}

// Stream godoc
// @Summary Subscribe to live attendance events
// @Tags Attendance
// @Produce text/event-stream
// @Param date query string false "Ceremony date (YYYY-MM-DD, defaults to today)"
// @Param ceremony query string false "Ceremony letter when a date has several"
// @Success 200 {string} string "event stream"
// @Router /attendance/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	ceremony, err := h.roster.Locate(c.Request.Context(), ceremonySelector(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	sub := h.hub.Subscribe(ceremony.BaseName())
	defer h.hub.Unsubscribe(sub.ID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// Comment frame so proxies and clients see bytes immediately.
	if _, err := io.WriteString(c.Writer, ": connected\n\n"); err != nil {
		return
	}
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-sub.C:
			if !ok {
				// Dropped by the hub for falling behind; the client reconnects.
				return false
			}
			c.SSEvent("attendance-update", event)
			return true
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return false
			}
			return true
		case <-clientGone:
			return false
		}
	})
}
