package websocket

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/classpulse/classpulse/backend/internal/events"
)

// Handler handles WebSocket HTTP upgrade requests and bridges the in-process
// event bus onto connected clients.
type Handler struct {
	hub *Hub
	bus *events.Bus
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, bus *events.Bus) *Handler {
	return &Handler{
		hub: hub,
		bus: bus,
	}
}

// HandleWebSocket handles WebSocket upgrade requests. Connections are
// unauthenticated read-only activity streams.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// In production, set specific origins
		InsecureSkipVerify: true, // TODO: restrict origins once the frontend domain is fixed
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(h.hub, conn)
	client.RemoteAddr = c.ClientIP()
	client.UserAgent = c.GetHeader("User-Agent")

	h.hub.Register(client)

	// Send welcome message
	client.Send(NewMessage(MessageTypeSystem, SystemPayload{
		Event:   "connected",
		Message: "Welcome to ClassPulse!",
		Data: map[string]interface{}{
			"server_time": time.Now().UTC().UnixMilli(),
		},
	}))

	go client.WritePump()
	client.ReadPump() // This blocks until client disconnects
}

// RunEventBridge subscribes to the event bus and forwards discussion activity
// to connected clients. It returns when the bus subscription closes.
func (h *Handler) RunEventBridge() {
	sub := h.bus.Subscribe()
	defer sub.Close()

	for ev := range sub.C {
		msg := &Message{
			Type:      ev.Name,
			Payload:   ev.Payload,
			Timestamp: FlexibleTime{Time: ev.Timestamp},
		}

		if id := discussionIDOf(ev); id != "" && ev.Name != events.EventDiscussionCreated {
			h.hub.SendToDiscussion(id, msg)
		} else {
			h.hub.Broadcast(msg)
		}
	}
}

// discussionIDOf extracts the discussion ID from a bus event payload when the
// payload carries one
func discussionIDOf(ev events.Event) string {
	switch p := ev.Payload.(type) {
	case events.ReplyAddedPayload:
		return p.DiscussionID
	case events.UpvotePayload:
		return p.DiscussionID
	case events.ReportPayload:
		return p.DiscussionID
	case events.DeletePayload:
		return p.DiscussionID
	}
	return ""
}

// HandleMetrics returns WebSocket metrics (for monitoring)
func (h *Handler) HandleMetrics(c *gin.Context) {
	metrics := h.hub.GetMetrics()
	c.JSON(http.StatusOK, gin.H{
		"websocket": metrics,
		"clients":   h.hub.ClientCount(),
		"timestamp": time.Now().UTC(),
	})
}

// Shutdown gracefully shuts down the WebSocket handler
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.hub.Shutdown(ctx)
}

// GetHub returns the hub for external access
func (h *Handler) GetHub() *Hub {
	return h.hub
}
