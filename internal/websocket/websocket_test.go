package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse/backend/internal/events"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	assert.NotNil(t, hub)
	assert.NotNil(t, hub.allClients)
	assert.NotNil(t, hub.rooms)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.roomcast)
	assert.NotNil(t, hub.metrics)
	assert.NotNil(t, hub.handlers)
}

func TestRateLimiter(t *testing.T) {
	// Create a rate limiter allowing 5 per second with burst of 10
	rl := NewRateLimiter(5, 10)

	// Should allow first 10 requests (burst)
	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow(), "Request %d should be allowed", i+1)
	}

	// Next request should be denied (no tokens left)
	assert.False(t, rl.Allow(), "Request 11 should be denied")

	// After waiting, should be allowed again
	time.Sleep(300 * time.Millisecond)
	assert.True(t, rl.Allow(), "Request after wait should be allowed")
}

func TestNewMessage(t *testing.T) {
	payload := map[string]string{"discussion_id": "d-1"}
	msg := NewMessage(MessageTypeReplyAdded, payload)

	assert.Equal(t, MessageTypeReplyAdded, msg.Type)
	assert.NotNil(t, msg.Payload)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestNewReply(t *testing.T) {
	original := NewMessage(MessageTypePing, nil)
	original.ID = "original-id"
	reply := NewReply(original, MessageTypePong, nil)

	assert.Equal(t, MessageTypePong, reply.Type)
	assert.Equal(t, "original-id", reply.ReplyTo)
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("test_error", "Something went wrong")

	assert.Equal(t, MessageTypeError, msg.Type)

	payload, ok := msg.Payload.(ErrorPayload)
	assert.True(t, ok)
	assert.Equal(t, "test_error", payload.Code)
	assert.Equal(t, "Something went wrong", payload.Message)
}

func TestMessageParsePayload(t *testing.T) {
	// Create message with map payload
	msg := NewMessage(MessageTypePing, map[string]interface{}{
		"client_time": float64(1234567890),
	})

	var ping PingPayload
	err := msg.ParsePayload(&ping)
	assert.NoError(t, err)
	assert.Equal(t, int64(1234567890), ping.ClientTime)
}

func TestMessageJSONSerialization(t *testing.T) {
	msg := NewMessage(MessageTypeUpvoteUpdated, events.UpvotePayload{
		DiscussionID: "d-1",
		UserID:       "student-9",
	})
	msg.ID = "msg-id"

	// Serialize to JSON
	data, err := json.Marshal(msg)
	assert.NoError(t, err)

	// Deserialize back
	var parsed Message
	err = json.Unmarshal(data, &parsed)
	assert.NoError(t, err)

	assert.Equal(t, MessageTypeUpvoteUpdated, parsed.Type)
	assert.Equal(t, "msg-id", parsed.ID)
	assert.NotNil(t, parsed.Payload)
}

func TestFlexibleTimeUnmarshal(t *testing.T) {
	var ft FlexibleTime
	require.NoError(t, json.Unmarshal([]byte("1700000000000"), &ft))
	assert.Equal(t, int64(1700000000000), ft.UnixMilli())

	require.NoError(t, json.Unmarshal([]byte(`"2026-01-02T15:04:05Z"`), &ft))
	assert.Equal(t, 2026, ft.Year())

	assert.Error(t, json.Unmarshal([]byte(`{"bad":"type"}`), &ft))
}

func TestHubMetrics(t *testing.T) {
	hub := NewHub()

	metrics := hub.GetMetrics()
	assert.Equal(t, int64(0), metrics.TotalConnections)
	assert.Equal(t, int64(0), metrics.ActiveConnections)
	assert.Equal(t, int64(0), metrics.MessagesReceived)
	assert.Equal(t, int64(0), metrics.MessagesSent)

	// Test metrics string representation
	str := metrics.String()
	assert.Contains(t, str, "connections=0/0")
}

func TestDefaultRateLimitConfig(t *testing.T) {
	config := DefaultRateLimitConfig()

	assert.Equal(t, 10, config.MaxMessagesPerSecond)
	assert.Equal(t, 20, config.BurstSize)
	assert.Equal(t, time.Second, config.Window)
}

func TestHubRegisterHandler(t *testing.T) {
	hub := NewHub()

	// Register a handler
	hub.RegisterHandler("test_type", func(client *Client, msg *Message) error {
		return nil
	})

	// Check handler exists
	handler, ok := hub.GetHandler("test_type")
	assert.True(t, ok)
	assert.NotNil(t, handler)

	// Check non-existent handler
	_, ok = hub.GetHandler("nonexistent")
	assert.False(t, ok)
}

func TestHubRooms(t *testing.T) {
	hub := NewHub()
	client := &Client{hub: hub, rooms: make(map[string]struct{}), send: make(chan []byte, 1)}

	assert.Equal(t, 0, hub.RoomSize("d-1"))

	hub.Join(client, []string{"d-1", "d-2"})
	assert.Equal(t, 1, hub.RoomSize("d-1"))
	assert.Equal(t, 1, hub.RoomSize("d-2"))

	hub.Leave(client, []string{"d-1"})
	assert.Equal(t, 0, hub.RoomSize("d-1"))
	assert.Equal(t, 1, hub.RoomSize("d-2"))
}

func TestDiscussionIDOf(t *testing.T) {
	cases := []struct {
		name string
		ev   events.Event
		want string
	}{
		{"reply", events.Event{Payload: events.ReplyAddedPayload{DiscussionID: "d-1"}}, "d-1"},
		{"upvote", events.Event{Payload: events.UpvotePayload{DiscussionID: "d-2"}}, "d-2"},
		{"report", events.Event{Payload: events.ReportPayload{DiscussionID: "d-3"}}, "d-3"},
		{"delete", events.Event{Payload: events.DeletePayload{DiscussionID: "d-4"}}, "d-4"},
		{"unknown", events.Event{Payload: map[string]string{"id": "x"}}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, discussionIDOf(tc.ev))
		})
	}
}

func TestMessageTypes(t *testing.T) {
	// Ensure all message types are defined and unique
	types := []string{
		MessageTypeSystem,
		MessageTypePing,
		MessageTypePong,
		MessageTypeError,
		MessageTypeDiscussionCreated,
		MessageTypeReplyAdded,
		MessageTypeUpvoteUpdated,
		MessageTypeContentReported,
		MessageTypeContentDeleted,
		MessageTypeSubscribe,
		MessageTypeUnsubscribe,
	}

	// Check all are non-empty
	for _, typ := range types {
		assert.NotEmpty(t, typ)
	}

	// Check all are unique
	seen := make(map[string]bool)
	for _, typ := range types {
		assert.False(t, seen[typ], "Duplicate message type: %s", typ)
		seen[typ] = true
	}
}
