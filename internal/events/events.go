// Package events provides the in-process notifier that fans discussion
// mutations out to connected viewers. Delivery is at-most-once and
// best-effort: no acknowledgment, no replay for late subscribers, and a
// subscriber whose buffer is full at publish time misses that event
// rather than blocking the publisher.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/classpulse/classpulse/backend/internal/logger"
	"github.com/classpulse/classpulse/backend/internal/metrics"
)

// Event names in the discussion catalogue
const (
	EventDiscussionCreated = "discussion:created"
	EventReplyAdded        = "reply:added"
	EventUpvoteUpdated     = "upvote:updated"
	EventContentReported   = "content:reported"
	EventContentDeleted    = "content:deleted"
)

// Event is a typed change notification published after a store commit
type Event struct {
	Name      string      `json:"event"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher is what mutating services depend on. Publish must never
// block and must never fail the mutation that triggered it.
type Publisher interface {
	Publish(name string, payload interface{})
}

// NopPublisher discards all events
type NopPublisher struct{}

func (NopPublisher) Publish(name string, payload interface{}) {}

// Payloads carried by the catalogue events

// ReplyAddedPayload accompanies reply:added
type ReplyAddedPayload struct {
	DiscussionID string      `json:"discussion_id"`
	Reply        interface{} `json:"reply"`
}

// UpvotePayload accompanies upvote:updated
type UpvotePayload struct {
	DiscussionID string `json:"discussion_id"`
	ReplyID      string `json:"reply_id,omitempty"`
	UserID       string `json:"user_id"`
	Voted        bool   `json:"voted"`
	VoteCount    int    `json:"vote_count"`
}

// ReportPayload accompanies content:reported, for moderator tooling
type ReportPayload struct {
	DiscussionID string `json:"discussion_id"`
	ReplyID      string `json:"reply_id,omitempty"`
	UserID       string `json:"user_id"`
	Reason       string `json:"reason"`
	ReportCount  int    `json:"report_count"`
}

// DeletePayload accompanies content:deleted
type DeletePayload struct {
	DiscussionID string `json:"discussion_id"`
	ReplyID      string `json:"reply_id,omitempty"`
	Kind         string `json:"kind"` // "discussion" or "reply"
}

// subscriberBufferSize bounds each subscriber's backlog before drops
const subscriberBufferSize = 64

// Subscription is one observer's buffered event feed
type Subscription struct {
	C      chan Event
	bus    *Bus
	closed bool
}

// Close detaches the subscription from the bus and drains its channel
func (s *Subscription) Close() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.unsubscribe(s)
}

// Bus is the in-process publish/subscribe registry. Every subscriber
// gets its own buffered channel; Publish performs a non-blocking send
// to each one.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe attaches a new observer. Events published before this call
// are not replayed.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		C:   make(chan Event, subscriberBufferSize),
		bus: b,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	if !sub.closed {
		sub.closed = true
		close(sub.C)
	}
}

// SubscriberCount returns the number of attached observers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish broadcasts to every current subscriber. A full subscriber
// buffer drops the event for that subscriber only.
func (b *Bus) Publish(name string, payload interface{}) {
	event := Event{
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	metrics.EventsPublished.WithLabelValues(name).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub.C <- event:
		default:
			metrics.EventsDropped.WithLabelValues(name).Inc()
			logger.DebugWithFields("event dropped for slow subscriber",
				zap.String("event", name),
			)
		}
	}
}

// Shutdown detaches and closes all subscriptions
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if !sub.closed {
			sub.closed = true
			close(sub.C)
		}
		delete(b.subs, sub)
	}
}
