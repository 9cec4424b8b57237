// Package events fans out environment and controller lifecycle events.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind classifies an event
type Kind string

const (
	EnvironmentCreated   Kind = "environment_created"
	EnvironmentDestroyed Kind = "environment_destroyed"
	ApplicationLaunched  Kind = "application_launched"
	LaunchFailed         Kind = "launch_failed"
	ControllerDetached   Kind = "controller_detached"
	ControllerTerminated Kind = "controller_terminated"
)

// Event is one lifecycle transition
type Event struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Environment string    `json:"environment,omitempty"`
	Label       string    `json:"label,omitempty"`
	Controller  string    `json:"controller,omitempty"`
	URL         string    `json:"url,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Time        time.Time `json:"time"`
}

// Hub delivers events to subscribers. A subscriber whose buffer is full
// misses the event; publishers never block.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	next   uint64
	logger *zap.Logger
}

// NewHub creates a hub with no subscribers
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[uint64]chan Event),
		logger: logger,
	}
}

// Publish stamps e with an ID and time and delivers it
func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	e.ID = uuid.NewString()
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.logger.Debug("Dropping event for slow subscriber", zap.Uint64("subscriber", id), zap.String("kind", string(e.Kind)))
		}
	}
}

// Subscribe registers a subscriber. Call cancel to unsubscribe; the channel
// is closed afterwards.
func (h *Hub) Subscribe(buffer int) (events <-chan Event, cancel func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
