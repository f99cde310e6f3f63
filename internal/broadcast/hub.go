package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradua/ceremonia-api/internal/models"
)

const defaultBuffer = 16

// Metrics receives hub observations. Implemented by the metrics service;
// declared here to keep the hub free of service imports.
type Metrics interface {
	SetBroadcastSubscribers(n int)
	IncEventsDelivered()
	IncEventsDropped()
}

// Subscription is one live viewer's handle: a FIFO event channel plus the
// ceremony base name it watches. The channel is closed by the hub, either on
// Unsubscribe or when the subscriber stops draining.
type Subscription struct {
	ID       uuid.UUID
	Ceremony string
	C        chan models.AttendanceRecord
}

// Hub fans attendance events out to live viewers. The subscriber set is
// shared between the publish path and connect/disconnect, so all access is
// serialized behind the mutex; sends are non-blocking, which keeps publish
// bounded while the lock is held.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscription
	buffer int

	logger  *zap.Logger
	metrics Metrics
}

// NewHub constructs a hub. A metrics sink is optional.
func NewHub(buffer int, logger *zap.Logger, metrics Metrics) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:    make(map[uuid.UUID]*Subscription),
		buffer:  buffer,
		logger:  logger,
		metrics: metrics,
	}
}

// Subscribe registers a viewer for the given ceremony base name.
func (h *Hub) Subscribe(ceremony string) *Subscription {
	sub := &Subscription{
		ID:       uuid.New(),
		Ceremony: ceremony,
		C:        make(chan models.AttendanceRecord, h.buffer),
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	n := len(h.subs)
	h.mu.Unlock()

	h.observeCount(n)
	h.logger.Debug("viewer subscribed",
		zap.String("subscription", sub.ID.String()), zap.String("ceremony", ceremony))
	return sub
}

// Unsubscribe removes a viewer and closes its channel. Safe to call for an
// already-removed subscription.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(sub.C)
	}
	n := len(h.subs)
	h.mu.Unlock()

	if ok {
		h.observeCount(n)
		h.logger.Debug("viewer unsubscribed", zap.String("subscription", id.String()))
	}
}

// Publish delivers the event to every subscriber whose ceremony filter
// equals the event's ceremony tag. A subscriber that cannot accept the event
// (full buffer, i.e. the remote side stopped draining) is dropped from the
// set instead of propagating the failure. Dropping happens after iteration
// so removal never invalidates the traversal.
func (h *Hub) Publish(event models.AttendanceRecord) {
	h.mu.Lock()

	var dropped []uuid.UUID
	for id, sub := range h.subs {
		if sub.Ceremony != event.Ceremony {
			continue
		}
		select {
		case sub.C <- event:
			if h.metrics != nil {
				h.metrics.IncEventsDelivered()
			}
		default:
			dropped = append(dropped, id)
		}
	}
	for _, id := range dropped {
		sub := h.subs[id]
		delete(h.subs, id)
		close(sub.C)
		if h.metrics != nil {
			h.metrics.IncEventsDropped()
		}
	}
	n := len(h.subs)
	h.mu.Unlock()

	if len(dropped) > 0 {
		h.observeCount(n)
		h.logger.Warn("dropped stalled viewers",
			zap.Int("count", len(dropped)), zap.String("ceremony", event.Ceremony))
	}
}

// Count reports the current subscriber total.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) observeCount(n int) {
	if h.metrics != nil {
		h.metrics.SetBroadcastSubscribers(n)
	}
}
