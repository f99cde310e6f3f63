package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradua/ceremonia-api/internal/models"
)

func event(ceremony, code string) models.AttendanceRecord {
	return models.AttendanceRecord{Code: code, Ceremony: ceremony, Timestamp: "02/09/2026 10:15:00"}
}

func TestHubDeliversToMatchingCeremonyOnly(t *testing.T) {
	hub := NewHub(4, nil, nil)

	subX := hub.Subscribe("2026-09-01")
	subY := hub.Subscribe("2026-09-02")

	hub.Publish(event("2026-09-01", "abc123"))

	select {
	case ev := <-subX.C:
		assert.Equal(t, "abc123", ev.Code)
	default:
		t.Fatal("subscriber for matching ceremony received nothing")
	}

	select {
	case ev := <-subY.C:
		t.Fatalf("subscriber for other ceremony received %v", ev)
	default:
	}
}

func TestHubFIFOPerSubscriber(t *testing.T) {
	hub := NewHub(4, nil, nil)
	sub := hub.Subscribe("2026-09-01")

	hub.Publish(event("2026-09-01", "first"))
	hub.Publish(event("2026-09-01", "second"))

	assert.Equal(t, "first", (<-sub.C).Code)
	assert.Equal(t, "second", (<-sub.C).Code)
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(4, nil, nil)
	sub := hub.Subscribe("2026-09-01")

	hub.Unsubscribe(sub.ID)
	_, open := <-sub.C
	assert.False(t, open)
	assert.Equal(t, 0, hub.Count())

	// Idempotent.
	hub.Unsubscribe(sub.ID)
}

func TestHubDropsStalledSubscriberDuringPublish(t *testing.T) {
	hub := NewHub(1, nil, nil)
	stalled := hub.Subscribe("2026-09-01")
	healthy := hub.Subscribe("2026-09-01")

	// Fill the stalled subscriber's buffer without draining it.
	hub.Publish(event("2026-09-01", "one"))
	require.Equal(t, 2, hub.Count())

	// Second publish finds the buffer full and removes the subscriber.
	hub.Publish(event("2026-09-01", "two"))
	assert.Equal(t, 1, hub.Count())

	// Healthy subscriber saw both events, then keeps receiving.
	assert.Equal(t, "one", (<-healthy.C).Code)
	assert.Equal(t, "two", (<-healthy.C).Code)

	// Stalled channel holds the buffered event, then is closed.
	assert.Equal(t, "one", (<-stalled.C).Code)
	_, open := <-stalled.C
	assert.False(t, open)
}

func TestHubMetricsObservations(t *testing.T) {
	m := &stubMetrics{}
	hub := NewHub(1, nil, m)

	sub := hub.Subscribe("2026-09-01")
	hub.Publish(event("2026-09-01", "abc"))
	hub.Unsubscribe(sub.ID)

	assert.Equal(t, 1, m.delivered)
	assert.Equal(t, 0, m.dropped)
	assert.Equal(t, 0, m.subscribers)
}

type stubMetrics struct {
	subscribers int
	delivered   int
	dropped     int
}

func (s *stubMetrics) SetBroadcastSubscribers(n int) { s.subscribers = n }
func (s *stubMetrics) IncEventsDelivered()           { s.delivered++ }
func (s *stubMetrics) IncEventsDropped()             { s.dropped++ }
