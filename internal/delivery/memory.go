package delivery

import (
	"context"
	"sync"
	"time"

	"droidscope/internal/notify"
)

// Delivery is one payload captured by MemorySink.
type Delivery struct {
	ID      string
	Kind    string
	Payload notify.Payload
	At      time.Time
}

// MemorySink stores deliveries in-memory for tests.
type MemorySink struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (m *MemorySink) Deliver(_ context.Context, kind string, p notify.Payload) string {
	id := NewID()
	m.mu.Lock()
	m.deliveries = append(m.deliveries, Delivery{ID: id, Kind: kind, Payload: p, At: time.Now()})
	m.mu.Unlock()
	return id
}

func (m *MemorySink) Wait() {}

func (m *MemorySink) Deliveries() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Delivery, len(m.deliveries))
	copy(out, m.deliveries)
	return out
}
