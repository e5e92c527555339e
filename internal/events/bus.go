// Package events broadcasts liquidation events to any number of subscribers.
//
// Publishing never blocks: each subscriber has a bounded queue, and an event
// that does not fit is dropped for that subscriber only. Late subscribers get
// no replay.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/atmx/liquidation-engine/internal/metrics"
	"github.com/atmx/liquidation-engine/internal/model"
)

// DefaultBuffer is the per-subscriber queue capacity used by New when the
// given size is not positive.
const DefaultBuffer = 256

// Bus is a multi-subscriber broadcast channel for liquidation events.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	nextID  uint64
	buffer  int
	dropped atomic.Uint64
}

// New creates a bus whose subscribers each queue up to buffer events.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
	}
}

// Subscription is one subscriber's view of the bus.
type Subscription struct {
	id   uint64
	ch   chan model.LiquidationEvent
	bus  *Bus
	once sync.Once
}

// Events returns the subscriber's queue. It is closed by Close.
func (s *Subscription) Events() <-chan model.LiquidationEvent {
	return s.ch
}

// Close detaches the subscriber and closes its queue. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		close(s.ch)
		s.bus.mu.Unlock()
	})
}

// Subscribe attaches a new subscriber that receives every event published
// from now on, in publish order.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:  b.nextID,
		ch:  make(chan model.LiquidationEvent, b.buffer),
		bus: b,
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish offers ev to every subscriber without blocking and returns how
// many subscribers accepted it.
func (b *Bus) Publish(ev model.LiquidationEvent) (delivered int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			b.dropped.Add(1)
			metrics.EventsDropped.Inc()
		}
	}
	return delivered
}

// Subscribers returns the number of attached subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns the number of per-subscriber deliveries dropped so far.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
