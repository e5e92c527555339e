package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/liquidation-engine/internal/model"
)

func event(size int64) model.LiquidationEvent {
	return model.LiquidationEvent{Record: model.LiquidationRecord{
		ID:             uuid.New(),
		LiquidatedSize: size,
	}}
}

func TestPublish_NoSubscribers(t *testing.T) {
	b := New(4)
	assert.Zero(t, b.Publish(event(1)))
	assert.Zero(t, b.Dropped())
}

func TestPublish_FanOutInOrder(t *testing.T) {
	b := New(8)
	s1 := b.Subscribe()
	s2 := b.Subscribe()

	for i := int64(1); i <= 3; i++ {
		require.Equal(t, 2, b.Publish(event(i)))
	}

	for _, s := range []*Subscription{s1, s2} {
		for i := int64(1); i <= 3; i++ {
			ev := <-s.Events()
			assert.Equal(t, i, ev.Record.LiquidatedSize)
		}
	}
}

func TestPublish_SlowSubscriberDropsWithoutBlocking(t *testing.T) {
	b := New(2)
	slow := b.Subscribe()
	fast := b.Subscribe()

	b.Publish(event(1))
	b.Publish(event(2))
	<-fast.Events()
	<-fast.Events()
	delivered := b.Publish(event(3))

	assert.Equal(t, 1, delivered)
	assert.Equal(t, uint64(1), b.Dropped())
	assert.Len(t, slow.Events(), 2)
	assert.Equal(t, int64(3), (<-fast.Events()).Record.LiquidatedSize)
}

func TestSubscribe_NoReplay(t *testing.T) {
	b := New(4)
	early := b.Subscribe()
	b.Publish(event(1))

	late := b.Subscribe()
	b.Publish(event(2))

	assert.Len(t, early.Events(), 2)
	require.Len(t, late.Events(), 1)
	assert.Equal(t, int64(2), (<-late.Events()).Record.LiquidatedSize)
}

func TestClose_DetachesAndClosesQueue(t *testing.T) {
	b := New(4)
	s := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())

	s.Close()
	s.Close()

	assert.Zero(t, b.Subscribers())
	_, open := <-s.Events()
	assert.False(t, open)
	assert.Zero(t, b.Publish(event(1)))
}

func TestNew_DefaultBuffer(t *testing.T) {
	b := New(0)
	s := b.Subscribe()
	assert.Equal(t, DefaultBuffer, cap(s.Events()))
}
