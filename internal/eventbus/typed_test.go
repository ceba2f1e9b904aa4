package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[string]()
	ch := bus.Subscribe()
	bus.Publish("hello")
	assert.Equal(t, "hello", <-ch)
	bus.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestTypedBusCountsDrops(t *testing.T) {
	bus := NewTypedWithBuffer[int](2)
	ch := bus.Subscribe()
	for i := 0; i < 5; i++ {
		bus.Publish(i)
	}
	assert.Equal(t, uint64(3), bus.Dropped())
	assert.Equal(t, 0, <-ch)
	assert.Equal(t, 1, <-ch)
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	_, ok := <-ch1
	assert.False(t, ok)
	_, ok = <-ch2
	assert.False(t, ok)

	// subscribing to a closed bus yields a closed channel
	_, ok = <-bus.Subscribe()
	assert.False(t, ok)
	bus.Publish(1)
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	require.NotPanics(t, func() { bus.Unsubscribe(ch) })
}

func TestBusCarriesUntypedEvents(t *testing.T) {
	var bus EventBus = New()
	ch := bus.Subscribe()
	bus.Publish(struct{ N int }{N: 3})
	ev := <-ch
	assert.Equal(t, struct{ N int }{N: 3}, ev)
	bus.Close()
}
