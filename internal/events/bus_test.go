package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (testLogger) Debug(msg string, fields ...interface{}) {}
func (testLogger) Info(msg string, fields ...interface{})  {}
func (testLogger) Warn(msg string, fields ...interface{})  {}
func (testLogger) Error(msg string, fields ...interface{}) {}

func newTestBus(t *testing.T) EventBus {
	t.Helper()
	bus := NewEventBus(EventBusConfig{BufferSize: 64}, testLogger{}, nil)
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		bus.Stop(ctx)
	})
	return bus
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBus_DeliversInPublishOrder(t *testing.T) {
	bus := newTestBus(t)

	var mu sync.Mutex
	var got []string
	_, err := bus.Subscribe(context.Background(), EventFilter{}, func(e Event) error {
		mu.Lock()
		got = append(got, e.Target)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, bus.PublishAsync(NewRecordEvent(EventImageAdded, "store", id, "added")))
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 4
	})
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestBus_FilterByType(t *testing.T) {
	bus := newTestBus(t)

	var mu sync.Mutex
	count := 0
	_, err := bus.Subscribe(context.Background(), EventFilter{
		Types: []EventType{EventImageAdded},
	}, func(e Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.PublishAsync(NewRecordEvent(EventImageAdded, "store", "a", "")))
	require.NoError(t, bus.PublishAsync(NewRecordEvent(EventImageUpdated, "store", "a", "")))
	require.NoError(t, bus.PublishAsync(NewRecordEvent(EventImageAdded, "store", "b", "")))

	waitFor(t, func() bool { return bus.GetStats().TotalEvents == 3 })
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestBus_PanickingHandlerDoesNotKillDelivery(t *testing.T) {
	bus := newTestBus(t)

	_, err := bus.Subscribe(context.Background(), EventFilter{}, func(Event) error {
		panic("handler bug")
	})
	require.NoError(t, err)

	var mu sync.Mutex
	delivered := 0
	_, err = bus.Subscribe(context.Background(), EventFilter{}, func(Event) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.PublishAsync(NewSystemEvent(EventStoreCleared, "t", "")))
	require.NoError(t, bus.PublishAsync(NewSystemEvent(EventStoreCleared, "t", "")))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 2
	})
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := newTestBus(t)

	var mu sync.Mutex
	count := 0
	sub, err := bus.Subscribe(context.Background(), EventFilter{}, func(Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.PublishAsync(NewSystemEvent(EventSystemStarted, "up", "")))
	waitFor(t, func() bool { return bus.GetStats().TotalEvents == 1 })

	require.NoError(t, bus.Unsubscribe(sub.ID))
	require.NoError(t, bus.PublishAsync(NewSystemEvent(EventSystemStarted, "up", "")))
	waitFor(t, func() bool { return bus.GetStats().TotalEvents == 2 })

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
	assert.Error(t, bus.Unsubscribe(sub.ID))
}

func TestBus_PublishValidation(t *testing.T) {
	bus := newTestBus(t)

	err := bus.PublishAsync(Event{Source: "store"})
	assert.Error(t, err, "missing type")

	err = bus.PublishAsync(Event{Type: EventImageAdded})
	assert.Error(t, err, "missing source")
}

func TestBus_PublishAfterStop(t *testing.T) {
	bus := NewEventBus(EventBusConfig{BufferSize: 8}, testLogger{}, nil)
	require.NoError(t, bus.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(ctx))

	assert.Error(t, bus.PublishAsync(NewSystemEvent(EventSystemStopped, "down", "")))
}

func TestBus_StopDuringConcurrentPublish(t *testing.T) {
	bus := NewEventBus(EventBusConfig{BufferSize: 4}, testLogger{}, nil)
	require.NoError(t, bus.Start(context.Background()))

	// Publishers racing shutdown must get an error, never a panic.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			bus.PublishAsync(NewSystemEvent(EventSystemStarted, "up", ""))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(ctx))
	<-done
}

func TestMatchesFilter(t *testing.T) {
	added := NewRecordEvent(EventImageAdded, "store", "a.png", "")

	assert.True(t, MatchesFilter(added, EventFilter{}))
	assert.True(t, MatchesFilter(added, EventFilter{Types: MembershipEvents}))
	assert.False(t, MatchesFilter(added, EventFilter{Types: []EventType{EventEnrichFailed}}))
	assert.True(t, MatchesFilter(added, EventFilter{Sources: []string{"store"}}))
	assert.False(t, MatchesFilter(added, EventFilter{Sources: []string{"enrich"}}))
}
