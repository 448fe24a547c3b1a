package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hermes-hub/hermes/internal/v1/logging"
)

func TestMain(m *testing.M) {
	logging.Initialize(true)
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/internal/pool.(*ConnPool).reaper"),
	)
}

func newTestBroker() *Broker {
	b := New(nil)
	b.cleanupGracePeriod = 10 * time.Millisecond
	return b
}

// startSubscriber registers a mock connection and runs its pumps like the
// WebSocket handler would.
func startSubscriber(t *testing.T, b *Broker, channelID, userID int64) (*mockConn, *Subscriber) {
	t.Helper()
	conn := newMockConn()
	sub := b.Subscribe(conn, channelID, userID)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sub.Run()
	}()
	t.Cleanup(func() {
		sub.disconnect()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("subscriber pumps did not stop")
		}
	})
	return conn, sub
}

func decodeEvents(t *testing.T, frames [][]byte) []Event {
	t.Helper()
	events := make([]Event, 0, len(frames))
	for _, frame := range frames {
		if len(frame) == 0 {
			continue // close frame
		}
		var ev Event
		require.NoError(t, json.Unmarshal(frame, &ev))
		events = append(events, ev)
	}
	return events
}

func TestPublishFansOutFIFO(t *testing.T) {
	b := newTestBroker()
	defer b.Shutdown(context.Background())
	ctx := context.Background()

	conn, _ := startSubscriber(t, b, 1, 100)

	for i := range 5 {
		require.NoError(t, b.Publish(ctx, 1, MessageDeleted(int64(i))))
	}

	require.Eventually(t, func() bool {
		return len(decodeEvents(t, conn.writtenFrames())) == 5
	}, 2*time.Second, 5*time.Millisecond)

	events := decodeEvents(t, conn.writtenFrames())
	for i, ev := range events {
		assert.Equal(t, EventMessageDelete, ev.Event)
		data := ev.Data.(map[string]any)
		assert.Equal(t, fmt.Sprint(i), data["id"], "delivery is FIFO per subscriber")
	}
}

func TestPublishIsScopedToChannel(t *testing.T) {
	b := newTestBroker()
	defer b.Shutdown(context.Background())
	ctx := context.Background()

	connA, _ := startSubscriber(t, b, 1, 100)
	connB, _ := startSubscriber(t, b, 2, 200)

	require.NoError(t, b.Publish(ctx, 1, MessageDeleted(7)))

	require.Eventually(t, func() bool {
		return len(decodeEvents(t, connA.writtenFrames())) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, decodeEvents(t, connB.writtenFrames()), "channels are independent")
}

func TestPublishToEmptyChannelIsNoop(t *testing.T) {
	b := newTestBroker()
	defer b.Shutdown(context.Background())
	assert.NoError(t, b.Publish(context.Background(), 99, MessageDeleted(1)))
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	b := newTestBroker()
	defer b.Shutdown(context.Background())
	ctx := context.Background()

	_, _ = startSubscriber(t, b, 1, 100)
	require.NoError(t, b.Publish(ctx, 1, MessageDeleted(1)))

	late, _ := startSubscriber(t, b, 1, 200)
	require.NoError(t, b.Publish(ctx, 1, MessageDeleted(2)))

	require.Eventually(t, func() bool {
		return len(decodeEvents(t, late.writtenFrames())) == 1
	}, 2*time.Second, 5*time.Millisecond)

	events := decodeEvents(t, late.writtenFrames())
	data := events[0].Data.(map[string]any)
	assert.Equal(t, "2", data["id"], "events before subscription are not replayed")
}

func TestSlowSubscriberIsEvicted(t *testing.T) {
	b := newTestBroker()
	defer b.Shutdown(context.Background())
	ctx := context.Background()

	// No pumps: the queue never drains, so it overflows.
	conn := newMockConn()
	sub := b.Subscribe(conn, 1, 100)

	healthy, _ := startSubscriber(t, b, 1, 200)

	for i := range sendQueueSize + 1 {
		require.NoError(t, b.Publish(ctx, 1, MessageDeleted(int64(i))))
	}

	b.mu.Lock()
	_, stillRegistered := b.channels[1].subscribers[sub]
	b.mu.Unlock()
	assert.False(t, stillRegistered, "overflow evicts the slow subscriber")

	// The healthy subscriber on the same channel keeps receiving.
	require.NoError(t, b.Publish(ctx, 1, MessageDeleted(999)))
	require.Eventually(t, func() bool {
		events := decodeEvents(t, healthy.writtenFrames())
		if len(events) == 0 {
			return false
		}
		last := events[len(events)-1].Data.(map[string]any)
		return last["id"] == "999"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	b := newTestBroker()
	defer b.Shutdown(context.Background())

	conn := newMockConn()
	sub := b.Subscribe(conn, 1, 100)

	sub.disconnect()
	assert.NotPanics(t, func() { sub.disconnect() })

	b.mu.Lock()
	reg, exists := b.channels[1]
	empty := !exists || len(reg.subscribers) == 0
	b.mu.Unlock()
	assert.True(t, empty)
}

func TestEmptyRegistryIsRemovedAfterGrace(t *testing.T) {
	b := newTestBroker()
	defer b.Shutdown(context.Background())

	conn := newMockConn()
	sub := b.Subscribe(conn, 1, 100)
	sub.disconnect()
	conn.Close()

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		_, exists := b.channels[1]
		return !exists
	}, 2*time.Second, 5*time.Millisecond)
}

func TestReconnectCancelsPendingCleanup(t *testing.T) {
	b := newTestBroker()
	b.cleanupGracePeriod = 250 * time.Millisecond
	defer b.Shutdown(context.Background())

	conn := newMockConn()
	sub := b.Subscribe(conn, 1, 100)
	sub.disconnect()

	// Reconnect within the grace period.
	_, _ = startSubscriber(t, b, 1, 100)

	time.Sleep(400 * time.Millisecond)
	b.mu.Lock()
	reg, exists := b.channels[1]
	n := 0
	if exists {
		n = len(reg.subscribers)
	}
	b.mu.Unlock()
	require.True(t, exists, "registry survives a reconnect inside the grace period")
	assert.Equal(t, 1, n)
}

func TestShutdownClosesEverySubscriber(t *testing.T) {
	b := newTestBroker()

	conns := make([]*mockConn, 0, 3)
	for i := range 3 {
		conn, _ := startSubscriber(t, b, int64(i%2), int64(100+i))
		conns = append(conns, conn)
	}

	b.Shutdown(context.Background())

	for _, conn := range conns {
		require.Eventually(t, conn.isClosed, 2*time.Second, 5*time.Millisecond)
	}
}
