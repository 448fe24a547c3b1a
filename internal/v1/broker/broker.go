// Package broker is the per-text-channel fan-out hub.
//
// Write handlers publish typed {event, data} envelopes; every WebSocket
// subscriber of the channel receives them FIFO. Publishing never blocks on a
// slow receiver: the subscriber's bounded queue overflows and the subscriber
// is evicted instead. With Redis configured, events also cross instance
// boundaries through the bridge.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hermes-hub/hermes/internal/v1/logging"
	"github.com/hermes-hub/hermes/internal/v1/metrics"
)

// registry is the live subscriber set of one channel plus the bridge
// subscription feeding it remote events.
type registry struct {
	subscribers map[*Subscriber]struct{}
	cancelFeed  context.CancelFunc
}

// Broker owns one registry per channel with at least one subscriber.
// Channels are independent; one mutex guards only the registry map and the
// per-channel sets, never a network write.
type Broker struct {
	mu              sync.Mutex
	channels        map[int64]*registry
	pendingCleanups map[int64]*time.Timer

	cleanupGracePeriod time.Duration
	bridge             *RedisBridge
}

// New builds a Broker. bridge may be nil for single-instance deployments.
func New(bridge *RedisBridge) *Broker {
	return &Broker{
		channels:           make(map[int64]*registry),
		pendingCleanups:    make(map[int64]*time.Timer),
		cleanupGracePeriod: 5 * time.Second,
		bridge:             bridge,
	}
}

// Subscribe registers conn under channelID and returns the subscriber. The
// caller starts the pumps with Run once the handshake bookkeeping is done.
func (b *Broker) Subscribe(conn wsConnection, channelID, userID int64) *Subscriber {
	sub := newSubscriber(b, conn, channelID, userID)

	b.mu.Lock()
	reg, ok := b.channels[channelID]
	if !ok {
		reg = &registry{subscribers: make(map[*Subscriber]struct{})}
		b.channels[channelID] = reg
		b.startBridgeFeed(reg, channelID)
		logging.Info(context.Background(), "channel registry created", zap.Int64("channel_id", channelID))
	}
	if timer, pending := b.pendingCleanups[channelID]; pending {
		timer.Stop()
		delete(b.pendingCleanups, channelID)
	}
	reg.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	metrics.IncConnection()
	return sub
}

// Publish fans event out to the channel's subscribers and, when bridged, to
// the other instances. The envelope is marshaled exactly once.
func (b *Broker) Publish(ctx context.Context, channelID int64, event Event) error {
	timer := metrics.PublishDuration.WithLabelValues(event.Event)
	start := time.Now()
	defer func() { timer.Observe(time.Since(start).Seconds()) }()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	b.fanOut(channelID, data)
	metrics.BrokerEvents.WithLabelValues(event.Event).Inc()

	if b.bridge != nil {
		if err := b.bridge.Publish(ctx, channelID, data); err != nil {
			logging.Error(ctx, "bridge publish failed",
				zap.Int64("channel_id", channelID),
				zap.String("event", event.Event),
				zap.Error(err),
			)
		}
	}
	return nil
}

// fanOut delivers pre-marshaled bytes to the local subscribers of a channel.
// Iterates a snapshot so a slow eviction never holds the lock.
func (b *Broker) fanOut(channelID int64, data []byte) {
	b.mu.Lock()
	reg, ok := b.channels[channelID]
	if !ok {
		b.mu.Unlock()
		return
	}
	snapshot := make([]*Subscriber, 0, len(reg.subscribers))
	for sub := range reg.subscribers {
		snapshot = append(snapshot, sub)
	}
	b.mu.Unlock()

	for _, sub := range snapshot {
		if !sub.enqueue(data) {
			metrics.BrokerEvictions.Inc()
			logging.Warn(context.Background(), "evicting slow subscriber",
				zap.Int64("channel_id", channelID),
				zap.Int64("user_id", sub.userID),
			)
			sub.disconnect()
		}
	}
}

// startBridgeFeed subscribes the registry to remote events. Caller holds the
// lock.
func (b *Broker) startBridgeFeed(reg *registry, channelID int64) {
	if b.bridge == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	reg.cancelFeed = cancel
	b.bridge.Subscribe(ctx, channelID, func(data []byte) {
		b.fanOut(channelID, data)
	})
}

// unregister removes sub from its channel and schedules the empty registry
// for cleanup after a grace period, so a reconnecting client does not churn
// the bridge subscription.
func (b *Broker) unregister(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	reg, ok := b.channels[sub.channelID]
	if !ok {
		return
	}
	delete(reg.subscribers, sub)
	if len(reg.subscribers) > 0 {
		return
	}

	if existing, pending := b.pendingCleanups[sub.channelID]; pending {
		existing.Stop()
	}
	channelID := sub.channelID
	b.pendingCleanups[channelID] = time.AfterFunc(b.cleanupGracePeriod, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		reg, ok := b.channels[channelID]
		if ok && len(reg.subscribers) == 0 {
			if reg.cancelFeed != nil {
				reg.cancelFeed()
			}
			delete(b.channels, channelID)
			logging.Info(context.Background(), "channel registry removed", zap.Int64("channel_id", channelID))
		}
		delete(b.pendingCleanups, channelID)
	})
}

// Shutdown disconnects every subscriber and stops all cleanup timers.
func (b *Broker) Shutdown(ctx context.Context) {
	b.mu.Lock()
	for channelID, timer := range b.pendingCleanups {
		timer.Stop()
		delete(b.pendingCleanups, channelID)
	}
	subs := make([]*Subscriber, 0)
	for _, reg := range b.channels {
		if reg.cancelFeed != nil {
			reg.cancelFeed()
		}
		for sub := range reg.subscribers {
			subs = append(subs, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.disconnect()
	}
	logging.Info(ctx, "broker shut down", zap.Int("subscribers_closed", len(subs)))
}
