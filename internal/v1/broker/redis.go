package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/hermes-hub/hermes/internal/v1/logging"
	"github.com/hermes-hub/hermes/internal/v1/metrics"
)

// bridgeEnvelope wraps an already-marshaled event for the pub/sub hop.
// SenderID carries the publishing instance so it can ignore its own echo.
type bridgeEnvelope struct {
	ChannelID int64           `json:"channel_id"`
	Event     json.RawMessage `json:"event"`
	SenderID  string          `json:"sender_id"`
}

// RedisBridge relays broker events between hub instances over Redis pub/sub.
// A circuit breaker keeps a degraded Redis from stalling publishes; dropped
// cross-instance events only cost remote subscribers, local fan-out already
// happened.
type RedisBridge struct {
	client     *redis.Client
	cb         *gobreaker.CircuitBreaker
	instanceID string
}

// NewRedisBridge connects to Redis and verifies the connection before
// returning.
func NewRedisBridge(addr, password string) (*RedisBridge, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	}

	logging.Info(context.Background(), "connected to Redis", zap.String("addr", addr))
	return &RedisBridge{
		client:     rdb,
		cb:         gobreaker.NewCircuitBreaker(st),
		instanceID: uuid.NewString(),
	}, nil
}

// channelKey is the pub/sub channel schema: "hermes:channel:{id}".
func channelKey(channelID int64) string {
	return fmt.Sprintf("hermes:channel:%d", channelID)
}

// Publish broadcasts a pre-marshaled event to the other instances watching
// this channel. An open breaker drops the publish instead of failing the
// request.
func (b *RedisBridge) Publish(ctx context.Context, channelID int64, event []byte) error {
	if b == nil || b.client == nil {
		return nil
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		data, err := json.Marshal(bridgeEnvelope{
			ChannelID: channelID,
			Event:     event,
			SenderID:  b.instanceID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bridge envelope: %w", err)
		}
		return nil, b.client.Publish(ctx, channelKey(channelID), data).Err()
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			logging.Warn(ctx, "redis circuit breaker open, dropping publish",
				zap.Int64("channel_id", channelID))
			return nil
		}
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Subscribe feeds events published by other instances into handler until ctx
// is cancelled. The instance's own publishes are filtered out by sender id.
func (b *RedisBridge) Subscribe(ctx context.Context, channelID int64, handler func(event []byte)) {
	if b == nil || b.client == nil {
		return
	}

	key := channelKey(channelID)
	pubsub := b.client.Subscribe(ctx, key)

	go func() {
		defer pubsub.Close()
		logging.Info(ctx, "subscribed to Redis channel", zap.String("channel", key))

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					logging.Warn(context.Background(), "redis subscription closed", zap.String("channel", key))
					return
				}

				var env bridgeEnvelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					logging.Error(context.Background(), "failed to unmarshal bridge envelope",
						zap.String("channel", key), zap.Error(err))
					continue
				}
				if env.SenderID == b.instanceID {
					continue
				}
				handler(env.Event)
			}
		}
	}()
}

// Ping verifies Redis is reachable. Used by the readiness probe.
func (b *RedisBridge) Ping(ctx context.Context) error {
	if b == nil || b.client == nil {
		return nil
	}
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.client.Ping(ctx).Err()
	})
	if err != nil && errors.Is(err, gobreaker.ErrOpenState) {
		metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
	}
	return err
}

// Close shuts down the Redis connection.
func (b *RedisBridge) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
