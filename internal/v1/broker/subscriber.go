package broker

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hermes-hub/hermes/internal/v1/logging"
	"github.com/hermes-hub/hermes/internal/v1/metrics"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait is the read deadline; a subscriber that fails to pong within
	// it is evicted.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 30 * time.Second
	// sendQueueSize bounds the per-subscriber outbound queue. Overflow
	// evicts the subscriber rather than blocking the publisher.
	sendQueueSize = 64
)

// wsConnection is the slice of *websocket.Conn the subscriber needs. Mocked
// in tests.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// Subscriber is one WebSocket attached to one text channel. Events flow only
// server to client; inbound frames are read solely to detect disconnects and
// service pings.
type Subscriber struct {
	broker    *Broker
	conn      wsConnection
	channelID int64
	userID    int64

	send      chan []byte
	closeOnce sync.Once
}

func newSubscriber(b *Broker, conn wsConnection, channelID, userID int64) *Subscriber {
	return &Subscriber{
		broker:    b,
		conn:      conn,
		channelID: channelID,
		userID:    userID,
		send:      make(chan []byte, sendQueueSize),
	}
}

// Run services the connection until it dies. It blocks the caller (the HTTP
// handler goroutine) the way gorilla's examples run the read pump in the
// upgraded handler.
func (s *Subscriber) Run() {
	go s.writePump()
	s.readPump()
}

// enqueue hands a pre-marshaled event to the write pump. Returns false when
// the queue is full; the caller evicts.
func (s *Subscriber) enqueue(data []byte) bool {
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// disconnect deregisters the subscriber exactly once and shuts down its
// connection. Safe to call from the read pump, a publish overflow, and
// Shutdown concurrently.
func (s *Subscriber) disconnect() {
	s.closeOnce.Do(func() {
		s.broker.unregister(s)
		close(s.send)
	})
}

// readPump discards inbound frames, keeping the read side alive for close
// frames and pong handling. Any read error ends the subscription.
func (s *Subscriber) readPump() {
	defer func() {
		s.disconnect()
		s.conn.Close()
		metrics.DecConnection()
	}()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the send queue and emits heartbeat pings. It owns all
// writes on the connection.
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			if !ok {
				_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Warn(context.Background(), "subscriber write failed",
					zap.Int64("channel_id", s.channelID),
					zap.Int64("user_id", s.userID),
					zap.Error(err),
				)
				s.disconnect()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.disconnect()
				return
			}
		}
	}
}
