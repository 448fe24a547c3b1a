package broker

import (
	"errors"
	"sync"
	"time"
)

// mockConn implements wsConnection. Reads block until the connection is
// closed, mirroring an idle client; writes are recorded in order.
type mockConn struct {
	mu       sync.Mutex
	frames   [][]byte
	types    []int
	closed   bool
	closedCh chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{closedCh: make(chan struct{})}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	<-m.closedCh
	return 0, nil, errors.New("connection closed")
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("write on closed connection")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.frames = append(m.frames, buf)
	m.types = append(m.types, messageType)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

func (m *mockConn) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConn) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConn) SetPongHandler(func(string) error) {}

// writtenFrames returns a copy of the recorded data frames.
func (m *mockConn) writtenFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.frames))
	copy(out, m.frames)
	return out
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
