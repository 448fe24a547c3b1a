package voice

import (
	"encoding/json"
	"errors"
	"sync"
)

// mockSignalConn scripts the client side of a voice signaling socket.
// Inbound frames are queued with push; ReadJSON blocks until a frame or
// Close.
type mockSignalConn struct {
	in       chan json.RawMessage
	closedCh chan struct{}

	mu      sync.Mutex
	written []json.RawMessage
	closed  bool
}

func newMockSignalConn() *mockSignalConn {
	return &mockSignalConn{
		in:       make(chan json.RawMessage, 16),
		closedCh: make(chan struct{}),
	}
}

func (m *mockSignalConn) push(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	m.in <- data
}

func (m *mockSignalConn) ReadJSON(v any) error {
	select {
	case data := <-m.in:
		return json.Unmarshal(data, v)
	case <-m.closedCh:
		return errors.New("connection closed")
	}
}

func (m *mockSignalConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("write on closed connection")
	}
	m.written = append(m.written, data)
	return nil
}

func (m *mockSignalConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

func (m *mockSignalConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// writtenEvents decodes everything the server sent, keyed by event name.
func (m *mockSignalConn) writtenEvents() []signalMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]signalMessage, 0, len(m.written))
	for _, raw := range m.written {
		var msg signalMessage
		if err := json.Unmarshal(raw, &msg); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

func (m *mockSignalConn) eventsNamed(name string) []signalMessage {
	var out []signalMessage
	for _, msg := range m.writtenEvents() {
		if msg.Event == name {
			out = append(out, msg)
		}
	}
	return out
}
