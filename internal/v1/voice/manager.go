// Package voice is the audio SFU: one Room per voice channel, one Peer per
// connected user. The server terminates every WebRTC connection, copies each
// peer's ingress RTP onto a local track, and fans that track out to the other
// peers in the room. Signaling runs over a dedicated WebSocket per peer.
package voice

import (
	"context"
	"strconv"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/hermes-hub/hermes/internal/v1/broker"
	"github.com/hermes-hub/hermes/internal/v1/logging"
	"github.com/hermes-hub/hermes/internal/v1/metrics"
)

// Manager owns the live voice rooms. Lookup and create run under a short
// mutex; all media work happens inside the room.
type Manager struct {
	mu    sync.Mutex
	rooms map[int64]*Room

	events   *broker.Broker
	stunURLs []string
}

// NewManager wires the SFU. Join/leave announcements go out through the
// broker on the voice channel's event stream.
func NewManager(events *broker.Broker, stunURLs []string) *Manager {
	if len(stunURLs) == 0 {
		stunURLs = []string{"stun:stun.l.google.com:19302"}
	}
	return &Manager{
		rooms:    make(map[int64]*Room),
		events:   events,
		stunURLs: stunURLs,
	}
}

// Connect admits a signaling connection into the channel's room and starts
// the peer. A prior peer of the same user is evicted first. Blocks until the
// peer's signaling loop ends.
func (m *Manager) Connect(ctx context.Context, channelID, userID int64, conn signalConn) error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: m.stunURLs}},
	})
	if err != nil {
		metrics.WebrtcConnectionAttempts.WithLabelValues("setup_failed").Inc()
		return err
	}

	room := m.getOrCreateRoom(channelID)
	peer := newPeer(room, pc, conn, userID)
	replaced := room.addPeer(peer)

	if !replaced {
		metrics.VoiceRoomPeers.WithLabelValues(strconv.FormatInt(channelID, 10)).Inc()
		m.AnnounceJoin(ctx, channelID, userID)
	}

	peer.run(ctx)

	m.disconnect(ctx, room, peer)
	return nil
}

// disconnect removes the peer, announces the departure, and collects the
// room if it emptied.
func (m *Manager) disconnect(ctx context.Context, room *Room, peer *Peer) {
	if !room.removePeer(peer) {
		// Already evicted by a newer connection of the same user; that
		// connection owns the membership now.
		return
	}

	metrics.VoiceRoomPeers.WithLabelValues(strconv.FormatInt(room.channelID, 10)).Dec()
	m.AnnounceLeave(ctx, room.channelID, peer.userID)

	if room.empty() {
		m.removeRoomIfEmpty(room.channelID)
	}
}

// AnnounceJoin publishes VOICE_USER_JOINED on the channel's event stream.
// Also used by the REST voice/join endpoint, which updates member lists
// before any media flows.
func (m *Manager) AnnounceJoin(ctx context.Context, channelID, userID int64) {
	if err := m.events.Publish(ctx, channelID, broker.VoiceUserJoined(userID, channelID)); err != nil {
		logging.Error(ctx, "failed to publish voice join", zap.Error(err))
	}
}

// AnnounceLeave publishes VOICE_USER_LEFT.
func (m *Manager) AnnounceLeave(ctx context.Context, channelID, userID int64) {
	if err := m.events.Publish(ctx, channelID, broker.VoiceUserLeft(userID, channelID)); err != nil {
		logging.Error(ctx, "failed to publish voice leave", zap.Error(err))
	}
}

// Occupants lists the user ids currently connected to the channel's room.
func (m *Manager) Occupants(channelID int64) []int64 {
	m.mu.Lock()
	room, ok := m.rooms[channelID]
	m.mu.Unlock()
	if !ok {
		return []int64{}
	}
	return room.occupants()
}

func (m *Manager) getOrCreateRoom(channelID int64) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[channelID]; ok {
		return room
	}

	room := newRoom(channelID)
	m.rooms[channelID] = room
	metrics.ActiveVoiceRooms.Inc()
	logging.Info(context.Background(), "voice room created", zap.Int64("channel_id", channelID))
	return room
}

func (m *Manager) removeRoomIfEmpty(channelID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[channelID]
	if !ok || !room.empty() {
		return
	}
	delete(m.rooms, channelID)
	metrics.ActiveVoiceRooms.Dec()
	metrics.VoiceRoomPeers.DeleteLabelValues(strconv.FormatInt(channelID, 10))
	logging.Info(context.Background(), "voice room removed", zap.Int64("channel_id", channelID))
}

// Shutdown closes every room and peer.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.rooms = make(map[int64]*Room)
	m.mu.Unlock()

	for _, room := range rooms {
		room.close()
		metrics.ActiveVoiceRooms.Dec()
	}
	logging.Info(ctx, "voice manager shut down", zap.Int("rooms_closed", len(rooms)))
}
