package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/hermes-hub/hermes/internal/v1/broker"
	"github.com/hermes-hub/hermes/internal/v1/logging"
	"github.com/hermes-hub/hermes/internal/v1/metrics"
)

// Signaling event names on the voice WebSocket.
const (
	EventWebrtcOffer  = "WEBRTC_OFFER"
	EventWebrtcAnswer = "WEBRTC_ANSWER"
	EventIceCandidate = "ICE_CANDIDATE"
)

// State tracks a peer through its signaling lifecycle.
type State int

const (
	StateConnecting State = iota
	StateSignaling
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSignaling:
		return "signaling"
	case StateConnected:
		return "connected"
	default:
		return "closed"
	}
}

// signalConn is the slice of *websocket.Conn the peer signals over. Mocked
// in tests.
type signalConn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// signalMessage is the inbound {event, data} envelope. Data stays raw until
// the event name picks its shape.
type signalMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Peer is one user's leg into a voice room: the PeerConnection, the
// signaling socket, and the egress senders carrying the other peers' audio
// to this user.
type Peer struct {
	room   *Room
	pc     *webrtc.PeerConnection
	conn   signalConn
	userID int64

	mu      sync.Mutex
	senders map[int64]*webrtc.RTPSender
	state   State

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newPeer(room *Room, pc *webrtc.PeerConnection, conn signalConn, userID int64) *Peer {
	return &Peer{
		room:    room,
		pc:      pc,
		conn:    conn,
		userID:  userID,
		senders: make(map[int64]*webrtc.RTPSender),
		state:   StateConnecting,
	}
}

// State returns the peer's current lifecycle state.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Peer) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// run installs the media callbacks and services the signaling socket until
// it dies. The caller handles room removal afterwards.
func (p *Peer) run(ctx context.Context) {
	p.setState(StateSignaling)

	// Trickle ICE: local candidates stream to the client as the agent finds
	// them, possibly before any offer arrives.
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		p.writeEvent(EventIceCandidate, c.ToJSON())
	})

	p.pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.handleIngress(remote)
	})

	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateConnected:
			p.setState(StateConnected)
			metrics.WebrtcConnectionAttempts.WithLabelValues("connected").Inc()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			p.close()
		}
	})

	for {
		var msg signalMessage
		if err := p.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Event {
		case EventWebrtcOffer:
			if err := p.handleOffer(msg.Data); err != nil {
				metrics.WebrtcConnectionAttempts.WithLabelValues("offer_failed").Inc()
				logging.Error(ctx, "failed to handle offer",
					zap.Int64("user_id", p.userID), zap.Error(err))
			}
		case EventIceCandidate:
			var candidate webrtc.ICECandidateInit
			if err := json.Unmarshal(msg.Data, &candidate); err != nil {
				logging.Warn(ctx, "malformed ICE candidate",
					zap.Int64("user_id", p.userID), zap.Error(err))
				continue
			}
			if err := p.pc.AddICECandidate(candidate); err != nil {
				logging.Warn(ctx, "failed to add ICE candidate",
					zap.Int64("user_id", p.userID), zap.Error(err))
			}
		default:
			logging.Warn(ctx, "unknown voice signaling event",
				zap.String("event", msg.Event), zap.Int64("user_id", p.userID))
		}
	}
}

// handleOffer applies the client's offer and replies with an answer.
func (p *Peer) handleOffer(raw json.RawMessage) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &offer); err != nil {
		return fmt.Errorf("malformed offer: %w", err)
	}

	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}

	p.writeEvent(EventWebrtcAnswer, answer)
	return nil
}

// handleIngress copies the peer's inbound RTP onto a local track and hands
// it to the room for fan-out. The forwarding goroutine lives as long as the
// remote track produces packets.
func (p *Peer) handleIngress(remote *webrtc.TrackRemote) {
	local, err := webrtc.NewTrackLocalStaticRTP(
		remote.Codec().RTPCodecCapability,
		fmt.Sprintf("audio-%d", p.userID),
		fmt.Sprintf("hermes-%d", p.userID),
	)
	if err != nil {
		logging.Error(context.Background(), "failed to create local track",
			zap.Int64("user_id", p.userID), zap.Error(err))
		return
	}

	go func() {
		buf := make([]byte, 1500)
		for {
			n, _, err := remote.Read(buf)
			if err != nil {
				return
			}
			if _, err := local.Write(buf[:n]); err != nil {
				return
			}
		}
	}()

	p.room.publishIngress(p.userID, local)
}

// attachTrack adds src's ingress as an egress track on this peer's
// connection. The client renegotiates when it learns about the new track.
func (p *Peer) attachTrack(src int64, track *webrtc.TrackLocalStaticRTP) {
	sender, err := p.pc.AddTrack(track)
	if err != nil {
		logging.Error(context.Background(), "failed to add egress track",
			zap.Int64("user_id", p.userID), zap.Int64("source_user_id", src), zap.Error(err))
		return
	}
	p.mu.Lock()
	p.senders[src] = sender
	p.mu.Unlock()
}

// detachTrack removes the egress carrying src's audio.
func (p *Peer) detachTrack(src int64) {
	p.mu.Lock()
	sender, ok := p.senders[src]
	delete(p.senders, src)
	p.mu.Unlock()
	if !ok {
		return
	}
	if err := p.pc.RemoveTrack(sender); err != nil {
		logging.Warn(context.Background(), "failed to remove egress track",
			zap.Int64("user_id", p.userID), zap.Int64("source_user_id", src), zap.Error(err))
	}
}

// writeEvent sends one {event, data} envelope. Writes are serialized;
// gorilla connections do not allow concurrent writers.
func (p *Peer) writeEvent(event string, data any) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.WriteJSON(broker.Event{Event: event, Data: data}); err != nil {
		logging.Warn(context.Background(), "voice signaling write failed",
			zap.Int64("user_id", p.userID), zap.Error(err))
	}
}

// close tears down the PeerConnection and the signaling socket exactly once.
// Closing the socket unblocks the signaling loop.
func (p *Peer) close() {
	p.closeOnce.Do(func() {
		p.setState(StateClosed)
		if err := p.pc.Close(); err != nil {
			logging.Warn(context.Background(), "failed to close peer connection",
				zap.Int64("user_id", p.userID), zap.Error(err))
		}
		_ = p.conn.Close()
	})
}
