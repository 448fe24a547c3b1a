package voice

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/hermes-hub/hermes/internal/v1/logging"
)

// Room is the media state of one voice channel: the connected peers and one
// ingress track per publishing peer. The room mutex guards both maps; media
// callbacks from the WebRTC stack take it briefly and never call back into
// the Manager while holding it.
type Room struct {
	channelID int64

	mu      sync.Mutex
	peers   map[int64]*Peer
	ingress map[int64]*webrtc.TrackLocalStaticRTP
}

func newRoom(channelID int64) *Room {
	return &Room{
		channelID: channelID,
		peers:     make(map[int64]*Peer),
		ingress:   make(map[int64]*webrtc.TrackLocalStaticRTP),
	}
}

// addPeer registers the peer and feeds it every other peer's existing ingress
// track. A prior connection of the same user is evicted; the new connection
// owns the membership. Returns true when such an eviction happened.
func (r *Room) addPeer(p *Peer) bool {
	r.mu.Lock()
	old := r.peers[p.userID]
	r.peers[p.userID] = p
	var stale []*Peer
	if old != nil {
		// The replaced connection's ingress is dead; drop it everywhere so
		// the user's next publish starts clean.
		delete(r.ingress, p.userID)
		for userID, other := range r.peers {
			if userID != p.userID {
				stale = append(stale, other)
			}
		}
	}
	for src, track := range r.ingress {
		if src == p.userID {
			continue
		}
		p.attachTrack(src, track)
	}
	r.mu.Unlock()

	for _, other := range stale {
		other.detachTrack(p.userID)
	}

	if old != nil {
		logging.Warn(context.Background(), "evicting duplicate voice connection",
			zap.Int64("channel_id", r.channelID),
			zap.Int64("user_id", p.userID),
		)
		old.close()
	}
	return old != nil
}

// removePeer takes the peer out of the room and tears down its egress in
// every other peer. Returns false when the peer was already replaced by a
// newer connection of the same user, in which case only the dead connection
// is closed.
func (r *Room) removePeer(p *Peer) bool {
	r.mu.Lock()
	current, ok := r.peers[p.userID]
	if !ok || current != p {
		r.mu.Unlock()
		p.close()
		return false
	}
	delete(r.peers, p.userID)
	delete(r.ingress, p.userID)
	others := make([]*Peer, 0, len(r.peers))
	for _, other := range r.peers {
		others = append(others, other)
	}
	r.mu.Unlock()

	for _, other := range others {
		other.detachTrack(p.userID)
	}
	p.close()
	return true
}

// publishIngress stores the track the peer is sending and fans it out to
// every other peer already in the room.
func (r *Room) publishIngress(src int64, track *webrtc.TrackLocalStaticRTP) {
	r.mu.Lock()
	r.ingress[src] = track
	others := make([]*Peer, 0, len(r.peers))
	for userID, other := range r.peers {
		if userID != src {
			others = append(others, other)
		}
	}
	r.mu.Unlock()

	for _, other := range others {
		other.attachTrack(src, track)
	}
}

func (r *Room) occupants() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.peers))
	for userID := range r.peers {
		ids = append(ids, userID)
	}
	return ids
}

func (r *Room) empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers) == 0
}

// close tears down every peer. Used on manager shutdown.
func (r *Room) close() {
	r.mu.Lock()
	peers := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.peers = make(map[int64]*Peer)
	r.ingress = make(map[int64]*webrtc.TrackLocalStaticRTP)
	r.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
}
