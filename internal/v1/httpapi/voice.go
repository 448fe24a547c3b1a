package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hermes-hub/hermes/internal/v1/apperr"
	"github.com/hermes-hub/hermes/internal/v1/logging"
	"github.com/hermes-hub/hermes/internal/v1/store"
)

// voiceChannel resolves the path to a VOICE channel the caller can use.
func (a *API) voiceChannel(c *gin.Context) (*store.Channel, int64, bool) {
	sv, callerID, ok := a.memberServer(c)
	if !ok {
		return nil, 0, false
	}
	channelID, ok := channelIDParam(c)
	if !ok {
		return nil, 0, false
	}
	ch, err := a.channelInServer(c.Request.Context(), sv.ID, channelID)
	if err != nil {
		respondError(c, err)
		return nil, 0, false
	}
	if ch.Type != store.ChannelVoice {
		respondError(c, apperr.Validation("Not a VOICE channel"))
		return nil, 0, false
	}
	return ch, callerID, true
}

// handleVoiceJoin announces presence before any media flows, so member
// lists update as soon as the client decides to join.
func (a *API) handleVoiceJoin(c *gin.Context) {
	ch, callerID, ok := a.voiceChannel(c)
	if !ok {
		return
	}

	a.voice.AnnounceJoin(c.Request.Context(), ch.ID, callerID)
	c.JSON(http.StatusOK, gin.H{"message": "Joined voice channel"})
}

func (a *API) handleVoiceLeave(c *gin.Context) {
	ch, callerID, ok := a.voiceChannel(c)
	if !ok {
		return
	}

	a.voice.AnnounceLeave(c.Request.Context(), ch.ID, callerID)
	c.JSON(http.StatusOK, gin.H{"message": "Left voice channel"})
}

// VoiceMemberView is one occupant of a voice room.
type VoiceMemberView struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

func (a *API) handleVoiceMembers(c *gin.Context) {
	ch, _, ok := a.voiceChannel(c)
	if !ok {
		return
	}

	members := []VoiceMemberView{}
	for _, userID := range a.voice.Occupants(ch.ID) {
		u, err := a.store.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			continue // raced a deletion; skip
		}
		members = append(members, VoiceMemberView{
			ID:        u.ID,
			Name:      u.DisplayName,
			AvatarURL: u.AvatarURL,
		})
	}
	c.JSON(http.StatusOK, members)
}

// handleVoiceWS upgrades the caller onto the channel's signaling socket and
// hands the connection to the SFU.
func (a *API) handleVoiceWS(c *gin.Context) {
	ch, callerID, ok := a.voiceChannel(c)
	if !ok {
		return
	}

	upgrader := a.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "voice websocket upgrade failed",
			zap.Int64("channel_id", ch.ID), zap.Error(err))
		return
	}

	// Blocks for the life of the peer.
	if err := a.voice.Connect(c.Request.Context(), ch.ID, callerID, conn); err != nil {
		logging.Error(c.Request.Context(), "voice connection failed",
			zap.Int64("channel_id", ch.ID), zap.Int64("user_id", callerID), zap.Error(err))
		_ = conn.Close()
	}
}
