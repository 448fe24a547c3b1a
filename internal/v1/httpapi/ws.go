package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hermes-hub/hermes/internal/v1/logging"
)

// handleMessagesWS upgrades the caller onto a text channel's event stream.
// Authentication and membership are settled before the upgrade, so a denied
// caller gets a plain 401/403 instead of a failed handshake.
func (a *API) handleMessagesWS(c *gin.Context) {
	_, ch, callerID, ok := a.textChannel(c)
	if !ok {
		return
	}

	upgrader := a.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed",
			zap.Int64("channel_id", ch.ID), zap.Error(err))
		return
	}

	sub := a.broker.Subscribe(conn, ch.ID, callerID)
	logging.Info(c.Request.Context(), "subscriber attached",
		zap.Int64("channel_id", ch.ID), zap.Int64("user_id", callerID))

	// Blocks until the connection dies; gin's handler goroutine doubles as
	// the read pump.
	sub.Run()
}
