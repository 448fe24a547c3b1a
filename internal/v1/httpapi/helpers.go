package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hermes-hub/hermes/internal/v1/apperr"
	"github.com/hermes-hub/hermes/internal/v1/logging"
	"github.com/hermes-hub/hermes/internal/v1/store"
)

// respondError maps a typed error to its status code and {error} body.
// Internal errors are logged with their cause; the client sees a generic
// message.
func respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		logging.Error(c.Request.Context(), "request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": apperr.ClientMessage(err)})
}

// paramID parses a numeric path parameter, answering 400 with the given
// message on garbage. The bool reports success.
func paramID(c *gin.Context, name, badFormatMessage string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": badFormatMessage})
		return 0, false
	}
	return id, true
}

func serverIDParam(c *gin.Context) (int64, bool) {
	return paramID(c, "serverID", "Invalid server ID format")
}

func channelIDParam(c *gin.Context) (int64, bool) {
	return paramID(c, "channelID", "Invalid channel ID")
}

func messageIDParam(c *gin.Context) (int64, bool) {
	return paramID(c, "messageID", "Invalid message ID format")
}

// channelInServer loads the channel and confirms it belongs to the server in
// the path. A channel reached through the wrong server is NOT_FOUND.
func (a *API) channelInServer(ctx context.Context, serverID, channelID int64) (*store.Channel, error) {
	ch, err := a.store.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch.ServerID != serverID {
		return nil, apperr.NotFound("Channel not found in this server")
	}
	return ch, nil
}
