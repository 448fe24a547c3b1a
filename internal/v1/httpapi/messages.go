package httpapi

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/hermes-hub/hermes/internal/v1/access"
	"github.com/hermes-hub/hermes/internal/v1/apperr"
	"github.com/hermes-hub/hermes/internal/v1/broker"
	"github.com/hermes-hub/hermes/internal/v1/store"
)

const maxMessageLength = 2000

// textChannel resolves the path to a TEXT channel the caller can read.
func (a *API) textChannel(c *gin.Context) (*store.Server, *store.Channel, int64, bool) {
	sv, callerID, ok := a.memberServer(c)
	if !ok {
		return nil, nil, 0, false
	}
	channelID, ok := channelIDParam(c)
	if !ok {
		return nil, nil, 0, false
	}
	ch, err := a.channelInServer(c.Request.Context(), sv.ID, channelID)
	if err != nil {
		respondError(c, err)
		return nil, nil, 0, false
	}
	if ch.Type != store.ChannelText {
		respondError(c, apperr.Validation("Messages can only be posted in TEXT channels"))
		return nil, nil, 0, false
	}
	return sv, ch, callerID, true
}

func (a *API) handleListMessages(c *gin.Context) {
	_, ch, _, ok := a.textChannel(c)
	if !ok {
		return
	}

	messages, err := a.store.ListMessages(c.Request.Context(), ch.ID, 0)
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]MessageView, 0, len(messages))
	for i := range messages {
		views = append(views, newMessageView(&messages[i]))
	}
	c.JSON(http.StatusOK, views)
}

type messageRequest struct {
	Content string `json:"content"`
}

func validMessageContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", apperr.Validation("content must not be empty")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return "", apperr.Validation("content must be at most 2000 characters")
	}
	return content, nil
}

func (a *API) handleCreateMessage(c *gin.Context) {
	_, ch, callerID, ok := a.textChannel(c)
	if !ok {
		return
	}

	var in messageRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Validation("Invalid request parameters"))
		return
	}
	content, err := validMessageContent(in.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	msg, err := a.store.CreateMessage(c.Request.Context(), ch.ID, callerID, content)
	if err != nil {
		respondError(c, err)
		return
	}

	// The write has committed; subscribers learn about it regardless of how
	// the publish fares.
	_ = a.broker.Publish(c.Request.Context(), ch.ID, broker.Event{
		Event: broker.EventMessageCreate,
		Data:  newMessageEventView(msg),
	})

	c.JSON(http.StatusCreated, newMessageView(msg))
}

func (a *API) handleUpdateMessage(c *gin.Context) {
	_, ch, callerID, ok := a.textChannel(c)
	if !ok {
		return
	}
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}

	msg, err := a.store.GetMessage(c.Request.Context(), messageID)
	if err != nil || msg.ChannelID != ch.ID {
		respondError(c, apperr.NotFound("Message not found"))
		return
	}
	if err := access.CanEditMessage(callerID, msg); err != nil {
		respondError(c, err)
		return
	}

	var in messageRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Validation("Invalid request parameters"))
		return
	}
	content, err := validMessageContent(in.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	updated, err := a.store.UpdateMessage(c.Request.Context(), messageID, content)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = a.broker.Publish(c.Request.Context(), ch.ID, broker.Event{
		Event: broker.EventMessageUpdate,
		Data:  newMessageEventView(updated),
	})

	c.JSON(http.StatusOK, newMessageView(updated))
}

func (a *API) handleDeleteMessage(c *gin.Context) {
	sv, ch, callerID, ok := a.textChannel(c)
	if !ok {
		return
	}
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}

	msg, err := a.store.GetMessage(c.Request.Context(), messageID)
	if err != nil || msg.ChannelID != ch.ID {
		respondError(c, apperr.NotFound("Message not found"))
		return
	}
	if err := access.CanDeleteMessage(callerID, msg, sv); err != nil {
		respondError(c, err)
		return
	}

	if err := a.store.DeleteMessage(c.Request.Context(), messageID); err != nil {
		respondError(c, err)
		return
	}

	_ = a.broker.Publish(c.Request.Context(), ch.ID, broker.MessageDeleted(messageID))

	c.Status(http.StatusNoContent)
}
