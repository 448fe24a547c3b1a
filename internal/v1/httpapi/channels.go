package httpapi

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/hermes-hub/hermes/internal/v1/apperr"
	"github.com/hermes-hub/hermes/internal/v1/store"
)

func (a *API) handleListChannels(c *gin.Context) {
	sv, _, ok := a.memberServer(c)
	if !ok {
		return
	}

	channels, err := a.store.ListChannels(c.Request.Context(), sv.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]ChannelView, 0, len(channels))
	for i := range channels {
		views = append(views, newChannelView(&channels[i]))
	}
	c.JSON(http.StatusOK, views)
}

type createChannelRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Position *int   `json:"position"`
}

func (a *API) handleCreateChannel(c *gin.Context) {
	sv, callerID, ok := a.memberServer(c)
	if !ok {
		return
	}
	if err := a.access.RequireOwner(c.Request.Context(), callerID, sv); err != nil {
		respondError(c, err)
		return
	}

	var in createChannelRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Validation("Invalid request parameters"))
		return
	}

	name := strings.ToLower(strings.TrimSpace(in.Name))
	if name == "" || utf8.RuneCountInString(name) > 100 {
		respondError(c, apperr.Validation("name must be between 1 and 100 characters"))
		return
	}
	typ := store.ChannelType(strings.ToUpper(strings.TrimSpace(in.Type)))
	if typ != store.ChannelText && typ != store.ChannelVoice {
		respondError(c, apperr.Validation("type must be TEXT or VOICE"))
		return
	}

	ch, err := a.store.CreateChannel(c.Request.Context(), sv.ID, name, typ, in.Position)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newChannelView(ch))
}

type updateChannelRequest struct {
	Name     *string `json:"name"`
	Position *int    `json:"position"`
}

func (a *API) handleUpdateChannel(c *gin.Context) {
	sv, callerID, ok := a.memberServer(c)
	if !ok {
		return
	}
	if err := a.access.RequireOwner(c.Request.Context(), callerID, sv); err != nil {
		respondError(c, err)
		return
	}
	channelID, ok := channelIDParam(c)
	if !ok {
		return
	}
	if _, err := a.channelInServer(c.Request.Context(), sv.ID, channelID); err != nil {
		respondError(c, err)
		return
	}

	var in updateChannelRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Validation("Invalid request parameters"))
		return
	}
	patch := store.ChannelPatch{Position: in.Position}
	if in.Name != nil {
		name := strings.ToLower(strings.TrimSpace(*in.Name))
		if name == "" || utf8.RuneCountInString(name) > 100 {
			respondError(c, apperr.Validation("name must be between 1 and 100 characters"))
			return
		}
		patch.Name = &name
	}

	ch, err := a.store.UpdateChannel(c.Request.Context(), channelID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newChannelView(ch))
}

func (a *API) handleDeleteChannel(c *gin.Context) {
	sv, callerID, ok := a.memberServer(c)
	if !ok {
		return
	}
	if err := a.access.RequireOwner(c.Request.Context(), callerID, sv); err != nil {
		respondError(c, err)
		return
	}
	channelID, ok := channelIDParam(c)
	if !ok {
		return
	}
	if _, err := a.channelInServer(c.Request.Context(), sv.ID, channelID); err != nil {
		respondError(c, err)
		return
	}

	if err := a.store.DeleteChannel(c.Request.Context(), channelID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
