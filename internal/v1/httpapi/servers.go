package httpapi

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/hermes-hub/hermes/internal/v1/access"
	"github.com/hermes-hub/hermes/internal/v1/apperr"
	"github.com/hermes-hub/hermes/internal/v1/auth"
	"github.com/hermes-hub/hermes/internal/v1/store"
)

type createServerRequest struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url"`
}

func (a *API) handleCreateServer(c *gin.Context) {
	callerID, _ := auth.CallerID(c)

	var in createServerRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Validation("Invalid request parameters"))
		return
	}
	name := strings.TrimSpace(in.Name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		respondError(c, apperr.Validation("name must be between 2 and 100 characters"))
		return
	}

	sv, err := a.store.CreateServer(c.Request.Context(), name, strings.TrimSpace(in.IconURL), callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newServerView(sv))
}

func (a *API) handleListServers(c *gin.Context) {
	callerID, _ := auth.CallerID(c)

	servers, err := a.store.ListServersForUser(c.Request.Context(), callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]ServerView, 0, len(servers))
	for i := range servers {
		views = append(views, newServerView(&servers[i]))
	}
	c.JSON(http.StatusOK, views)
}

// memberServer loads the server after confirming the caller can see it.
func (a *API) memberServer(c *gin.Context) (*store.Server, int64, bool) {
	callerID, _ := auth.CallerID(c)
	serverID, ok := serverIDParam(c)
	if !ok {
		return nil, 0, false
	}
	if err := a.access.RequireMember(c.Request.Context(), callerID, serverID); err != nil {
		respondError(c, err)
		return nil, 0, false
	}
	sv, err := a.store.GetServer(c.Request.Context(), serverID)
	if err != nil {
		respondError(c, err)
		return nil, 0, false
	}
	return sv, callerID, true
}

func (a *API) handleGetServer(c *gin.Context) {
	sv, _, ok := a.memberServer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newServerView(sv))
}

type updateServerRequest struct {
	Name    *string `json:"name"`
	IconURL *string `json:"icon_url"`
}

func (a *API) handleUpdateServer(c *gin.Context) {
	sv, callerID, ok := a.memberServer(c)
	if !ok {
		return
	}
	if err := a.access.RequireOwner(c.Request.Context(), callerID, sv); err != nil {
		respondError(c, err)
		return
	}

	var in updateServerRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Validation("Invalid request parameters"))
		return
	}
	patch := store.ServerPatch{IconURL: in.IconURL}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
			respondError(c, apperr.Validation("name must be between 2 and 100 characters"))
			return
		}
		patch.Name = &name
	}

	updated, err := a.store.UpdateServer(c.Request.Context(), sv.ID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newServerView(updated))
}

func (a *API) handleDeleteServer(c *gin.Context) {
	sv, callerID, ok := a.memberServer(c)
	if !ok {
		return
	}
	if err := a.access.RequireOwner(c.Request.Context(), callerID, sv); err != nil {
		respondError(c, err)
		return
	}

	if err := a.store.DeleteServer(c.Request.Context(), sv.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleJoinServer(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	serverID, ok := serverIDParam(c)
	if !ok {
		return
	}

	// The server must exist; joining is open to any authenticated user.
	if _, err := a.store.GetServer(c.Request.Context(), serverID); err != nil {
		respondError(c, err)
		return
	}

	rejoined, err := a.store.JoinServer(c.Request.Context(), callerID, serverID)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Successfully joined the server"
	if rejoined {
		message = "Successfully rejoined the server"
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

func (a *API) handleLeaveServer(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	serverID, ok := serverIDParam(c)
	if !ok {
		return
	}

	m, err := a.store.GetMembership(c.Request.Context(), callerID, serverID)
	if err != nil || !m.Active() {
		respondError(c, apperr.Validation("You are not an active member of this server"))
		return
	}

	sv, err := a.store.GetServer(c.Request.Context(), serverID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := access.CanLeaveServer(callerID, sv); err != nil {
		respondError(c, err)
		return
	}

	if err := a.store.LeaveServer(c.Request.Context(), callerID, serverID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully left the server"})
}

type transferRequest struct {
	NewOwnerID int64 `json:"user_id"`
}

func (a *API) handleTransferOwnership(c *gin.Context) {
	sv, callerID, ok := a.memberServer(c)
	if !ok {
		return
	}
	if err := a.access.RequireOwner(c.Request.Context(), callerID, sv); err != nil {
		respondError(c, err)
		return
	}

	var in transferRequest
	if err := c.ShouldBindJSON(&in); err != nil || in.NewOwnerID <= 0 {
		respondError(c, apperr.Validation("user_id is required"))
		return
	}

	if err := a.store.TransferOwnership(c.Request.Context(), sv.ID, in.NewOwnerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ownership transferred"})
}
