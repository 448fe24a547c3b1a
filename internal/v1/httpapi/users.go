package httpapi

import (
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/hermes-hub/hermes/internal/v1/apperr"
	"github.com/hermes-hub/hermes/internal/v1/auth"
	"github.com/hermes-hub/hermes/internal/v1/store"
)

func (a *API) handleGetMe(c *gin.Context) {
	callerID, _ := auth.CallerID(c)
	u, err := a.store.GetUserByID(c.Request.Context(), callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPrivateUserView(u))
}

type patchMeRequest struct {
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
	Status      *string `json:"status"`
	AvatarURL   *string `json:"avatar_url"`
}

func (a *API) handlePatchMe(c *gin.Context) {
	callerID, _ := auth.CallerID(c)

	var in patchMeRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Validation("Invalid request parameters"))
		return
	}

	patch := store.UserPatch{
		DisplayName: in.DisplayName,
		Status:      in.Status,
		AvatarURL:   in.AvatarURL,
	}
	// Identity fields re-run the registration normalization and floor.
	if in.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*in.Username))
		if n := utf8.RuneCountInString(username); n < 3 || n > 32 {
			respondError(c, apperr.Validation("username must be between 3 and 32 characters"))
			return
		}
		patch.Username = &username
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			respondError(c, apperr.Validation("email is not a valid address"))
			return
		}
		patch.Email = &email
	}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" || utf8.RuneCountInString(name) > 32 {
			respondError(c, apperr.Validation("display_name must be between 1 and 32 characters"))
			return
		}
		patch.DisplayName = &name
	}

	u, err := a.store.UpdateUser(c.Request.Context(), callerID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPrivateUserView(u))
}

// handleDeleteMe ghosts the account: authored messages survive with a
// placeholder author and every session dies.
func (a *API) handleDeleteMe(c *gin.Context) {
	callerID, _ := auth.CallerID(c)

	if err := a.store.GhostUser(c.Request.Context(), callerID); err != nil {
		respondError(c, err)
		return
	}

	a.setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (a *API) handleGetUser(c *gin.Context) {
	id, ok := paramID(c, "userID", "invalid user ID format")
	if !ok {
		return
	}

	u, err := a.store.GetUserByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPublicUserView(u))
}
