package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hermes-hub/hermes/internal/v1/apperr"
	"github.com/hermes-hub/hermes/internal/v1/auth"
)

func (a *API) handleRegister(c *gin.Context) {
	var in auth.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Validation("Invalid request parameters"))
		return
	}

	u, err := a.auth.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      u.ID,
		"message": "User registered successfully",
	})
}

type loginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

func (a *API) handleLogin(c *gin.Context) {
	var in loginRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Validation("Invalid request parameters"))
		return
	}

	token, u, err := a.auth.Login(c.Request.Context(), in.Identity, in.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	a.setSessionCookie(c, token, int(a.auth.SessionTTL().Seconds()))
	c.JSON(http.StatusOK, gin.H{"user": newPrivateUserView(u)})
}

func (a *API) handleLogout(c *gin.Context) {
	if token := auth.TokenFromRequest(c); token != "" {
		if err := a.auth.Logout(c.Request.Context(), token); err != nil {
			respondError(c, err)
			return
		}
	}

	a.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// setSessionCookie writes the hermes_session cookie. HttpOnly keeps it away
// from scripts; Secure is relaxed in development so plain-http clients work.
func (a *API) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookieName, token, maxAge, "/", "", !a.cfg.DevelopmentMode, true)
}
