package httpapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMeIncludesEmail(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.signup("alice")

	resp := env.do(http.MethodGet, "/api/users/@me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, float64(id), body["id"])
	assert.Equal(t, "alice@example.com", body["email"])
}

func TestGetUserIsPublicView(t *testing.T) {
	env := newTestEnv(t)
	aliceID, _ := env.signup("alice")
	_, bobToken := env.signup("bob")

	resp := env.do(http.MethodGet, fmt.Sprintf("/api/users/%d", aliceID), bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "alice", body["username"])
	_, hasEmail := body["email"]
	assert.False(t, hasEmail, "public view must not expose email")
}

func TestGetUserBadID(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup("alice")

	resp := env.do(http.MethodGet, "/api/users/abc", token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid user ID format", errorMessage(t, resp))
}

func TestPatchMe(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup("alice")

	resp := env.do(http.MethodPatch, "/api/users/@me", token, map[string]string{
		"display_name": "Alice Liddell",
		"status":       "away",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "Alice Liddell", body["display_name"])
	assert.Equal(t, "away", body["status"])
}

func TestPatchMeUsernameConflict(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice")
	_, bobToken := env.signup("bob")

	resp := env.do(http.MethodPatch, "/api/users/@me", bobToken, map[string]string{
		"username": "Alice",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestDeleteMeGhostsTheAccount(t *testing.T) {
	env := newTestEnv(t)
	aliceID, aliceToken := env.signup("alice")
	_, bobToken := env.signup("bob")

	serverID := env.createServer(aliceToken, "wonderland")
	generalID := env.channelByName(aliceToken, serverID, "general", "TEXT")
	env.postMessage(aliceToken, serverID, generalID, "goodbye")

	joinResp := env.do(http.MethodPost, fmt.Sprintf("/api/servers/%d/join", serverID), bobToken, nil)
	require.Equal(t, http.StatusOK, joinResp.StatusCode)
	joinResp.Body.Close()

	resp := env.do(http.MethodDelete, "/api/users/@me", aliceToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Every session of the ghosted user dies.
	resp = env.do(http.MethodGet, "/api/users/@me", aliceToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// The old credentials no longer log in.
	resp = env.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"identity": "alice", "password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// The username frees up immediately.
	env.register("alice")

	// The ghost row still resolves, with placeholder identity.
	resp = env.do(http.MethodGet, fmt.Sprintf("/api/users/%d", aliceID), bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ghost map[string]any
	decode(t, resp, &ghost)
	assert.Equal(t, fmt.Sprintf("ghost_%d", aliceID), ghost["username"])
	assert.Equal(t, "Deleted User", ghost["display_name"])

	// Authored messages survive with the ghost author.
	resp = env.do(http.MethodGet,
		fmt.Sprintf("/api/servers/%d/channels/%d/messages", serverID, generalID), bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var messages []struct {
		Content string `json:"content"`
		Author  struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	}
	decode(t, resp, &messages)
	require.Len(t, messages, 1)
	assert.Equal(t, "goodbye", messages[0].Content)
	assert.Equal(t, "Deleted User", messages[0].Author.DisplayName)
}
