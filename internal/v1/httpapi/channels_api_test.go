package httpapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChannel(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup("alice")
	serverID := env.createServer(token, "wonderland")
	path := fmt.Sprintf("/api/servers/%d/channels", serverID)

	resp := env.do(http.MethodPost, path, token, map[string]string{
		"name": "  Random  ", "type": "text",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var ch struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Position int    `json:"position"`
	}
	decode(t, resp, &ch)
	assert.Equal(t, "random", ch.Name)
	assert.Equal(t, "TEXT", ch.Type)
	assert.Equal(t, 2, ch.Position, "appends after the two defaults")
}

func TestCreateChannelNameConflictPerType(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup("alice")
	serverID := env.createServer(token, "wonderland")
	path := fmt.Sprintf("/api/servers/%d/channels", serverID)

	resp := env.do(http.MethodPost, path, token, map[string]string{
		"name": "general", "type": "TEXT",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "A TEXT channel with that name already exists", errorMessage(t, resp))

	// Same name under the other type is fine.
	resp = env.do(http.MethodPost, path, token, map[string]string{
		"name": "general", "type": "VOICE",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateChannelValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup("alice")
	serverID := env.createServer(token, "wonderland")
	path := fmt.Sprintf("/api/servers/%d/channels", serverID)

	resp := env.do(http.MethodPost, path, token, map[string]string{
		"name": "lounge", "type": "VIDEO",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "type must be TEXT or VOICE", errorMessage(t, resp))

	resp = env.do(http.MethodPost, path, token, map[string]string{
		"name": "   ", "type": "TEXT",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestChannelManagementIsOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	_, aliceToken := env.signup("alice")
	_, bobToken := env.signup("bob")

	serverID := env.createServer(aliceToken, "wonderland")
	joinResp := env.do(http.MethodPost, fmt.Sprintf("/api/servers/%d/join", serverID), bobToken, nil)
	require.Equal(t, http.StatusOK, joinResp.StatusCode)
	joinResp.Body.Close()

	resp := env.do(http.MethodPost, fmt.Sprintf("/api/servers/%d/channels", serverID), bobToken,
		map[string]string{"name": "rogue", "type": "TEXT"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "You do not have permission to do this", errorMessage(t, resp))

	generalID := env.channelByName(bobToken, serverID, "general", "TEXT")
	resp = env.do(http.MethodDelete,
		fmt.Sprintf("/api/servers/%d/channels/%d", serverID, generalID), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestUpdateAndDeleteChannel(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup("alice")
	serverID := env.createServer(token, "wonderland")
	generalID := env.channelByName(token, serverID, "general", "TEXT")
	path := fmt.Sprintf("/api/servers/%d/channels/%d", serverID, generalID)

	resp := env.do(http.MethodPatch, path, token, map[string]string{"name": "lobby"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ch struct {
		Name string `json:"name"`
	}
	decode(t, resp, &ch)
	assert.Equal(t, "lobby", ch.Name)

	resp = env.do(http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(http.MethodGet, fmt.Sprintf("/api/servers/%d/channels", serverID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var channels []struct {
		Name string `json:"name"`
	}
	decode(t, resp, &channels)
	assert.Len(t, channels, 1)
}

func TestChannelMustBelongToServer(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signup("alice")

	serverA := env.createServer(token, "alpha")
	serverB := env.createServer(token, "beta")
	generalB := env.channelByName(token, serverB, "general", "TEXT")

	resp := env.do(http.MethodPatch,
		fmt.Sprintf("/api/servers/%d/channels/%d", serverA, generalB), token,
		map[string]string{"name": "sneaky"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Channel not found in this server", errorMessage(t, resp))
}
