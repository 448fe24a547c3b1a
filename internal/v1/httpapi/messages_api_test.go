package httpapi_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// messagesFixture is a server with alice as owner and bob as member.
type messagesFixture struct {
	env        *testEnv
	aliceToken string
	bobToken   string
	serverID   int64
	generalID  int64
}

func newMessagesFixture(t *testing.T) *messagesFixture {
	env := newTestEnv(t)
	_, aliceToken := env.signup("alice")
	_, bobToken := env.signup("bob")

	serverID := env.createServer(aliceToken, "wonderland")
	joinResp := env.do(http.MethodPost, fmt.Sprintf("/api/servers/%d/join", serverID), bobToken, nil)
	require.Equal(t, http.StatusOK, joinResp.StatusCode)
	joinResp.Body.Close()

	return &messagesFixture{
		env:        env,
		aliceToken: aliceToken,
		bobToken:   bobToken,
		serverID:   serverID,
		generalID:  env.channelByName(aliceToken, serverID, "general", "TEXT"),
	}
}

func (f *messagesFixture) messagesPath() string {
	return fmt.Sprintf("/api/servers/%d/channels/%d/messages", f.serverID, f.generalID)
}

func TestMessageLifecycle(t *testing.T) {
	f := newMessagesFixture(t)
	env := f.env

	resp := env.do(http.MethodPost, f.messagesPath(), f.aliceToken, map[string]string{
		"content": "  hello there  ",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var msg struct {
		ID       int64 `json:"id"`
		Content  string
		EditedAt *string `json:"edited_at"`
		Author   struct {
			Username string `json:"username"`
		} `json:"author"`
	}
	decode(t, resp, &msg)
	assert.Equal(t, "hello there", msg.Content, "content is trimmed")
	assert.Equal(t, "alice", msg.Author.Username)
	assert.Nil(t, msg.EditedAt)

	resp = env.do(http.MethodPatch, fmt.Sprintf("%s/%d", f.messagesPath(), msg.ID), f.aliceToken,
		map[string]string{"content": "hello, edited"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var edited struct {
		Content  string  `json:"content"`
		EditedAt *string `json:"edited_at"`
	}
	decode(t, resp, &edited)
	assert.Equal(t, "hello, edited", edited.Content)
	assert.NotNil(t, edited.EditedAt)

	resp = env.do(http.MethodDelete, fmt.Sprintf("%s/%d", f.messagesPath(), msg.ID), f.aliceToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(http.MethodGet, f.messagesPath(), f.aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []any
	decode(t, resp, &list)
	assert.Empty(t, list)
}

func TestMessagesAreChronological(t *testing.T) {
	f := newMessagesFixture(t)

	f.env.postMessage(f.aliceToken, f.serverID, f.generalID, "first")
	f.env.postMessage(f.bobToken, f.serverID, f.generalID, "second")
	f.env.postMessage(f.aliceToken, f.serverID, f.generalID, "third")

	resp := f.env.do(http.MethodGet, f.messagesPath(), f.bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []struct {
		Content string `json:"content"`
	}
	decode(t, resp, &list)
	require.Len(t, list, 3)
	assert.Equal(t, "first", list[0].Content)
	assert.Equal(t, "third", list[2].Content)
}

func TestMessageContentValidation(t *testing.T) {
	f := newMessagesFixture(t)

	resp := f.env.do(http.MethodPost, f.messagesPath(), f.aliceToken, map[string]string{
		"content": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.env.do(http.MethodPost, f.messagesPath(), f.aliceToken, map[string]string{
		"content": strings.Repeat("x", 2001),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// The cap is inclusive.
	resp = f.env.do(http.MethodPost, f.messagesPath(), f.aliceToken, map[string]string{
		"content": strings.Repeat("x", 2000),
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// The cap counts characters, not bytes: 2000 two-byte runes pass.
	resp = f.env.do(http.MethodPost, f.messagesPath(), f.aliceToken, map[string]string{
		"content": strings.Repeat("é", 2000),
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.env.do(http.MethodPost, f.messagesPath(), f.aliceToken, map[string]string{
		"content": strings.Repeat("é", 2001),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestEditIsAuthorOnly(t *testing.T) {
	f := newMessagesFixture(t)

	msgID := f.env.postMessage(f.aliceToken, f.serverID, f.generalID, "mine")

	resp := f.env.do(http.MethodPatch, fmt.Sprintf("%s/%d", f.messagesPath(), msgID), f.bobToken,
		map[string]string{"content": "hijacked"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "You can only edit your own messages", errorMessage(t, resp))
}

func TestDeletePermissions(t *testing.T) {
	f := newMessagesFixture(t)

	aliceMsg := f.env.postMessage(f.aliceToken, f.serverID, f.generalID, "owner speaks")
	bobMsg := f.env.postMessage(f.bobToken, f.serverID, f.generalID, "member speaks")

	// A plain member cannot delete someone else's message.
	resp := f.env.do(http.MethodDelete, fmt.Sprintf("%s/%d", f.messagesPath(), aliceMsg), f.bobToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "You do not have permission to delete this message", errorMessage(t, resp))

	// The server owner moderates anyone's message.
	resp = f.env.do(http.MethodDelete, fmt.Sprintf("%s/%d", f.messagesPath(), bobMsg), f.aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}

func TestMessagesRejectedOnVoiceChannels(t *testing.T) {
	f := newMessagesFixture(t)
	voiceID := f.env.channelByName(f.aliceToken, f.serverID, "voice", "VOICE")

	resp := f.env.do(http.MethodPost,
		fmt.Sprintf("/api/servers/%d/channels/%d/messages", f.serverID, voiceID), f.aliceToken,
		map[string]string{"content": "hello"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Messages can only be posted in TEXT channels", errorMessage(t, resp))
}

func TestMessageFromOtherChannelIsNotFound(t *testing.T) {
	f := newMessagesFixture(t)
	env := f.env

	createResp := env.do(http.MethodPost, fmt.Sprintf("/api/servers/%d/channels", f.serverID),
		f.aliceToken, map[string]string{"name": "random", "type": "TEXT"})
	require.Equal(t, http.StatusCreated, createResp.StatusCode)
	var other struct {
		ID int64 `json:"id"`
	}
	decode(t, createResp, &other)

	msgID := env.postMessage(f.aliceToken, f.serverID, f.generalID, "in general")

	resp := env.do(http.MethodPatch,
		fmt.Sprintf("/api/servers/%d/channels/%d/messages/%d", f.serverID, other.ID, msgID),
		f.aliceToken, map[string]string{"content": "moved?"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Message not found", errorMessage(t, resp))
}

func TestMessagesRequireMembership(t *testing.T) {
	f := newMessagesFixture(t)
	_, carolToken := f.env.signup("carol")

	resp := f.env.do(http.MethodGet, f.messagesPath(), carolToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Server not found", errorMessage(t, resp))
}
