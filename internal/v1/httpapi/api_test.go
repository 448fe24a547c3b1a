package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hermes-hub/hermes/internal/v1/auth"
	"github.com/hermes-hub/hermes/internal/v1/broker"
	"github.com/hermes-hub/hermes/internal/v1/config"
	"github.com/hermes-hub/hermes/internal/v1/health"
	"github.com/hermes-hub/hermes/internal/v1/httpapi"
	"github.com/hermes-hub/hermes/internal/v1/logging"
	"github.com/hermes-hub/hermes/internal/v1/store"
	"github.com/hermes-hub/hermes/internal/v1/voice"
)

func init() {
	gin.SetMode(gin.TestMode)
	logging.Initialize(true)
}

// testEnv runs the full stack over an in-memory store behind a real HTTP
// listener, so tests exercise the same path a browser would, WebSocket
// upgrades included.
type testEnv struct {
	t  *testing.T
	ts *httptest.Server
	st *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{
		DevelopmentMode: true,
		AllowedOrigins:  []string{"http://localhost:3000"},
		SessionTTL:      time.Hour,
	}

	events := broker.New(nil)
	t.Cleanup(func() { events.Shutdown(context.Background()) })

	voiceMgr := voice.NewManager(events, nil)
	t.Cleanup(func() { voiceMgr.Shutdown(context.Background()) })

	authSvc := auth.NewService(st, cfg.SessionTTL, bcrypt.MinCost)
	api := httpapi.New(cfg, st, authSvc, events, voiceMgr)

	ts := httptest.NewServer(api.Router(health.NewHandler(st, nil)))
	t.Cleanup(ts.Close)

	return &testEnv{t: t, ts: ts, st: st}
}

// do issues a request. A non-empty token rides in the session cookie.
func (e *testEnv) do(method, path, token string, body any) *http.Response {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	}

	resp, err := e.ts.Client().Do(req)
	require.NoError(e.t, err)
	return resp
}

// decode drains and closes the body into out.
func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// errorMessage returns the {"error": ...} body.
func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	decode(t, resp, &body)
	return body["error"]
}

// register creates a user with the conventional test credentials and returns
// its id.
func (e *testEnv) register(username string) int64 {
	e.t.Helper()

	resp := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":     username,
		"email":        username + "@example.com",
		"password":     "password123",
		"display_name": username,
	})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ID      int64  `json:"id"`
		Message string `json:"message"`
	}
	decode(e.t, resp, &body)
	require.Equal(e.t, "User registered successfully", body.Message)
	return body.ID
}

// login authenticates and returns the session token from the cookie.
func (e *testEnv) login(identity string) string {
	e.t.Helper()

	resp := e.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"identity": identity,
		"password": "password123",
	})
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName && c.Value != "" {
			return c.Value
		}
	}
	e.t.Fatal("login response did not set a session cookie")
	return ""
}

// signup registers and logs in, returning (id, token).
func (e *testEnv) signup(username string) (int64, string) {
	e.t.Helper()
	id := e.register(username)
	return id, e.login(username)
}

// createServer makes a server and returns its id.
func (e *testEnv) createServer(token, name string) int64 {
	e.t.Helper()

	resp := e.do(http.MethodPost, "/api/servers", token, map[string]string{"name": name})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ID int64 `json:"id"`
	}
	decode(e.t, resp, &body)
	return body.ID
}

// channelByName finds a channel of the server by name and type.
func (e *testEnv) channelByName(token string, serverID int64, name, typ string) int64 {
	e.t.Helper()

	resp := e.do(http.MethodGet, fmt.Sprintf("/api/servers/%d/channels", serverID), token, nil)
	require.Equal(e.t, http.StatusOK, resp.StatusCode)

	var channels []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	}
	decode(e.t, resp, &channels)
	for _, ch := range channels {
		if ch.Name == name && ch.Type == typ {
			return ch.ID
		}
	}
	e.t.Fatalf("no %s channel named %q in server %d", typ, name, serverID)
	return 0
}

// postMessage creates a message and returns its id.
func (e *testEnv) postMessage(token string, serverID, channelID int64, content string) int64 {
	e.t.Helper()

	resp := e.do(http.MethodPost,
		fmt.Sprintf("/api/servers/%d/channels/%d/messages", serverID, channelID),
		token, map[string]string{"content": content})
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ID int64 `json:"id"`
	}
	decode(e.t, resp, &body)
	return body.ID
}
