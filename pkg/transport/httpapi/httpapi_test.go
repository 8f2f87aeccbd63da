package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/decred/slog"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlorgames/parlord/pkg/dominoes"
	"github.com/parlorgames/parlord/pkg/engine"
	"github.com/parlorgames/parlord/pkg/server"
	"github.com/parlorgames/parlord/pkg/spades"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := engine.NewRegistry(slog.Disabled)
	reg.RegisterModule(spades.New())
	reg.RegisterModule(dominoes.New())

	cfg := server.DefaultConfig()
	cfg.Dev = true
	srv := server.New(slog.Disabled, cfg, reg, nil)

	r := gin.New()
	New(slog.Disabled, srv).Register(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAndFetchRoom(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/rooms", map[string]interface{}{
		"userId":   "U1",
		"userName": "Alice",
		"roomName": "table",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var snap server.RoomSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Len(t, snap.Code, 6)

	w = doJSON(t, r, http.MethodGet, "/rooms/code/"+snap.Code, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/rooms/code/ZZZZZZ", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRoomValidation(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/rooms", map[string]interface{}{"userName": "Alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJoinPrivateRoomForbidden(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/rooms", map[string]interface{}{
		"userId":    "U1",
		"userName":  "Alice",
		"isPrivate": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var snap server.RoomSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))

	w = doJSON(t, r, http.MethodPost, "/rooms/join", map[string]interface{}{
		"roomCode": snap.Code,
		"userId":   "U2",
		"userName": "Bob",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "PRIVATE_ROOM", body["code"])

	// The request-join path works instead.
	w = doJSON(t, r, http.MethodPost, "/rooms/request-join", map[string]interface{}{
		"roomCode": snap.Code,
		"userId":   "U2",
		"userName": "Bob",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListGamesAndSettings(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/games", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var metas []engine.Meta
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metas))
	require.Len(t, metas, 2)
	assert.Equal(t, "dominoes", metas[0].Type)
	assert.Equal(t, "spades", metas[1].Type)

	w = doJSON(t, r, http.MethodGet, "/games/spades/settings", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/games/chess/settings", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
