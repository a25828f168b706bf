package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"
	"github.com/sekmet/corefans-relay/internal/config"
	"github.com/sekmet/corefans-relay/internal/relay"
	"github.com/sekmet/corefans-relay/internal/stats"
	"github.com/sekmet/corefans-relay/internal/testutil"
	"github.com/sekmet/corefans-relay/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("some_secret")

func newTestApp(t *testing.T) (*RelayApp, *relay.RelayServer) {
	logger := testutil.TestLogger(t)
	rs := relay.NewRelayServer(logger, stats.NopStats{})

	cfg := &config.Config{
		ServerAddr: "localhost:0",
		SigningKey: testSigningKey,
	}

	mux := http.NewServeMux()
	return NewRelayApp(mux, logger, rs, cfg), rs
}

func signedToken(t *testing.T, userId, name string) *http.Cookie {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		viewerIdClaim: userId,
		nameClaim:     name,
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	signed, err := token.SignedString(testSigningKey)
	require.NoError(t, err, "expected token signing to succeed")

	return &http.Cookie{Name: tokenCookieKey, Value: signed}
}

func Test_startRoom(t *testing.T) {
	t.Run("requires identity", func(t *testing.T) {
		app, _ := newTestApp(t)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/live/start", strings.NewReader(`{}`))
		app.srv.Handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected 401 without token")
	})

	t.Run("creates a live room", func(t *testing.T) {
		app, rs := newTestApp(t)

		body, _ := json.Marshal(StartRoomRequest{Title: "launch party", Description: "first stream"})
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/live/start", bytes.NewBuffer(body))
		req.AddCookie(signedToken(t, "owner1", "Creator"))
		app.srv.Handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code, "expected 201 for started room")

		var room types.LiveRoom
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &room))
		assert.Equal(t, "owner1", room.OwnerId)
		assert.Equal(t, "launch party", room.Title)
		assert.True(t, room.IsLive)
		assert.NotEmpty(t, room.AccessToken, "expected owner response to carry the encoder token")

		assert.Len(t, rs.ListLive(), 1, "expected the room registered")
	})

	t.Run("defaults the title", func(t *testing.T) {
		app, _ := newTestApp(t)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/live/start", strings.NewReader(`{}`))
		req.AddCookie(signedToken(t, "owner1", "Creator"))
		app.srv.Handler.ServeHTTP(rr, req)

		var room types.LiveRoom
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &room))
		assert.Equal(t, "Creator's live", room.Title, "expected a default title")
	})

	t.Run("rejects bad json", func(t *testing.T) {
		app, _ := newTestApp(t)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/live/start", strings.NewReader(`{not json`))
		req.AddCookie(signedToken(t, "owner1", "Creator"))
		app.srv.Handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func Test_stopRoom(t *testing.T) {
	app, rs := newTestApp(t)

	room, err := rs.StartRoom("owner1", "stream", "")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/live/stop", nil)
	req.AddCookie(signedToken(t, "owner1", "Creator"))
	app.srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp StopRoomResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{room.Id}, resp.StoppedRoomIds)

	// stopping again is a no-op, not an error
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/live/stop", nil)
	req.AddCookie(signedToken(t, "owner1", "Creator"))
	app.srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp.StoppedRoomIds, "expected empty result for owner with no live rooms")
}

func Test_listLive(t *testing.T) {
	app, rs := newTestApp(t)

	_, err := rs.StartRoom("owner1", "stream", "")
	require.NoError(t, err)
	rs.StartRoom("owner2", "other", "")
	rs.StopRoom("owner2")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/live", nil)
	app.srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var rooms []types.LiveRoom
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rooms))
	assert.Len(t, rooms, 1, "expected only live rooms listed")
	assert.Empty(t, rooms[0].AccessToken, "expected access token stripped from the public list")
}

func Test_serveWs(t *testing.T) {
	app, rs := newTestApp(t)

	room, err := rs.StartRoom("owner1", "stream", "")
	require.NoError(t, err)

	srv := httptest.NewServer(app.srv.Handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?name=lurker"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "expected anonymous upgrade to succeed")
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(relay.Event{Type: relay.EventJoin, RoomId: room.Id}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var ev relay.Event
		require.NoError(t, conn.ReadJSON(&ev), "expected a join response")
		if ev.Type == relay.EventViewerCount {
			assert.Equal(t, 1, ev.Count, "expected count 1 after join")
			break
		}
	}
}

func Test_errorHandler(t *testing.T) {
	app, _ := newTestApp(t)

	h := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected panic converted to 500")
}
