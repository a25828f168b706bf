package api

import (
	"encoding/json"
	"net/http"

	"github.com/sekmet/corefans-relay/internal/types"
)

type StartRoomRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type StopRoomResponse struct {
	StoppedRoomIds []string `json:"stopped_room_ids"`
}

func (a *RelayApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Printf("json encode: %v", err)
	}
}

func (a *RelayApp) startRoom(w http.ResponseWriter, r *http.Request) {
	viewer, ok := ViewerFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req StartRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Title == "" {
		req.Title = viewer.DisplayName + "'s live"
	}

	room, err := a.relay.StartRoom(viewer.Id, req.Title, req.Description)
	if err != nil {
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// the access token stays in this owner-only response
	a.writeJson(w, http.StatusCreated, room)
}

func (a *RelayApp) stopRoom(w http.ResponseWriter, r *http.Request) {
	viewer, ok := ViewerFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	stopped := a.relay.StopRoom(viewer.Id)
	if stopped == nil {
		stopped = []string{}
	}

	a.writeJson(w, http.StatusOK, StopRoomResponse{StoppedRoomIds: stopped})
}

func (a *RelayApp) listLive(w http.ResponseWriter, r *http.Request) {
	rooms := a.relay.ListLive()

	public := make([]types.LiveRoom, 0, len(rooms))
	for _, room := range rooms {
		room.AccessToken = ""
		public = append(public, room)
	}

	a.writeJson(w, http.StatusOK, public)
}

// serveWs upgrades the connection and hands it to the relay. Identity is
// optional here: a missing or unreadable token means an anonymous viewer.
func (a *RelayApp) serveWs(w http.ResponseWriter, r *http.Request) {
	viewer := types.Viewer{DisplayName: r.URL.Query().Get("name")}
	if tokenCookie, err := r.Cookie(tokenCookieKey); err == nil {
		if v, err := a.verifyToken(tokenCookie.Value); err == nil {
			viewer = v
		} else {
			a.log.Printf("ignoring bad viewer token: %v", err)
		}
	}

	if viewer.DisplayName == "" {
		viewer.DisplayName = "anonymous"
	}

	announcements := r.URL.Query().Get("announcements") != "off"

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Printf("ws upgrade: %v", err)
		return
	}

	a.relay.HandleConnection(conn, viewer, announcements)
}
