package relay

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/sekmet/corefans-relay/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestNewViewerCount(t *testing.T) {
	ev := NewViewerCount("room1", 0)
	assert.Equal(t, EventViewerCount, ev.Type)
	assert.Equal(t, "room1", ev.RoomId)
	assert.WithinDuration(t, Now(), ev.Timestamp, time.Second)

	// a zero count must still appear on the wire
	raw, err := json.Marshal(ev)
	assert.NoError(t, err)
	assert.Contains(t, string(raw), `"count":0`, "expected zero count serialized")
}

func TestNewChat(t *testing.T) {
	ev := NewChat("room1", "alice", "hello")
	assert.Equal(t, EventChat, ev.Type)
	assert.Equal(t, "alice", ev.User)
	assert.Equal(t, "hello", ev.Text)
	assert.WithinDuration(t, Now(), ev.Timestamp, time.Second)
}

func TestNewTip(t *testing.T) {
	ev := NewTip("room1", "bob", 9.5, "nice")
	assert.Equal(t, EventTip, ev.Type)
	assert.Equal(t, 9.5, ev.Amount)
	assert.Equal(t, "nice", ev.Message)
}

func TestNewRoomStarted_stripsAccessToken(t *testing.T) {
	ev := NewRoomStarted(types.LiveRoom{
		Id:          "room1",
		OwnerId:     "owner1",
		Title:       "stream",
		IsLive:      true,
		AccessToken: "secret-token",
	})

	assert.Equal(t, EventRoomStarted, ev.Type)
	assert.Equal(t, "room1", ev.RoomId)
	assert.NotNil(t, ev.Room)
	assert.Empty(t, ev.Room.AccessToken, "expected token stripped before broadcast")
}

func TestErrEvents(t *testing.T) {
	ev := ErrEventRoomNotLive("room1")
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, http.StatusNotFound, ev.Code)
	assert.Equal(t, "room1", ev.RoomId)

	ev = ErrEventInvalidFrame()
	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, http.StatusBadRequest, ev.Code)
}

func TestEvent_unknownFieldsIgnoredOnDecode(t *testing.T) {
	var ev Event
	err := json.Unmarshal([]byte(`{"type":"chat","roomId":"r1","text":"hi","totally_new_field":42}`), &ev)
	assert.NoError(t, err, "expected decode to tolerate unknown fields")
	assert.Equal(t, EventChat, ev.Type)
	assert.Equal(t, "hi", ev.Text)
}
