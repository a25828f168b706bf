package relay

import (
	"net/http"
	"time"

	"github.com/sekmet/corefans-relay/internal/types"
)

type EventType string

// Inbound frame types.
const (
	EventJoin   EventType = "join"
	EventLeave  EventType = "leave"
	EventChat   EventType = "chat"
	EventTip    EventType = "tip"
	EventTyping EventType = "typing"
	EventMute   EventType = "mute"
	EventUnmute EventType = "unmute"
)

// Outbound event types.
const (
	EventViewerCount EventType = "viewerCount"
	EventRoomStarted EventType = "roomStarted"
	EventRoomEnded   EventType = "roomEnded"
	EventSystem      EventType = "system"
	EventPresence    EventType = "presence"
	EventError       EventType = "error"
)

// Event is the single wire shape for both directions. The Type tag decides
// which fields are meaningful; everything else stays zero and is omitted.
type Event struct {
	Type      EventType       `json:"type"`
	RoomId    string          `json:"roomId,omitempty"`
	User      string          `json:"user,omitempty"`
	Text      string          `json:"text,omitempty"`
	Amount    float64         `json:"amount,omitempty"`
	Message   string          `json:"message,omitempty"`
	Count     int             `json:"count"`
	IsTyping  bool            `json:"isTyping,omitempty"`
	Users     []string        `json:"users,omitempty"`
	Room      *types.LiveRoom `json:"room,omitempty"`
	Code      int             `json:"code,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewViewerCount(roomId string, count int) *Event {
	return &Event{
		Type:      EventViewerCount,
		RoomId:    roomId,
		Count:     count,
		Timestamp: Now(),
	}
}

func NewChat(roomId, user, text string) *Event {
	return &Event{
		Type:      EventChat,
		RoomId:    roomId,
		User:      user,
		Text:      text,
		Timestamp: Now(),
	}
}

func NewTip(roomId, user string, amount float64, message string) *Event {
	return &Event{
		Type:      EventTip,
		RoomId:    roomId,
		User:      user,
		Amount:    amount,
		Message:   message,
		Timestamp: Now(),
	}
}

func NewTyping(roomId, user string, isTyping bool) *Event {
	return &Event{
		Type:      EventTyping,
		RoomId:    roomId,
		User:      user,
		IsTyping:  isTyping,
		Timestamp: Now(),
	}
}

func NewSystem(roomId, text string) *Event {
	return &Event{
		Type:      EventSystem,
		RoomId:    roomId,
		Text:      text,
		Timestamp: Now(),
	}
}

func NewPresence(roomId string, users []string) *Event {
	return &Event{
		Type:      EventPresence,
		RoomId:    roomId,
		Users:     users,
		Timestamp: Now(),
	}
}

func NewRoomStarted(room types.LiveRoom) *Event {
	// access token never leaves the owner's HTTP response
	room.AccessToken = ""
	return &Event{
		Type:      EventRoomStarted,
		RoomId:    room.Id,
		Room:      &room,
		Timestamp: Now(),
	}
}

func NewRoomEnded(roomId string) *Event {
	return &Event{
		Type:      EventRoomEnded,
		RoomId:    roomId,
		Timestamp: Now(),
	}
}

func ErrEventRoomNotLive(roomId string) *Event {
	return &Event{
		Type:      EventError,
		RoomId:    roomId,
		Code:      http.StatusNotFound,
		Message:   "room not live",
		Timestamp: Now(),
	}
}

func ErrEventInvalidFrame() *Event {
	return &Event{
		Type:      EventError,
		Code:      http.StatusBadRequest,
		Message:   "invalid message format",
		Timestamp: Now(),
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
