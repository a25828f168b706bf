package relay

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/sekmet/corefans-relay/internal/stats"
	"github.com/sekmet/corefans-relay/internal/types"
	"github.com/teris-io/shortid"
)

// ErrRoomNotLive is returned by Join when the room does not exist or has
// already ended. It is surfaced to the joining session only.
var ErrRoomNotLive = errors.New("room not live")

type liveRoom struct {
	info    types.LiveRoom
	members map[*Session]struct{}
	muted   map[string]struct{}
}

// Registry owns every live room and its membership. All mutation happens
// under a single mutex so a viewer-count broadcast always reflects the
// membership set at the moment of the change. Nothing under the lock blocks
// on I/O; delivery is a non-blocking buffer push.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*liveRoom
	fan   *Fanout
	log   *log.Logger
	stats stats.StatsProvider
}

func NewRegistry(fan *Fanout, logger *log.Logger, st stats.StatsProvider) *Registry {
	return &Registry{
		rooms: make(map[string]*liveRoom),
		fan:   fan,
		log:   logger,
		stats: st,
	}
}

// StartRoom allocates a fresh room for ownerId and announces it globally.
// Repeated calls create distinct rooms.
func (reg *Registry) StartRoom(ownerId, title, description string) (types.LiveRoom, error) {
	if ownerId == "" {
		return types.LiveRoom{}, fmt.Errorf("owner id cannot be empty")
	}

	id, err := shortid.Generate()
	if err != nil {
		return types.LiveRoom{}, fmt.Errorf("generate room id: %w", err)
	}

	room := &liveRoom{
		info: types.LiveRoom{
			Id:          id,
			OwnerId:     ownerId,
			Title:       title,
			Description: description,
			IsLive:      true,
			StartedAt:   Now(),
			AccessToken: uuid.NewString(),
		},
		members: make(map[*Session]struct{}),
		muted:   make(map[string]struct{}),
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.rooms[id] = room
	reg.stats.Incr(stats.ActiveRooms)
	reg.log.Printf("room %q started by %q", id, ownerId)

	reg.fan.Global(NewRoomStarted(room.info))

	return room.info, nil
}

// StopRoom ends every live room owned by ownerId, announcing the end to
// each room's members and globally before clearing membership. Returns the
// stopped room ids; an owner with no live rooms gets an empty result.
func (reg *Registry) StopRoom(ownerId string) []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var stopped []string
	for id, room := range reg.rooms {
		if room.info.OwnerId != ownerId || !room.info.IsLive {
			continue
		}

		ended := NewRoomEnded(id)
		reg.fan.Deliver(room.members, nil, ended)
		reg.fan.Global(ended)

		for s := range room.members {
			s.delRoom(id)
		}

		now := Now()
		room.info.IsLive = false
		room.info.EndedAt = &now
		room.info.ViewerCount = 0
		room.members = make(map[*Session]struct{})

		delete(reg.rooms, id)
		reg.stats.Decr(stats.ActiveRooms)
		reg.log.Printf("room %q ended", id)

		stopped = append(stopped, id)
	}

	return stopped
}

// ListLive returns a snapshot of all live rooms.
func (reg *Registry) ListLive() []types.LiveRoom {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rooms := make([]types.LiveRoom, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		if room.info.IsLive {
			rooms = append(rooms, room.info)
		}
	}

	return rooms
}

// Join adds s to the room. Re-joining is a no-op that returns the current
// count without broadcasting. The updated count is broadcast to the whole
// room under the same lock acquisition as the mutation.
func (reg *Registry) Join(roomId string, s *Session) (int, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[roomId]
	if !ok || !room.info.IsLive {
		return 0, ErrRoomNotLive
	}

	if _, ok := room.members[s]; ok {
		return room.info.ViewerCount, nil
	}

	room.members[s] = struct{}{}
	s.addRoom(roomId)
	room.info.ViewerCount = len(room.members)

	reg.fan.Deliver(room.members, nil, NewViewerCount(roomId, room.info.ViewerCount))

	// presence snapshot goes to the joiner only
	users := make([]string, 0, len(room.members))
	for m := range room.members {
		users = append(users, m.viewer.DisplayName)
	}
	s.queueEvent(NewPresence(roomId, users))

	return room.info.ViewerCount, nil
}

// Leave removes s from the room if present. Always succeeds, including for
// rooms that have already been stopped.
func (reg *Registry) Leave(roomId string, s *Session) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[roomId]
	if !ok {
		s.delRoom(roomId)
		return 0
	}

	if _, ok := room.members[s]; ok {
		delete(room.members, s)
		s.delRoom(roomId)
		room.info.ViewerCount = len(room.members)
		reg.fan.Deliver(room.members, nil, NewViewerCount(roomId, room.info.ViewerCount))
	}

	return room.info.ViewerCount
}

// DropSession removes s from every room it had joined, broadcasting one
// viewer-count update per affected room. This is the only cleanup path on
// disconnect.
func (reg *Registry) DropSession(s *Session) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, roomId := range s.roomIds() {
		room, ok := reg.rooms[roomId]
		if !ok {
			continue
		}

		if _, ok := room.members[s]; !ok {
			continue
		}

		delete(room.members, s)
		room.info.ViewerCount = len(room.members)
		reg.fan.Deliver(room.members, nil, NewViewerCount(roomId, room.info.ViewerCount))
	}

	s.clearRooms()
}

// Chat fans a chat message out to the room. Non-members and muted users are
// dropped silently.
func (reg *Registry) Chat(roomId string, s *Session, text string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[roomId]
	if !ok || !room.info.IsLive {
		return
	}

	if _, ok := room.members[s]; !ok {
		return
	}

	if _, muted := room.muted[s.viewer.Id]; muted && s.viewer.Id != "" {
		return
	}

	reg.fan.Deliver(room.members, nil, NewChat(roomId, s.viewer.DisplayName, text))
}

// Tip announces a tip to the room. The payment itself has already settled
// elsewhere; the relay only spreads the news.
func (reg *Registry) Tip(roomId string, s *Session, amount float64, message string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[roomId]
	if !ok || !room.info.IsLive {
		return
	}

	if _, ok := room.members[s]; !ok {
		return
	}

	reg.fan.Deliver(room.members, nil, NewTip(roomId, s.viewer.DisplayName, amount, message))
}

// Typing relays a typing indicator to everyone in the room except the
// sender.
func (reg *Registry) Typing(roomId string, s *Session, isTyping bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[roomId]
	if !ok || !room.info.IsLive {
		return
	}

	if _, ok := room.members[s]; !ok {
		return
	}

	reg.fan.Deliver(room.members, s, NewTyping(roomId, s.viewer.DisplayName, isTyping))
}

// SetMuted updates the room's muted set. Only the room owner may mute, and
// only identified viewers can be muted.
func (reg *Registry) SetMuted(roomId string, s *Session, userId string, muted bool) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[roomId]
	if !ok || !room.info.IsLive {
		return false
	}

	if s.viewer.Id == "" || s.viewer.Id != room.info.OwnerId || userId == "" {
		return false
	}

	if muted {
		room.muted[userId] = struct{}{}
	} else {
		delete(room.muted, userId)
	}

	return true
}
