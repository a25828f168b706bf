package relay

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sekmet/corefans-relay/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 256
)

// Session is one live connection from one viewer. It owns no shared state:
// everything it touches beyond its own connection lives in the registry.
type Session struct {
	conn          *websocket.Conn
	relay         *RelayServer
	log           *log.Logger
	viewer        types.Viewer
	announcements bool
	send          chan *Event
	rooms         map[string]struct{}
	roomsLock     sync.RWMutex
	stop          chan struct{}
	stopOnce      sync.Once
}

func NewSession(viewer types.Viewer, conn *websocket.Conn, rs *RelayServer, l *log.Logger, announcements bool) *Session {
	return &Session{
		conn:          conn,
		relay:         rs,
		log:           l,
		viewer:        viewer,
		announcements: announcements,
		send:          make(chan *Event, sendBufferSize),
		rooms:         make(map[string]struct{}),
		stop:          make(chan struct{}),
	}
}

func (c *Session) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Session) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Println("error parsing frame:", err)
			c.queueEvent(ErrEventInvalidFrame())
			continue
		}

		c.handleFrame(&ev)
	}
}

// handleFrame applies one inbound frame. A frame against a room the session
// has not joined is dropped without a reply; only join failures are
// reported back, and only to this session.
func (c *Session) handleFrame(ev *Event) {
	switch ev.Type {
	case EventJoin:
		if ev.RoomId == "" {
			c.queueEvent(ErrEventInvalidFrame())
			return
		}

		if _, err := c.relay.registry.Join(ev.RoomId, c); err != nil {
			c.queueEvent(ErrEventRoomNotLive(ev.RoomId))
		}
	case EventLeave:
		if ev.RoomId == "" {
			c.queueEvent(ErrEventInvalidFrame())
			return
		}

		c.relay.registry.Leave(ev.RoomId, c)
	case EventChat:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return
		}

		c.relay.registry.Chat(ev.RoomId, c, text)
	case EventTip:
		if ev.Amount <= 0 {
			return
		}

		c.relay.registry.Tip(ev.RoomId, c, ev.Amount, ev.Message)
	case EventTyping:
		c.relay.registry.Typing(ev.RoomId, c, ev.IsTyping)
	case EventMute:
		if !c.relay.registry.SetMuted(ev.RoomId, c, ev.User, true) {
			c.log.Printf("mute of %q in %q refused", ev.User, ev.RoomId)
		}
	case EventUnmute:
		c.relay.registry.SetMuted(ev.RoomId, c, ev.User, false)
	default:
		c.log.Printf("ignoring frame with unknown type %q", ev.Type)
	}
}

func (c *Session) queueEvent(ev *Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *Session) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Session) stopSession() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Session) cleanup() {
	c.relay.dropSession(c)
	c.stopSession()
}

func (c *Session) addRoom(id string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()
	c.rooms[id] = struct{}{}
}

func (c *Session) delRoom(id string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()
	delete(c.rooms, id)
}

func (c *Session) roomIds() []string {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	ids := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

func (c *Session) clearRooms() {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()
	c.rooms = make(map[string]struct{})
}
