package client

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sekmet/corefans-relay/internal/relay"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusError      Status = "error"
	StatusClosing    Status = "closing"
	StatusClosed     Status = "closed"
)

// Protocol selects the wire shape of the endpoint. It is explicit
// configuration; the channel never guesses from the URL.
type Protocol string

const (
	ProtocolRelay Protocol = "relay"
	// ProtocolEcho speaks the flat {user, message} shape of the old demo
	// endpoints.
	ProtocolEcho Protocol = "echo"
)

const (
	defaultBaseDelay    = 500 * time.Millisecond
	defaultMaxDelay     = 30 * time.Second
	defaultGrowthFactor = 2.0
	defaultMaxRetries   = 10
	defaultTypingQuiet  = 2 * time.Second
	defaultWriteWait    = 10 * time.Second
	eventBufferSize     = 256
	statusBufferSize    = 16
)

type Config struct {
	URL          string
	RoomId       string
	DisplayName  string
	Protocol     Protocol
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	GrowthFactor float64
	MaxRetries   int
	TypingQuiet  time.Duration
}

// echoFrame is the inbound/outbound shape of the legacy demo endpoints.
type echoFrame struct {
	User    string `json:"user,omitempty"`
	Message string `json:"message"`
}

// Channel wraps one outbound connection with reconnection, protocol
// normalization and typing debounce. Sends while not open are dropped
// silently; callers watch Statuses instead of checking errors per call.
type Channel struct {
	cfg    Config
	log    *log.Logger
	dialer *websocket.Dialer

	mu           sync.Mutex
	status       Status
	conn         *websocket.Conn
	retries      int
	manual       bool
	typingActive bool
	typingTimer  *time.Timer

	events   chan relay.Event
	statuses chan Status
	closing  chan struct{}
	done     chan struct{}

	connectOnce sync.Once
	closeOnce   sync.Once
}

func NewChannel(cfg Config, logger *log.Logger) (*Channel, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}
	if cfg.Protocol == "" {
		cfg.Protocol = ProtocolRelay
	}
	if cfg.Protocol == ProtocolRelay && cfg.RoomId == "" {
		return nil, fmt.Errorf("room id cannot be empty")
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.GrowthFactor < 1 {
		cfg.GrowthFactor = defaultGrowthFactor
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.TypingQuiet <= 0 {
		cfg.TypingQuiet = defaultTypingQuiet
	}

	return &Channel{
		cfg:      cfg,
		log:      logger,
		dialer:   websocket.DefaultDialer,
		status:   StatusIdle,
		events:   make(chan relay.Event, eventBufferSize),
		statuses: make(chan Status, statusBufferSize),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Connect starts the connection loop. Safe to call once; later calls are
// no-ops.
func (ch *Channel) Connect() {
	ch.connectOnce.Do(func() {
		go ch.run()
	})
}

// Events delivers normalized inbound events. The buffer is bounded; a
// consumer that stops reading loses events, mirroring the server's
// best-effort delivery.
func (ch *Channel) Events() <-chan relay.Event {
	return ch.events
}

// Statuses delivers state-machine transitions.
func (ch *Channel) Statuses() <-chan Status {
	return ch.statuses
}

func (ch *Channel) Status() Status {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.status
}

// Done is closed when the channel gives up for good: manual close or
// retries exhausted.
func (ch *Channel) Done() <-chan struct{} {
	return ch.done
}

func (ch *Channel) run() {
	defer close(ch.done)

	for {
		ch.setStatus(StatusConnecting)

		conn, _, err := ch.dialer.Dial(ch.cfg.URL, nil)
		if err != nil {
			ch.log.Printf("dial %s: %v", ch.cfg.URL, err)
			ch.setStatus(StatusError)
			ch.setStatus(StatusClosed)
			if !ch.waitRetry() {
				return
			}
			continue
		}

		ch.mu.Lock()
		ch.conn = conn
		ch.retries = 0
		ch.mu.Unlock()

		ch.setStatus(StatusOpen)
		ch.hello()

		ch.readLoop(conn)

		ch.mu.Lock()
		ch.conn = nil
		manual := ch.manual
		ch.mu.Unlock()

		if manual {
			ch.setStatus(StatusClosed)
			return
		}

		ch.setStatus(StatusClosed)
		if !ch.waitRetry() {
			return
		}
	}
}

// hello announces the channel to the endpoint right after open: a join for
// the relay, a greeting for the demo shape.
func (ch *Channel) hello() {
	switch ch.cfg.Protocol {
	case ProtocolEcho:
		ch.send(echoFrame{User: ch.cfg.DisplayName, Message: "hello"})
	default:
		ch.send(relay.Event{Type: relay.EventJoin, RoomId: ch.cfg.RoomId})
	}
}

func (ch *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		ev, ok := ch.normalize(raw)
		if !ok {
			continue
		}

		// events for other rooms are discarded at this boundary
		if ev.RoomId != "" && ch.cfg.RoomId != "" && ev.RoomId != ch.cfg.RoomId {
			continue
		}

		select {
		case ch.events <- ev:
		default:
			ch.log.Println("event buffer full, dropping event")
		}
	}
}

// normalize folds the endpoint's wire shape into the single event union.
// Unknown shapes are ignored, not errors.
func (ch *Channel) normalize(raw []byte) (relay.Event, bool) {
	var ev relay.Event
	if err := json.Unmarshal(raw, &ev); err == nil {
		switch ev.Type {
		case relay.EventChat, relay.EventTip, relay.EventViewerCount,
			relay.EventSystem, relay.EventTyping, relay.EventPresence,
			relay.EventRoomStarted, relay.EventRoomEnded, relay.EventError:
			return ev, true
		}
	}

	var echo echoFrame
	if err := json.Unmarshal(raw, &echo); err == nil && echo.Message != "" {
		return relay.Event{
			Type:      relay.EventChat,
			RoomId:    ch.cfg.RoomId,
			User:      echo.User,
			Text:      echo.Message,
			Timestamp: relay.Now(),
		}, true
	}

	return relay.Event{}, false
}

// waitRetry blocks for the backoff delay before the next attempt. Returns
// false when retries are exhausted or the channel was closed manually.
func (ch *Channel) waitRetry() bool {
	ch.mu.Lock()
	if ch.manual || ch.retries >= ch.cfg.MaxRetries {
		ch.mu.Unlock()
		return false
	}

	delay := ch.nextDelay(ch.retries)
	ch.retries++
	ch.mu.Unlock()

	select {
	case <-time.After(delay):
		return true
	case <-ch.closing:
		return false
	}
}

// nextDelay computes the backoff before attempt retry+1, capped at
// MaxDelay.
func (ch *Channel) nextDelay(retry int) time.Duration {
	d := time.Duration(float64(ch.cfg.BaseDelay) * math.Pow(ch.cfg.GrowthFactor, float64(retry)))
	if d <= 0 || d > ch.cfg.MaxDelay {
		return ch.cfg.MaxDelay
	}
	return d
}

// send writes v if the channel is open, silently dropping it otherwise.
func (ch *Channel) send(v interface{}) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.sendLocked(v)
}

func (ch *Channel) sendLocked(v interface{}) {
	if ch.status != StatusOpen || ch.conn == nil {
		return
	}

	ch.conn.SetWriteDeadline(time.Now().Add(defaultWriteWait))
	if err := ch.conn.WriteJSON(v); err != nil {
		ch.log.Printf("write: %v", err)
	}
}

func (ch *Channel) Send(ev relay.Event) {
	ch.send(ev)
}

// SendChat clears any pending typing indicator first, then sends the chat
// line in the endpoint's shape.
func (ch *Channel) SendChat(text string) {
	ch.mu.Lock()
	if ch.typingActive {
		ch.typingActive = false
		if ch.typingTimer != nil {
			ch.typingTimer.Stop()
		}
		ch.sendLocked(relay.Event{Type: relay.EventTyping, RoomId: ch.cfg.RoomId, IsTyping: false})
	}

	if ch.cfg.Protocol == ProtocolEcho {
		ch.sendLocked(echoFrame{User: ch.cfg.DisplayName, Message: text})
	} else {
		ch.sendLocked(relay.Event{Type: relay.EventChat, RoomId: ch.cfg.RoomId, Text: text})
	}
	ch.mu.Unlock()
}

func (ch *Channel) SendTip(amount float64, message string) {
	ch.send(relay.Event{Type: relay.EventTip, RoomId: ch.cfg.RoomId, Amount: amount, Message: message})
}

func (ch *Channel) SendTyping(isTyping bool) {
	ch.send(relay.Event{Type: relay.EventTyping, RoomId: ch.cfg.RoomId, IsTyping: isTyping})
}

// InputChanged debounces the typing indicator: one "typing" per burst of
// input, an automatic "stopped typing" after the quiet interval.
func (ch *Channel) InputChanged() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if !ch.typingActive {
		ch.typingActive = true
		ch.sendLocked(relay.Event{Type: relay.EventTyping, RoomId: ch.cfg.RoomId, IsTyping: true})
	}

	if ch.typingTimer != nil {
		ch.typingTimer.Stop()
	}
	ch.typingTimer = time.AfterFunc(ch.cfg.TypingQuiet, ch.typingQuiet)
}

func (ch *Channel) typingQuiet() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if !ch.typingActive {
		return
	}

	ch.typingActive = false
	ch.sendLocked(relay.Event{Type: relay.EventTyping, RoomId: ch.cfg.RoomId, IsTyping: false})
}

// Close tears the channel down for good. A best-effort leave goes out
// first; the server does not depend on receiving it.
func (ch *Channel) Close() {
	ch.closeOnce.Do(func() {
		ch.mu.Lock()
		ch.manual = true
		if ch.status == StatusOpen && ch.conn != nil {
			ch.status = StatusClosing
			ch.publishStatus(StatusClosing)
			if ch.cfg.Protocol != ProtocolEcho {
				ch.conn.SetWriteDeadline(time.Now().Add(defaultWriteWait))
				if err := ch.conn.WriteJSON(relay.Event{Type: relay.EventLeave, RoomId: ch.cfg.RoomId}); err != nil {
					ch.log.Printf("write leave: %v", err)
				}
			}
		}
		if ch.typingTimer != nil {
			ch.typingTimer.Stop()
		}
		conn := ch.conn
		ch.mu.Unlock()

		close(ch.closing)
		if conn != nil {
			conn.Close()
		}
	})
}

func (ch *Channel) setStatus(s Status) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.status == s {
		return
	}

	ch.status = s
	ch.publishStatus(s)
}

func (ch *Channel) publishStatus(s Status) {
	select {
	case ch.statuses <- s:
	default:
	}
}
