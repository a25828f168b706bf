package history

import (
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sekmet/corefans-relay/internal/relay"
	"github.com/sekmet/corefans-relay/internal/types"
)

const (
	DefaultChatCap = 200
	DefaultTipCap  = 50
)

// Log keeps a bounded per-room history. Chat and system lines are stored
// oldest first with the oldest evicted at the cap; tips are stored newest
// first so the most recent tips survive. Writes to the backing store are
// best effort and never fail an append.
type Log struct {
	mu      sync.Mutex
	chatCap int
	tipCap  int
	chats   map[string][]types.HistoryRecord
	tips    map[string][]types.HistoryRecord
	store   *Store
	log     *log.Logger
}

// NewLog creates a history log. store may be nil for a purely in-memory
// log.
func NewLog(chatCap, tipCap int, store *Store, logger *log.Logger) *Log {
	if chatCap <= 0 {
		chatCap = DefaultChatCap
	}
	if tipCap <= 0 {
		tipCap = DefaultTipCap
	}

	return &Log{
		chatCap: chatCap,
		tipCap:  tipCap,
		chats:   make(map[string][]types.HistoryRecord),
		tips:    make(map[string][]types.HistoryRecord),
		store:   store,
		log:     logger,
	}
}

// RecordFromEvent converts a relay event into a history record. Events that
// carry no history (counts, presence, errors) return false.
func RecordFromEvent(ev relay.Event) (types.HistoryRecord, bool) {
	rec := types.HistoryRecord{
		User:      ev.User,
		Timestamp: ev.Timestamp,
	}

	switch ev.Type {
	case relay.EventChat:
		rec.Kind = types.HistoryChat
		rec.Text = ev.Text
	case relay.EventTip:
		rec.Kind = types.HistoryTip
		rec.Amount = ev.Amount
		rec.Text = ev.Message
	case relay.EventSystem:
		rec.Kind = types.HistorySystem
		rec.Text = ev.Text
	default:
		return types.HistoryRecord{}, false
	}

	return rec, true
}

func (l *Log) Append(roomId string, rec types.HistoryRecord) types.HistoryRecord {
	if rec.Id == "" {
		rec.Id = ulid.Make().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	l.insert(roomId, rec)
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.Save(roomId, rec); err != nil {
			l.log.Printf("history save: %v", err)
		}
	}

	return rec
}

func (l *Log) insert(roomId string, rec types.HistoryRecord) {
	if rec.Kind == types.HistoryTip {
		tips := append([]types.HistoryRecord{rec}, l.tips[roomId]...)
		if len(tips) > l.tipCap {
			tips = tips[:l.tipCap]
		}
		l.tips[roomId] = tips
		return
	}

	chats := append(l.chats[roomId], rec)
	if len(chats) > l.chatCap {
		chats = chats[len(chats)-l.chatCap:]
	}
	l.chats[roomId] = chats
}

// Load returns up to limit of the most recent chat and system lines,
// oldest first. limit <= 0 means everything retained.
func (l *Log) Load(roomId string, limit int) []types.HistoryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	chats := l.chats[roomId]
	if limit > 0 && len(chats) > limit {
		chats = chats[len(chats)-limit:]
	}

	out := make([]types.HistoryRecord, len(chats))
	copy(out, chats)
	return out
}

// LoadTips returns up to limit tips, newest first.
func (l *Log) LoadTips(roomId string, limit int) []types.HistoryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	tips := l.tips[roomId]
	if limit > 0 && len(tips) > limit {
		tips = tips[:limit]
	}

	out := make([]types.HistoryRecord, len(tips))
	copy(out, tips)
	return out
}

// Clear drops a room's history from memory and from the store.
func (l *Log) Clear(roomId string) {
	l.mu.Lock()
	delete(l.chats, roomId)
	delete(l.tips, roomId)
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.DeleteRoom(roomId); err != nil {
			l.log.Printf("history delete: %v", err)
		}
	}
}

// Restore loads a room's persisted history back into memory, applying the
// same caps as live appends.
func (l *Log) Restore(roomId string) error {
	if l.store == nil {
		return nil
	}

	records, err := l.store.Load(roomId)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.chats, roomId)
	delete(l.tips, roomId)
	for _, rec := range records {
		l.insert(roomId, rec)
	}

	return nil
}
