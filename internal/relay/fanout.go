package relay

import (
	"log"
	"sync"

	"github.com/sekmet/corefans-relay/internal/stats"
)

// Fanout owns the set of connected sessions and performs best-effort
// delivery. A send to a session whose buffer is full is dropped and
// counted, never retried.
type Fanout struct {
	sessions     map[*Session]struct{}
	sessionsLock sync.RWMutex
	log          *log.Logger
	stats        stats.StatsProvider
}

func NewFanout(logger *log.Logger, st stats.StatsProvider) *Fanout {
	return &Fanout{
		sessions: make(map[*Session]struct{}),
		log:      logger,
		stats:    st,
	}
}

func (f *Fanout) Register(s *Session) {
	f.sessionsLock.Lock()
	defer f.sessionsLock.Unlock()
	f.sessions[s] = struct{}{}
}

func (f *Fanout) Deregister(s *Session) {
	f.sessionsLock.Lock()
	defer f.sessionsLock.Unlock()
	delete(f.sessions, s)
}

func (f *Fanout) Len() int {
	f.sessionsLock.RLock()
	defer f.sessionsLock.RUnlock()
	return len(f.sessions)
}

// Deliver queues ev on every member except skip.
func (f *Fanout) Deliver(members map[*Session]struct{}, skip *Session, ev *Event) {
	for s := range members {
		if s == skip {
			continue
		}

		if s.queueEvent(ev) {
			f.stats.Incr(stats.EventsDelivered)
		} else {
			f.log.Printf("dropping %s event for %q, send buffer full", ev.Type, s.viewer.DisplayName)
			f.stats.Incr(stats.EventsDropped)
		}
	}
}

// Global queues ev on every connected session that has not opted out of
// announcements.
func (f *Fanout) Global(ev *Event) {
	f.sessionsLock.RLock()
	defer f.sessionsLock.RUnlock()

	for s := range f.sessions {
		if !s.announcements {
			continue
		}

		if s.queueEvent(ev) {
			f.stats.Incr(stats.EventsDelivered)
		} else {
			f.stats.Incr(stats.EventsDropped)
		}
	}
}

// CloseAll signals every session to stop. Used at shutdown; cleanup of
// membership happens through each session's normal disconnect path.
func (f *Fanout) CloseAll() {
	f.sessionsLock.RLock()
	defer f.sessionsLock.RUnlock()

	for s := range f.sessions {
		s.stopSession()
	}
}
