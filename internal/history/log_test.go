package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/sekmet/corefans-relay/internal/relay"
	"github.com/sekmet/corefans-relay/internal/testutil"
	"github.com/sekmet/corefans-relay/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T, chatCap, tipCap int) *Log {
	return NewLog(chatCap, tipCap, nil, testutil.TestLogger(t))
}

func TestLog_chatEviction(t *testing.T) {
	l := newTestLog(t, 5, 5)

	for i := 0; i < 8; i++ {
		l.Append("room1", types.HistoryRecord{
			Kind: types.HistoryChat,
			User: "alice",
			Text: fmt.Sprintf("line %d", i),
		})
	}

	got := l.Load("room1", 0)
	require.Len(t, got, 5, "expected the log capped")
	assert.Equal(t, "line 3", got[0].Text, "expected the oldest lines evicted")
	assert.Equal(t, "line 7", got[4].Text, "expected order preserved oldest first")
}

func TestLog_tipsNewestFirst(t *testing.T) {
	l := newTestLog(t, 5, 3)

	for i := 0; i < 5; i++ {
		l.Append("room1", types.HistoryRecord{
			Kind:   types.HistoryTip,
			User:   "bob",
			Amount: float64(i + 1),
		})
	}

	tips := l.LoadTips("room1", 0)
	require.Len(t, tips, 3, "expected the tip list capped")
	assert.Equal(t, float64(5), tips[0].Amount, "expected the newest tip first")
	assert.Equal(t, float64(3), tips[2].Amount, "expected the oldest surviving tip last")
}

func TestLog_loadLimit(t *testing.T) {
	l := newTestLog(t, 10, 10)

	for i := 0; i < 6; i++ {
		l.Append("room1", types.HistoryRecord{Kind: types.HistoryChat, Text: fmt.Sprintf("line %d", i)})
	}

	got := l.Load("room1", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "line 4", got[0].Text, "expected the most recent lines")
	assert.Equal(t, "line 5", got[1].Text)
}

func TestLog_roomsAreIndependent(t *testing.T) {
	l := newTestLog(t, 5, 5)

	l.Append("room1", types.HistoryRecord{Kind: types.HistoryChat, Text: "one"})
	l.Append("room2", types.HistoryRecord{Kind: types.HistoryChat, Text: "two"})

	assert.Len(t, l.Load("room1", 0), 1)
	assert.Len(t, l.Load("room2", 0), 1)

	l.Clear("room1")
	assert.Empty(t, l.Load("room1", 0))
	assert.Len(t, l.Load("room2", 0), 1, "expected other rooms untouched by clear")
}

func TestLog_assignsIdsAndTimestamps(t *testing.T) {
	l := newTestLog(t, 5, 5)

	rec := l.Append("room1", types.HistoryRecord{Kind: types.HistoryChat, Text: "hi"})
	assert.NotEmpty(t, rec.Id, "expected an id assigned")
	assert.False(t, rec.Timestamp.IsZero(), "expected a timestamp assigned")

	rec2 := l.Append("room1", types.HistoryRecord{Kind: types.HistoryChat, Text: "again"})
	assert.NotEqual(t, rec.Id, rec2.Id)
}

func Test_RecordFromEvent(t *testing.T) {
	ts := time.Now().UTC()

	t.Run("chat", func(t *testing.T) {
		rec, ok := RecordFromEvent(relay.Event{Type: relay.EventChat, User: "alice", Text: "hi", Timestamp: ts})
		require.True(t, ok)
		assert.Equal(t, types.HistoryChat, rec.Kind)
		assert.Equal(t, "hi", rec.Text)
		assert.Equal(t, ts, rec.Timestamp)
	})

	t.Run("tip keeps amount and message", func(t *testing.T) {
		rec, ok := RecordFromEvent(relay.Event{Type: relay.EventTip, User: "bob", Amount: 5, Message: "gg"})
		require.True(t, ok)
		assert.Equal(t, types.HistoryTip, rec.Kind)
		assert.Equal(t, float64(5), rec.Amount)
		assert.Equal(t, "gg", rec.Text)
	})

	t.Run("system", func(t *testing.T) {
		rec, ok := RecordFromEvent(relay.Event{Type: relay.EventSystem, Text: "room ended"})
		require.True(t, ok)
		assert.Equal(t, types.HistorySystem, rec.Kind)
	})

	t.Run("non-history events are skipped", func(t *testing.T) {
		_, ok := RecordFromEvent(relay.Event{Type: relay.EventViewerCount, Count: 3})
		assert.False(t, ok)

		_, ok = RecordFromEvent(relay.Event{Type: relay.EventTyping, IsTyping: true})
		assert.False(t, ok)
	})
}
