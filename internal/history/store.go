package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sekmet/corefans-relay/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id TEXT PRIMARY KEY,
	room_id TEXT NOT NULL,
	user TEXT NOT NULL,
	text TEXT NOT NULL,
	kind TEXT NOT NULL,
	amount REAL NOT NULL DEFAULT 0,
	ts TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_room ON history (room_id, ts);`

// Store persists history records in a local sqlite database so a viewer
// sees recent chat again after a restart.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Save(roomId string, rec types.HistoryRecord) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO history (id, room_id, user, text, kind, amount, ts) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.Id, roomId, rec.User, rec.Text, string(rec.Kind), rec.Amount, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save history record: %w", err)
	}

	return nil
}

// Load returns a room's records ordered oldest first.
func (s *Store) Load(roomId string) ([]types.HistoryRecord, error) {
	rows, err := s.db.Query(
		"SELECT id, user, text, kind, amount, ts FROM history WHERE room_id = ? ORDER BY ts ASC, id ASC",
		roomId,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var records []types.HistoryRecord
	for rows.Next() {
		var rec types.HistoryRecord
		var kind string
		if err := rows.Scan(&rec.Id, &rec.User, &rec.Text, &kind, &rec.Amount, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		rec.Kind = types.HistoryKind(kind)
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *Store) DeleteRoom(roomId string) error {
	if _, err := s.db.Exec("DELETE FROM history WHERE room_id = ?", roomId); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
