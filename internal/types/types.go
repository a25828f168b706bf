package types

import (
	"time"
)

// Viewer is the identity the relay is handed after external verification.
// An empty Id means the connection is anonymous.
type Viewer struct {
	Id          string `json:"id,omitempty"`
	DisplayName string `json:"display_name"`
}

func (v Viewer) Anonymous() bool {
	return v.Id == ""
}

type LiveRoom struct {
	Id          string     `json:"id"`
	OwnerId     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	IsLive      bool       `json:"is_live"`
	ViewerCount int        `json:"viewer_count"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	// AccessToken correlates an external encoder with this room. The relay
	// only passes it through to the owner.
	AccessToken string `json:"access_token,omitempty"`
}

type HistoryKind string

const (
	HistoryChat   HistoryKind = "chat"
	HistoryTip    HistoryKind = "tip"
	HistorySystem HistoryKind = "system"
)

type HistoryRecord struct {
	Id        string      `json:"id"`
	User      string      `json:"user"`
	Text      string      `json:"text"`
	Kind      HistoryKind `json:"kind"`
	Amount    float64     `json:"amount,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
