package repository

import (
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
)

type Room struct {
	ID        string
	JoinedAt  time.Time
	Recording bool
}

type Span struct {
	Token string `json:"token"`
	Label string `json:"label"`
}

type Message struct {
	Seq        int64
	RoomID     string
	Text       string
	SenderID   string
	ServerTime time.Time
	Category   category.Category
	Spans      []Span
	CreatedAt  time.Time
}

type LedgerEntry struct {
	EventID   string
	Handled   bool
	HandledAt time.Time
}
