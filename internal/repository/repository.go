package repository

import (
	"context"
	"errors"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
	"github.com/UKPLab/aacl2022-TexPrax/internal/ledger"
)

var ErrNoMessage = errors.New("room has no recorded message")

type InsertMessageInput struct {
	RoomID     string
	Text       string
	SenderID   string
	ServerTime time.Time
	Category   category.Category
	Spans      []Span
}

type RoomRepository interface {
	// CreateRoom reports false when the room already exists; JoinedAt is never overwritten.
	CreateRoom(ctx context.Context, roomID string, joinedAt time.Time) (bool, error)
	GetRoom(ctx context.Context, roomID string) (*Room, error)
	SetRoomRecording(ctx context.Context, roomID string, recording bool) error
	DeleteRoom(ctx context.Context, roomID string) error
	ListUnconfirmedRooms(ctx context.Context, joinedBefore time.Time) ([]Room, error)
}

type MessageRepository interface {
	InsertMessage(ctx context.Context, input InsertMessageInput) (*Message, error)
	GetLastMessage(ctx context.Context, roomID string) (*Message, error)
	UpdateLastMessageCategory(ctx context.Context, roomID string, c category.Category) (*Message, error)
}

// SyncStateRepository keeps gateway cursors such as the Matrix sync token
// across restarts. GetSyncState returns "" for an unknown key.
type SyncStateRepository interface {
	GetSyncState(ctx context.Context, key string) (string, error)
	SaveSyncState(ctx context.Context, key, value string) error
}

type Repository interface {
	RoomRepository
	MessageRepository
	SyncStateRepository
	ledger.Ledger
	Ping(ctx context.Context) error
	Close()
}
