package chat

import (
	"context"
	"time"
)

// Affordance symbols the bot attaches to its own messages. Gateways map them
// to whatever their platform can display and map reactions back.
const (
	SymbolStay   = "✔️"
	SymbolLeave  = "❌"
	SymbolAccept = "Yes"
)

type InviteEvent struct {
	RoomID   string
	SenderID string
}

type MessageEvent struct {
	RoomID     string
	EventID    string
	SenderID   string
	Text       string
	ServerTime time.Time
}

type ReactionEvent struct {
	RoomID        string
	EventID       string
	TargetEventID string
	SenderID      string
	Symbol        string
	ServerTime    time.Time
}

type Gateway interface {
	Connect(ctx context.Context) error
	Close() error
	BotUserID() string
	SendText(ctx context.Context, roomID, text string) (string, error)
	React(ctx context.Context, roomID, messageID, symbol string) error
	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context, roomID string) error
	// EventSender returns the user that sent eventID in roomID.
	EventSender(ctx context.Context, roomID, eventID string) (string, error)
	RegisterInviteHandler(handler func(InviteEvent))
	RegisterMessageHandler(handler func(MessageEvent))
	RegisterReactionHandler(handler func(ReactionEvent))
	// Run delivers events to the registered handlers until ctx is done.
	Run(ctx context.Context) error
}
