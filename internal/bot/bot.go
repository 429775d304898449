package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/UKPLab/aacl2022-TexPrax/internal/classifier"
	"github.com/UKPLab/aacl2022-TexPrax/internal/config"
	"github.com/UKPLab/aacl2022-TexPrax/internal/ledger"
	"github.com/UKPLab/aacl2022-TexPrax/internal/metrics"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
	"github.com/UKPLab/aacl2022-TexPrax/internal/tracking"
)

// Bot holds the per-session dependencies every handler needs. It keeps no
// conversation state of its own; rooms, messages and the ledger live in the
// repository. Handlers are not safe for concurrent use and are driven by Loop.
type Bot struct {
	cfg        *config.Config
	repo       repository.Repository
	gateway    chat.Gateway
	classifier classifier.Classifier
	sync       *tracking.Synchronizer
	guard      *ledger.Guard
	now        func() time.Time
	botUserID  string
}

func NewBot(cfg *config.Config, repo repository.Repository, l ledger.Ledger, gw chat.Gateway, clf classifier.Classifier, svc tracking.Service) *Bot {
	return &Bot{
		cfg:        cfg,
		repo:       repo,
		gateway:    gw,
		classifier: clf,
		sync:       tracking.NewSynchronizer(repo, svc),
		guard:      ledger.NewGuard(l),
		now:        time.Now,
	}
}

func (b *Bot) SetBotUserID(userID string) {
	b.botUserID = userID
}

// lookupRoom returns the room an event belongs to, or false when the event
// must be dropped because the room is unknown or the event predates the join.
func (b *Bot) lookupRoom(ctx context.Context, kind, roomID string, eventTime time.Time) (*repository.Room, bool) {
	room, err := b.repo.GetRoom(ctx, roomID)
	if err != nil {
		slog.Error("failed to load room", "error", err, "room_id", roomID, "kind", kind)
		metrics.RecordEvent(kind, "store_error")
		return nil, false
	}
	if room == nil {
		slog.Debug("ignoring event for unknown room", "room_id", roomID, "kind", kind)
		metrics.RecordEvent(kind, "unknown_room")
		return nil, false
	}
	if shouldIgnore(room, eventTime) {
		slog.Debug("ignoring event from before join", "room_id", roomID, "kind", kind, "event_time", eventTime, "joined_at", room.JoinedAt)
		metrics.RecordEvent(kind, "stale")
		return nil, false
	}
	return room, true
}

func shouldIgnore(room *repository.Room, eventTime time.Time) bool {
	return eventTime.Before(room.JoinedAt)
}

func (b *Bot) stripCommandPrefix(text string) string {
	if b.cfg.CommandPrefix == "" {
		return text
	}
	return strings.TrimPrefix(text, b.cfg.CommandPrefix)
}

// say sends text to a room; delivery failures are logged, never returned.
func (b *Bot) say(ctx context.Context, roomID, text string) string {
	id, err := b.gateway.SendText(ctx, roomID, text)
	if err != nil {
		slog.Error("failed to send message", "error", err, "room_id", roomID)
		return ""
	}
	return id
}

func (b *Bot) attachAffordances(ctx context.Context, roomID, messageID string, symbols []string) {
	if messageID == "" {
		return
	}
	for _, symbol := range symbols {
		if err := b.gateway.React(ctx, roomID, messageID, symbol); err != nil {
			slog.Warn("failed to attach reaction", "error", err, "room_id", roomID, "message_id", messageID, "symbol", symbol)
		}
	}
}
