package bot

import (
	"context"
	"log/slog"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/UKPLab/aacl2022-TexPrax/internal/metrics"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
)

type reactionAction func(ctx context.Context, room *repository.Room)

// HandleReaction acts on reactions to the bot's own greeting and prompts.
// Each target message triggers its side effect at most once; the ledger is
// keyed on the reacted-to message.
func (b *Bot) HandleReaction(ctx context.Context, event chat.ReactionEvent) {
	if event.SenderID == b.botUserID {
		metrics.RecordEvent("reaction", "own")
		return
	}
	room, ok := b.lookupRoom(ctx, "reaction", event.RoomID, event.ServerTime)
	if !ok {
		return
	}

	action, needsRecording := b.reactionActionFor(event.Symbol)
	if action == nil {
		slog.Debug("ignoring unknown reaction symbol", "room_id", room.ID, "symbol", event.Symbol)
		metrics.RecordEvent("reaction", "unknown_symbol")
		return
	}
	if needsRecording && !room.Recording {
		slog.Debug("ignoring category reaction in room without consent", "room_id", room.ID, "symbol", event.Symbol)
		metrics.RecordEvent("reaction", "not_recording")
		return
	}

	sender, err := b.gateway.EventSender(ctx, room.ID, event.TargetEventID)
	if err != nil {
		slog.Warn("failed to resolve reaction target", "error", err, "room_id", room.ID, "target_event_id", event.TargetEventID)
		metrics.RecordEvent("reaction", "target_unresolved")
		return
	}
	if sender != b.botUserID {
		slog.Debug("ignoring reaction to foreign message", "room_id", room.ID, "target_event_id", event.TargetEventID)
		metrics.RecordEvent("reaction", "foreign_target")
		return
	}

	ran, err := b.guard.Once(ctx, event.TargetEventID, func(ctx context.Context) {
		action(ctx, room)
	})
	if err != nil {
		slog.Error("action ledger failure", "error", err, "room_id", room.ID, "target_event_id", event.TargetEventID)
	}
	switch {
	case ran:
		metrics.RecordEvent("reaction", "handled")
	case err == nil:
		metrics.LedgerDuplicatesTotal.Inc()
		metrics.RecordEvent("reaction", "duplicate")
	default:
		metrics.RecordEvent("reaction", "ledger_error")
	}
}

// reactionActionFor maps a symbol to its action and reports whether the
// action requires a recording room.
func (b *Bot) reactionActionFor(symbol string) (reactionAction, bool) {
	switch symbol {
	case chat.SymbolStay:
		return b.confirmStay, false
	case chat.SymbolLeave:
		return b.confirmLeave, false
	case chat.SymbolAccept:
		return func(ctx context.Context, room *repository.Room) {
			b.acceptLastMessage(ctx, room, false)
		}, true
	}
	if c, ok := category.ParseReactionKey(symbol); ok {
		return func(ctx context.Context, room *repository.Room) {
			b.applyCategory(ctx, room, c)
		}, true
	}
	return nil, false
}
