package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/UKPLab/aacl2022-TexPrax/internal/metrics"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
)

func (b *Bot) HandleInvite(ctx context.Context, event chat.InviteEvent) {
	slog.Info("room invite received", "room_id", event.RoomID, "sender_id", event.SenderID)
	if !b.joinWithRetry(ctx, event.RoomID) {
		metrics.RecordEvent("invite", "join_failed")
		return
	}

	created, err := b.repo.CreateRoom(ctx, event.RoomID, b.now())
	if err != nil {
		slog.Error("failed to create room record", "error", err, "room_id", event.RoomID)
		metrics.RecordEvent("invite", "store_error")
		return
	}
	if !created {
		slog.Info("room already known; skipping greeting", "room_id", event.RoomID)
		metrics.RecordEvent("invite", "known_room")
		return
	}

	greetingID := b.say(ctx, event.RoomID, messageGreeting)
	b.attachAffordances(ctx, event.RoomID, greetingID, []string{chat.SymbolStay, chat.SymbolLeave})
	metrics.RecordEvent("invite", "greeted")
}

func (b *Bot) joinWithRetry(ctx context.Context, roomID string) bool {
	for attempt := 1; attempt <= b.cfg.JoinAttempts; attempt++ {
		err := b.gateway.JoinRoom(ctx, roomID)
		if err == nil {
			slog.Info("joined room", "room_id", roomID, "attempt", attempt)
			return true
		}
		slog.Warn("failed to join room", "error", err, "room_id", roomID, "attempt", attempt)
		if ctx.Err() != nil {
			break
		}
	}
	slog.Error("unable to join room; giving up", "room_id", roomID, "attempts", b.cfg.JoinAttempts)
	return false
}

func (b *Bot) confirmStay(ctx context.Context, room *repository.Room) {
	if err := b.repo.SetRoomRecording(ctx, room.ID, true); err != nil {
		slog.Error("failed to enable recording", "error", err, "room_id", room.ID)
		b.say(ctx, room.ID, messageStoreFailed)
		return
	}
	room.Recording = true
	slog.Info("recording enabled", "room_id", room.ID)
	b.say(ctx, room.ID, messageStay)
}

func (b *Bot) confirmLeave(ctx context.Context, room *repository.Room) {
	b.say(ctx, room.ID, messageLeave)
	b.leaveAndForget(ctx, room.ID, "leave requested")
}

// onUnrecognizedInput treats anything but an explicit yes as a refusal while
// the room has not consented yet. Recording rooms ignore it.
func (b *Bot) onUnrecognizedInput(ctx context.Context, room *repository.Room) {
	if room.Recording {
		slog.Debug("ignoring unrecognized input in recording room", "room_id", room.ID)
		return
	}
	b.say(ctx, room.ID, messageNotUnderstood)
	b.leaveAndForget(ctx, room.ID, "no consent")
}

// SweepUnconfirmed leaves every room that has not consented within the
// configured consent timeout. It is a no-op when the timeout is zero.
func (b *Bot) SweepUnconfirmed(ctx context.Context, now time.Time) {
	timeout := b.cfg.ConsentTimeout()
	if timeout <= 0 {
		return
	}
	rooms, err := b.repo.ListUnconfirmedRooms(ctx, now.Add(-timeout))
	if err != nil {
		slog.Error("failed to list unconfirmed rooms", "error", err)
		return
	}
	for _, room := range rooms {
		b.say(ctx, room.ID, messageConsentTimeout)
		b.leaveAndForget(ctx, room.ID, "consent timeout")
	}
}

func (b *Bot) leaveAndForget(ctx context.Context, roomID, reason string) {
	slog.Info("leaving room", "room_id", roomID, "reason", reason)
	if err := b.gateway.LeaveRoom(ctx, roomID); err != nil {
		slog.Error("failed to leave room", "error", err, "room_id", roomID)
	}
	if err := b.repo.DeleteRoom(ctx, roomID); err != nil {
		slog.Error("failed to delete room record", "error", err, "room_id", roomID)
	}
}
