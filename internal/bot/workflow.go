package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/UKPLab/aacl2022-TexPrax/internal/category"
	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/UKPLab/aacl2022-TexPrax/internal/classifier"
	"github.com/UKPLab/aacl2022-TexPrax/internal/metrics"
	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
)

func (b *Bot) HandleMessage(ctx context.Context, event chat.MessageEvent) {
	if event.SenderID == b.botUserID {
		metrics.RecordEvent("message", "own")
		return
	}
	room, ok := b.lookupRoom(ctx, "message", event.RoomID, event.ServerTime)
	if !ok {
		return
	}

	cmd := parseCommand(b.stripCommandPrefix(event.Text))
	slog.Debug("message received", "room_id", room.ID, "event_id", event.EventID, "command", cmd.kind, "recording", room.Recording)
	switch cmd.kind {
	case commandYes:
		b.confirmStay(ctx, room)
	case commandNo:
		b.confirmLeave(ctx, room)
	case commandCategory:
		if !room.Recording {
			b.onUnrecognizedInput(ctx, room)
			break
		}
		b.applyCategory(ctx, room, cmd.category)
	case commandAccept:
		if !room.Recording {
			b.onUnrecognizedInput(ctx, room)
			break
		}
		b.acceptLastMessage(ctx, room, true)
	case commandUnknown:
		b.onUnrecognizedInput(ctx, room)
	default:
		if !room.Recording {
			b.onUnrecognizedInput(ctx, room)
			break
		}
		b.classifyAndPrompt(ctx, room, event)
	}
	metrics.RecordEvent("message", "handled")
}

// classifyAndPrompt persists the message with its predicted category and asks
// the room to confirm or correct it. Nothing is stored when classification fails.
func (b *Bot) classifyAndPrompt(ctx context.Context, room *repository.Room, event chat.MessageEvent) {
	predicted, err := b.classifier.ClassifySentence(ctx, event.Text)
	if err != nil {
		slog.Error("failed to classify sentence", "error", err, "room_id", room.ID, "event_id", event.EventID)
		b.say(ctx, room.ID, messageClassifyFailed)
		return
	}
	tokens, err := b.classifier.ClassifyTokens(ctx, event.Text)
	if err != nil {
		slog.Error("failed to classify tokens", "error", err, "room_id", room.ID, "event_id", event.EventID)
		b.say(ctx, room.ID, messageClassifyFailed)
		return
	}

	msg, err := b.repo.InsertMessage(ctx, repository.InsertMessageInput{
		RoomID:     room.ID,
		Text:       event.Text,
		SenderID:   event.SenderID,
		ServerTime: event.ServerTime,
		Category:   predicted,
		Spans:      toSpans(classifier.Highlighted(tokens)),
	})
	if err != nil {
		slog.Error("failed to store message", "error", err, "room_id", room.ID, "event_id", event.EventID)
		b.say(ctx, room.ID, messageStoreFailed)
		return
	}
	metrics.ClassificationsTotal.WithLabelValues(predicted.String()).Inc()
	slog.Info("message classified", "room_id", room.ID, "message_seq", msg.Seq, "category", predicted.String(), "spans", len(msg.Spans))

	promptID := b.say(ctx, room.ID, classificationPrompt(predicted))
	b.attachAffordances(ctx, room.ID, promptID, promptAffordances(predicted))
}

// applyCategory rewrites the category of the room's last message and forwards
// it. Explicit corrections always overwrite the stored prediction.
func (b *Bot) applyCategory(ctx context.Context, room *repository.Room, c category.Category) {
	current, err := b.lastSessionMessage(ctx, room)
	if err != nil {
		slog.Error("failed to load last message", "error", err, "room_id", room.ID)
		b.say(ctx, room.ID, messageStoreFailed)
		return
	}
	if current == nil {
		b.say(ctx, room.ID, messageNoMessage)
		return
	}
	msg, err := b.repo.UpdateLastMessageCategory(ctx, room.ID, c)
	if errors.Is(err, repository.ErrNoMessage) {
		b.say(ctx, room.ID, messageNoMessage)
		return
	}
	if err != nil {
		slog.Error("failed to update message category", "error", err, "room_id", room.ID, "category", c.String())
		b.say(ctx, room.ID, messageStoreFailed)
		return
	}
	slog.Info("message category set", "room_id", room.ID, "message_seq", msg.Seq, "category", c.String())
	b.forward(ctx, room.ID, c)
}

// acceptLastMessage forwards the last message under its stored category.
// Typed ":yes" without a message counts as unrecognized input; the reaction
// path reports the missing message instead.
func (b *Bot) acceptLastMessage(ctx context.Context, room *repository.Room, typed bool) {
	msg, err := b.lastSessionMessage(ctx, room)
	if err != nil {
		slog.Error("failed to load last message", "error", err, "room_id", room.ID)
		b.say(ctx, room.ID, messageStoreFailed)
		return
	}
	if msg == nil {
		if typed {
			b.onUnrecognizedInput(ctx, room)
			return
		}
		b.say(ctx, room.ID, messageNoMessage)
		return
	}
	slog.Info("prediction accepted", "room_id", room.ID, "message_seq", msg.Seq, "category", msg.Category.String())
	b.forward(ctx, room.ID, msg.Category)
}

// lastSessionMessage returns the room's last message unless it was sent
// before the current join. Messages outlive the room record, so a re-invited
// bot would otherwise act on the previous membership's message.
func (b *Bot) lastSessionMessage(ctx context.Context, room *repository.Room) (*repository.Message, error) {
	msg, err := b.repo.GetLastMessage(ctx, room.ID)
	if err != nil || msg == nil {
		return nil, err
	}
	if msg.ServerTime.Before(room.JoinedAt) {
		slog.Debug("last message predates join", "room_id", room.ID, "message_seq", msg.Seq)
		return nil, nil
	}
	return msg, nil
}

// forward sends exactly one result text for c.
func (b *Bot) forward(ctx context.Context, roomID string, c category.Category) {
	if !c.Forwarded() {
		b.say(ctx, roomID, messageNotForwarded)
		return
	}
	err := b.sync.Submit(ctx, roomID, c)
	if err != nil {
		slog.Error("failed to forward message to tracking service", "error", err, "room_id", roomID, "category", c.String())
	}
	b.say(ctx, roomID, submissionResult(c, err))
}

func toSpans(tokens []classifier.TokenLabel) []repository.Span {
	spans := make([]repository.Span, 0, len(tokens))
	for _, t := range tokens {
		spans = append(spans, repository.Span{Token: t.Token, Label: t.Label})
	}
	return spans
}
