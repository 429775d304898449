package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// markTimeout bounds the ledger write that follows an action. The write does
// not inherit the action's deadline.
const markTimeout = 5 * time.Second

// Ledger remembers which triggering events already produced their side effect.
// Handled is monotone: once true it never reverts.
type Ledger interface {
	IsHandled(ctx context.Context, eventID string) (bool, error)
	MarkHandled(ctx context.Context, eventID string) error
}

type Guard struct {
	ledger Ledger
}

func NewGuard(l Ledger) *Guard {
	return &Guard{ledger: l}
}

// Once runs action unless eventID is already handled, then marks it handled
// whether or not the action succeeded. It reports whether action ran.
// A failing ledger read skips the action. The mark is written even when the
// action consumed ctx's deadline.
func (g *Guard) Once(ctx context.Context, eventID string, action func(ctx context.Context)) (bool, error) {
	handled, err := g.ledger.IsHandled(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("read ledger entry %s: %w", eventID, err)
	}
	if handled {
		slog.Info("event already handled; skipping side effect", "event_id", eventID)
		return false, nil
	}
	action(ctx)
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()
	if err := g.ledger.MarkHandled(markCtx, eventID); err != nil {
		return true, fmt.Errorf("mark ledger entry %s: %w", eventID, err)
	}
	return true, nil
}
