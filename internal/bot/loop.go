package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/chat"
	"github.com/UKPLab/aacl2022-TexPrax/internal/config"
	"github.com/UKPLab/aacl2022-TexPrax/internal/metrics"
)

const defaultSweepInterval = time.Minute

type job struct {
	kind string
	run  func(ctx context.Context)
}

// Loop serializes every inbound event onto one goroutine so handlers never
// interleave. Gateways call the Enqueue methods from their own goroutines.
type Loop struct {
	bot           *Bot
	events        chan job
	timeout       time.Duration
	sweepEnabled  bool
	sweepInterval time.Duration

	stopped  chan struct{}
	stopOnce sync.Once
}

func NewLoop(bot *Bot, cfg *config.Config) *Loop {
	return &Loop{
		bot:           bot,
		events:        make(chan job, cfg.EventQueueSize),
		timeout:       cfg.EventTimeout(),
		sweepEnabled:  cfg.ConsentTimeout() > 0,
		sweepInterval: defaultSweepInterval,
		stopped:       make(chan struct{}),
	}
}

func (l *Loop) EnqueueInvite(event chat.InviteEvent) {
	l.enqueue(job{kind: "invite", run: func(ctx context.Context) { l.bot.HandleInvite(ctx, event) }})
}

func (l *Loop) EnqueueMessage(event chat.MessageEvent) {
	l.enqueue(job{kind: "message", run: func(ctx context.Context) { l.bot.HandleMessage(ctx, event) }})
}

func (l *Loop) EnqueueReaction(event chat.ReactionEvent) {
	l.enqueue(job{kind: "reaction", run: func(ctx context.Context) { l.bot.HandleReaction(ctx, event) }})
}

// Attach registers the loop as the event sink of gw.
func (l *Loop) Attach(gw chat.Gateway) {
	gw.RegisterInviteHandler(l.EnqueueInvite)
	gw.RegisterMessageHandler(l.EnqueueMessage)
	gw.RegisterReactionHandler(l.EnqueueReaction)
}

func (l *Loop) enqueue(j job) {
	select {
	case l.events <- j:
	case <-l.stopped:
		slog.Warn("event loop stopped; dropping event", "kind", j.kind)
		metrics.RecordEvent(j.kind, "dropped")
	}
}

// Run processes queued events in arrival order until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stopOnce.Do(func() { close(l.stopped) })

	var sweep <-chan time.Time
	if l.sweepEnabled {
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	slog.Info("event loop started", "queue_size", cap(l.events), "event_timeout", l.timeout, "consent_sweep", l.sweepEnabled)
	for {
		select {
		case <-ctx.Done():
			slog.Info("event loop stopped", "pending_events", len(l.events))
			return nil
		case j := <-l.events:
			l.process(ctx, j)
		case now := <-sweep:
			l.process(ctx, job{kind: "sweep", run: func(ctx context.Context) { l.bot.SweepUnconfirmed(ctx, now) }})
		}
	}
}

func (l *Loop) process(parent context.Context, j job) {
	ctx, cancel := context.WithTimeout(parent, l.timeout)
	defer cancel()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "kind", j.kind, "panic", r)
			metrics.RecordEvent(j.kind, "panic")
		}
		metrics.EventDuration.WithLabelValues(j.kind).Observe(time.Since(start).Seconds())
	}()
	j.run(ctx)
}
