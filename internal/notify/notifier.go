// Package notify delivers scanner alerts. Emitted composites and resolved
// outcomes are formatted once and dispatched to every registered sender;
// delivery is best-effort and never blocks the scan loop's correctness.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ekaraca/marketscan/internal/domain"
)

// Event types accepted by the filter.
const (
	EventSignal  = "signal"
	EventOutcome = "outcome"
	EventSystem  = "system"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches to all senders, filtered by event type. An empty event
// list allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// New creates a Notifier delivering to the given senders.
func New(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// SignalEmitted announces a new pending composite signal.
func (n *Notifier) SignalEmitted(ctx context.Context, sig domain.CompositeSignal) {
	title := fmt.Sprintf("%s %s (%s)", sig.Direction, sig.Symbol, sig.Mode)
	var b strings.Builder
	fmt.Fprintf(&b, "score %.3f, confidence %.0f%%\n", sig.Score, sig.Confidence*100)
	fmt.Fprintf(&b, "entry %.6g, stop %.6g, target %.6g\n", sig.Entry, sig.Stop, sig.Target)
	for _, c := range sig.Contributions {
		mark := " "
		if c.Agreed {
			mark = "+"
		}
		fmt.Fprintf(&b, "%s %s w=%.2f s=%.2f [%s]\n", mark, c.Strategy, c.Weight, c.Strength, c.Regime)
	}
	n.notify(ctx, EventSignal, title, b.String())
}

// SignalResolved announces a terminal outcome for a pending signal.
func (n *Notifier) SignalResolved(ctx context.Context, sig domain.CompositeSignal, out domain.Outcome) {
	title := fmt.Sprintf("%s %s %s", out.Result, sig.Direction, sig.Symbol)
	message := fmt.Sprintf("return %.2f%%, entry %.6g, resolved %s",
		out.RealizedReturn*100, sig.Entry, out.ResolvedAt.Format("15:04:05"))
	n.notify(ctx, EventOutcome, title, message)
}

// System announces an operational event such as a mode switch or weight reset.
func (n *Notifier) System(ctx context.Context, title, message string) {
	n.notify(ctx, EventSystem, title, message)
}

func (n *Notifier) notify(ctx context.Context, event, title, message string) {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return
	}
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title))
	}
}
