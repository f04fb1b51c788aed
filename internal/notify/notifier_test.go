package notify

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ekaraca/marketscan/internal/domain"
)

type fakeSender struct {
	titles   []string
	messages []string
}

func (f *fakeSender) Send(_ context.Context, title, message string) error {
	f.titles = append(f.titles, title)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeSender) Name() string { return "fake" }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func sampleSignal() domain.CompositeSignal {
	return domain.CompositeSignal{
		ID:         "abc",
		Symbol:     "BTCUSDT",
		Direction:  domain.DirectionLong,
		Score:      0.62,
		Confidence: 0.85,
		Mode:       "balanced",
		Entry:      64000,
		Stop:       63232,
		Target:     65280,
		Contributions: []domain.Contribution{
			{Strategy: "trend_range", Weight: 1.2, Strength: 0.8, Regime: domain.RegimeTrend, Agreed: true},
			{Strategy: "smc", Weight: 0.8, Strength: 0.4, Regime: domain.RegimeSMC},
		},
	}
}

func TestSignalEmittedFormatting(t *testing.T) {
	f := &fakeSender{}
	n := New([]Sender{f}, nil, discard())

	n.SignalEmitted(context.Background(), sampleSignal())
	if len(f.titles) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.titles))
	}
	if f.titles[0] != "LONG BTCUSDT (balanced)" {
		t.Errorf("title = %q", f.titles[0])
	}
	msg := f.messages[0]
	for _, want := range []string{"score 0.620", "confidence 85%", "trend_range", "smc"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestSignalResolvedFormatting(t *testing.T) {
	f := &fakeSender{}
	n := New([]Sender{f}, nil, discard())

	out := domain.Outcome{
		SignalID:       "abc",
		Symbol:         "BTCUSDT",
		Result:         domain.OutcomeWin,
		ResolvedAt:     time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC),
		RealizedReturn: 0.02,
	}
	n.SignalResolved(context.Background(), sampleSignal(), out)
	if len(f.titles) != 1 || f.titles[0] != "WIN LONG BTCUSDT" {
		t.Fatalf("titles = %v", f.titles)
	}
	if !strings.Contains(f.messages[0], "return 2.00%") {
		t.Errorf("message = %q", f.messages[0])
	}
}

func TestEventFilter(t *testing.T) {
	f := &fakeSender{}
	n := New([]Sender{f}, []string{EventOutcome}, discard())

	n.SignalEmitted(context.Background(), sampleSignal())
	if len(f.titles) != 0 {
		t.Fatalf("signal event passed an outcome-only filter: %v", f.titles)
	}
	n.SignalResolved(context.Background(), sampleSignal(), domain.Outcome{Result: domain.OutcomeLoss})
	if len(f.titles) != 1 {
		t.Fatalf("outcome event filtered out")
	}
}
