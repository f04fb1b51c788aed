package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ekaraca/marketscan/internal/domain"
)

type fakeControl struct {
	mode       domain.ModeProfile
	pending    []domain.CompositeSignal
	stats      []domain.StrategyStats
	universe   []string
	setMode    string
	setModeErr error
	resets     int
}

func (f *fakeControl) ActiveMode() domain.ModeProfile    { return f.mode }
func (f *fakeControl) Universe() []string                { return f.universe }
func (f *fakeControl) Pending() []domain.CompositeSignal { return f.pending }
func (f *fakeControl) Stats() []domain.StrategyStats     { return f.stats }
func (f *fakeControl) ResetWeights()                     { f.resets++ }
func (f *fakeControl) SetMode(name string) error {
	f.setMode = name
	return f.setModeErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, control *fakeControl, apiKey string) *httptest.Server {
	t.Helper()
	srv := New(Config{Port: 0, APIKey: apiKey}, control, nil, discardLogger())
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestStatusEndpoint(t *testing.T) {
	control := &fakeControl{
		mode: domain.ModeProfile{Name: "balanced", Threshold: 0.40, Cooldown: 30 * time.Minute},
		pending: []domain.CompositeSignal{
			{ID: "a", Symbol: "BTCUSDT"},
		},
		universe: []string{"BTCUSDT", "ETHUSDT"},
	}
	ts := newTestServer(t, control, "")

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	decode(t, resp, &body)
	if body["mode"] != "balanced" {
		t.Errorf("mode = %v, want balanced", body["mode"])
	}
	if body["universe_size"] != float64(2) {
		t.Errorf("universe_size = %v, want 2", body["universe_size"])
	}
	if body["pending"] != float64(1) {
		t.Errorf("pending = %v, want 1", body["pending"])
	}
}

func TestPendingSortedNewestFirst(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	control := &fakeControl{
		pending: []domain.CompositeSignal{
			{ID: "old", Symbol: "BTCUSDT", CreatedAt: base},
			{ID: "new", Symbol: "ETHUSDT", CreatedAt: base.Add(time.Hour)},
		},
	}
	ts := newTestServer(t, control, "")

	resp, err := http.Get(ts.URL + "/api/signals/pending")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var body struct {
		Count   int                      `json:"count"`
		Signals []domain.CompositeSignal `json:"signals"`
	}
	decode(t, resp, &body)
	if body.Count != 2 {
		t.Fatalf("count = %d, want 2", body.Count)
	}
	if body.Signals[0].ID != "new" {
		t.Errorf("first signal = %q, want new", body.Signals[0].ID)
	}
}

func TestModeSwitchQueued(t *testing.T) {
	control := &fakeControl{}
	ts := newTestServer(t, control, "")

	resp, err := http.Post(ts.URL+"/api/mode", "application/json",
		strings.NewReader(`{"mode":"aggressive"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	resp.Body.Close()
	if control.setMode != "aggressive" {
		t.Errorf("SetMode called with %q, want aggressive", control.setMode)
	}
}

func TestModeSwitchRejectsUnknown(t *testing.T) {
	control := &fakeControl{}
	ts := newTestServer(t, control, "")

	resp, err := http.Post(ts.URL+"/api/mode", "application/json",
		strings.NewReader(`{"mode":"yolo"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if control.setMode != "" {
		t.Errorf("SetMode should not be called for unknown mode, got %q", control.setMode)
	}
}

func TestWeightsResetAccepted(t *testing.T) {
	control := &fakeControl{}
	ts := newTestServer(t, control, "")

	resp, err := http.Post(ts.URL+"/api/weights/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if control.resets != 1 {
		t.Errorf("resets = %d, want 1", control.resets)
	}
}

func TestAuthRequiredWhenKeySet(t *testing.T) {
	control := &fakeControl{}
	ts := newTestServer(t, control, "topsecret")

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with key: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status with key = %d, want 200", resp.StatusCode)
	}
}

func TestWeightsStats(t *testing.T) {
	control := &fakeControl{
		stats: []domain.StrategyStats{
			{Strategy: "momentum", Weight: 1.2, SampleCount: 10, Accuracy: 0.6},
		},
	}
	ts := newTestServer(t, control, "")

	resp, err := http.Get(ts.URL + "/api/weights")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var body struct {
		Strategies []domain.StrategyStats `json:"strategies"`
	}
	decode(t, resp, &body)
	if len(body.Strategies) != 1 || body.Strategies[0].Strategy != "momentum" {
		t.Errorf("strategies = %+v", body.Strategies)
	}
}

type fakeHistory struct{}

func (fakeHistory) RecordResolved(ctx context.Context, sig domain.CompositeSignal, out domain.Outcome) error {
	return nil
}

func (fakeHistory) StrategyRecord(ctx context.Context, strategy string) (int, int, int, error) {
	return 7, 3, 1, nil
}

func TestWeightsStatsIncludesRecordWithHistory(t *testing.T) {
	control := &fakeControl{
		stats: []domain.StrategyStats{{Strategy: "smc", Weight: 1.0}},
	}
	srv := New(Config{Port: 0}, control, fakeHistory{}, discardLogger())
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/weights")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var body struct {
		Strategies []struct {
			Strategy string `json:"strategy"`
			Wins     *int   `json:"wins"`
			Losses   *int   `json:"losses"`
			Timeouts *int   `json:"timeouts"`
		} `json:"strategies"`
	}
	decode(t, resp, &body)
	if len(body.Strategies) != 1 {
		t.Fatalf("strategies = %+v", body.Strategies)
	}
	row := body.Strategies[0]
	if row.Wins == nil || *row.Wins != 7 || row.Losses == nil || *row.Losses != 3 || row.Timeouts == nil || *row.Timeouts != 1 {
		t.Errorf("record = %+v, want 7/3/1", row)
	}
}
