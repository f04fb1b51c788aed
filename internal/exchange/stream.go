package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait         = 10 * time.Second
	wsPongWait          = 90 * time.Second
	wsPingPeriod        = (wsPongWait * 9) / 10
	wsReconnectDelay    = 2 * time.Second
	wsMaxReconnectDelay = 60 * time.Second
)

// Stream subscribes to the combined mini-ticker stream and keeps the latest
// traded price per symbol, so pending-signal checks do not spend REST quota.
// It reconnects with exponential backoff on disconnect.
type Stream struct {
	wsURL  string
	logger *slog.Logger

	mu     sync.RWMutex
	prices map[string]float64

	closeOnce sync.Once
	done      chan struct{}
}

// NewStream creates a stream for the given websocket endpoint, e.g.
// "wss://stream.binance.com:9443/ws/!miniTicker@arr".
func NewStream(wsURL string, logger *slog.Logger) *Stream {
	return &Stream{
		wsURL:  wsURL,
		logger: logger.With(slog.String("component", "price_stream")),
		prices: make(map[string]float64),
		done:   make(chan struct{}),
	}
}

// LastPrice implements PriceSource.
func (s *Stream) LastPrice(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[symbol]
	return p, ok
}

// Run connects and consumes ticker messages until ctx is cancelled or Close
// is called. Disconnects are retried with capped exponential backoff.
func (s *Stream) Run(ctx context.Context) error {
	delay := wsReconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-s.done:
			return nil
		default:
		}

		s.logger.Warn("price stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-time.After(delay):
		}
		if delay *= 2; delay > wsMaxReconnectDelay {
			delay = wsMaxReconnectDelay
		}
	}
}

func (s *Stream) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("exchange: stream connect: %w", err)
	}
	defer conn.Close()
	s.logger.Info("price stream connected")

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go s.pingLoop(pingCtx, conn)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("exchange: stream read: %w", err)
		}
		s.handleMessage(msg)
	}
}

func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// miniTicker is one entry of the combined !miniTicker@arr payload.
type miniTicker struct {
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

// handleMessage accepts either the combined array payload or a single ticker
// object; anything else is ignored.
func (s *Stream) handleMessage(msg []byte) {
	var batch []miniTicker
	if err := json.Unmarshal(msg, &batch); err != nil {
		var one miniTicker
		if err := json.Unmarshal(msg, &one); err != nil || one.Symbol == "" {
			return
		}
		batch = []miniTicker{one}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range batch {
		p, err := strconv.ParseFloat(t.Close, 64)
		if err != nil || t.Symbol == "" {
			continue
		}
		s.prices[t.Symbol] = p
	}
}

// Close stops the stream after the current read returns.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
