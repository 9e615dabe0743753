// internal/marketdata/stream.go

package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PriceUpdate is one push price tick for a subscribed token.
type PriceUpdate struct {
	TokenAddress string
	PriceUSD     float64
	Timestamp    time.Time
}

// StreamConfig configures websocket stream behavior.
type StreamConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns the default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// PriceStream maintains a websocket subscription to per-token price
// ticks. Updates arrive on Updates(); the connection self-heals with
// exponential backoff and resubscribes to every active token.
type PriceStream struct {
	endpoint string
	config   StreamConfig
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// subscribed tokens survive reconnects
	tokens   map[string]struct{}
	tokensMu sync.RWMutex

	updates chan PriceUpdate

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewPriceStream connects to the endpoint and starts the read and ping
// loops.
func NewPriceStream(ctx context.Context, endpoint string, config *StreamConfig, logger *zap.Logger) (*PriceStream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	s := &PriceStream{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.Named("price_stream"),
		tokens:   make(map[string]struct{}),
		updates:  make(chan PriceUpdate, 1024),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Updates returns the channel of incoming price ticks.
func (s *PriceStream) Updates() <-chan PriceUpdate {
	return s.updates
}

func (s *PriceStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// Subscribe starts price ticks for a token. The subscription survives
// reconnects.
func (s *PriceStream) Subscribe(tokenAddress string) error {
	if s.closed.Load() {
		return fmt.Errorf("stream closed")
	}

	s.tokensMu.Lock()
	s.tokens[tokenAddress] = struct{}{}
	s.tokensMu.Unlock()

	return s.send(streamRequest{Op: "subscribe", Tokens: []string{tokenAddress}})
}

// Unsubscribe stops price ticks for a token.
func (s *PriceStream) Unsubscribe(tokenAddress string) error {
	if s.closed.Load() {
		return fmt.Errorf("stream closed")
	}

	s.tokensMu.Lock()
	delete(s.tokens, tokenAddress)
	s.tokensMu.Unlock()

	return s.send(streamRequest{Op: "unsubscribe", Tokens: []string{tokenAddress}})
}

func (s *PriceStream) send(req streamRequest) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("not connected")
	}

	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write %s: %w", req.Op, err)
	}
	return nil
}

// Close shuts the stream down and closes the updates channel.
func (s *PriceStream) Close() error {
	if s.closed.Swap(true) {
		return nil // already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.updates)
	return nil
}

// readLoop reads ticks from the websocket and forwards them. On read
// errors it kicks off a reconnect with exponential backoff.
func (s *PriceStream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read.
		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

func (s *PriceStream) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.logger.Warn("Reconnect failed, will retry on next read error",
			zap.Error(err))
		return
	}

	s.logger.Info("🔄 Reconnected, resubscribing",
		zap.Int("tokens", s.subscribedCount()))

	s.resubscribeAll()
}

func (s *PriceStream) subscribedCount() int {
	s.tokensMu.RLock()
	defer s.tokensMu.RUnlock()
	return len(s.tokens)
}

func (s *PriceStream) resubscribeAll() {
	s.tokensMu.RLock()
	tokens := make([]string, 0, len(s.tokens))
	for t := range s.tokens {
		tokens = append(tokens, t)
	}
	s.tokensMu.RUnlock()

	if len(tokens) == 0 {
		return
	}

	if err := s.send(streamRequest{Op: "subscribe", Tokens: tokens}); err != nil {
		s.logger.Warn("Resubscribe failed", zap.Error(err))
	}
}

func (s *PriceStream) handleMessage(message []byte) {
	var tick streamTick
	if err := json.Unmarshal(message, &tick); err != nil || tick.Type != "price" {
		return
	}
	if tick.Token == "" || tick.PriceUSD <= 0 {
		return
	}

	ts := time.Now()
	if tick.Timestamp > 0 {
		ts = time.UnixMilli(tick.Timestamp)
	}

	update := PriceUpdate{
		TokenAddress: tick.Token,
		PriceUSD:     tick.PriceUSD,
		Timestamp:    ts,
	}

	// Drop rather than block: a missed tick is superseded by the next
	// one, and the simulation model covers any gap.
	select {
	case s.updates <- update:
	default:
		s.logger.Debug("Price update dropped, consumer behind",
			zap.String("token", tick.Token))
	}
}

// pingLoop keeps the connection alive.
func (s *PriceStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.logger.Debug("Ping failed, reader will handle reconnect",
						zap.Error(err))
				}
			}
			s.connMu.Unlock()
		}
	}
}

// Websocket message types.

type streamRequest struct {
	Op     string   `json:"op"`
	Tokens []string `json:"tokens"`
}

type streamTick struct {
	Type      string  `json:"type"`
	Token     string  `json:"token"`
	PriceUSD  float64 `json:"priceUsd"`
	Timestamp int64   `json:"ts"` // unix millis
}
