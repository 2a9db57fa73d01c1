package tradier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/logger"
)

const (
	DefaultStreamURL = "wss://ws.tradier.com/v1/markets/events"

	// The tick feed caps out at 375 symbols per session
	MaxTickSubscriptions = 375

	handshakeTimeout      = 10 * time.Second
	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 30 * time.Second
)

// TickStream handles the Tradier market events websocket used by the
// realtime engine. Each subscription needs a fresh REST session id; a new
// validated list tears the connection down and dials fresh.
type TickStream struct {
	cfg            config.TradierConfig
	client         *Client
	logger         *logger.Logger
	reconnectDelay time.Duration

	connMu    sync.Mutex
	conn      *websocket.Conn
	connected bool
	ctx       context.Context
	symbols   []string
	stopCh    chan struct{}
	wg        sync.WaitGroup

	onTick  func(contracts.Tick)
	onError func(error)
}

// NewTickStream creates a tick stream client
func NewTickStream(cfg config.TradierConfig, client *Client, log *logger.Logger) *TickStream {
	if cfg.StreamURL == "" {
		cfg.StreamURL = DefaultStreamURL
	}
	return &TickStream{
		cfg:            cfg,
		client:         client,
		logger:         log,
		reconnectDelay: reconnectInitialDelay,
	}
}

// Callback setters
func (s *TickStream) OnTick(fn func(contracts.Tick)) { s.onTick = fn }
func (s *TickStream) OnError(fn func(error))         { s.onError = fn }

// Subscribe creates a session, dials the stream and subscribes the symbol
// set, replacing any previous subscription. The set is truncated to the
// feed cap.
func (s *TickStream) Subscribe(ctx context.Context, symbols []string) error {
	if len(symbols) > MaxTickSubscriptions {
		symbols = symbols[:MaxTickSubscriptions]
	}

	sessionID, err := s.client.CreateSession(ctx)
	if err != nil {
		return err
	}

	s.Close()

	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.StreamURL, nil)
	if err != nil {
		return fmt.Errorf("tradier dial: %w", err)
	}

	sub := map[string]interface{}{
		"symbols":   symbols,
		"sessionid": sessionID,
		"linebreak": true,
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("tradier subscribe: %w", err)
	}

	s.conn = conn
	s.connected = true
	s.ctx = ctx
	s.symbols = symbols
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.readLoop()

	s.logger.WithField("symbols", len(symbols)).Info("tradier tick stream subscribed")
	return nil
}

// Close tears down the connection. Safe to call when not connected.
func (s *TickStream) Close() {
	s.connMu.Lock()
	if !s.connected {
		s.connMu.Unlock()
		return
	}

	close(s.stopCh)
	s.conn.Close()
	s.connected = false
	s.connMu.Unlock()

	s.wg.Wait()
}

// IsConnected reports connection state
func (s *TickStream) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.connected
}

func (s *TickStream) readLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}

			s.connMu.Lock()
			replaced := s.conn != conn
			if !replaced {
				conn.Close()
				s.connected = false
			}
			ctx := s.ctx
			s.connMu.Unlock()
			if replaced {
				return
			}

			if s.onError != nil {
				s.onError(err)
			}
			if ctx != nil && ctx.Err() == nil {
				s.logger.WithError(err).Warn("tradier tick stream dropped, reconnecting")
				go s.reconnectLoop(ctx)
			}
			return
		}

		s.handleMessage(data)
	}
}

// reconnectLoop redials the last symbol set with exponential backoff after
// the read loop exits on a stream error. Each attempt goes through
// Subscribe, which mints the fresh session id the feed requires. A
// Subscribe for a new validated list that lands first wins; the loop
// notices the live connection and stops.
func (s *TickStream) reconnectLoop(ctx context.Context) {
	delay := s.reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if s.IsConnected() {
			return
		}

		s.connMu.Lock()
		symbols := s.symbols
		s.connMu.Unlock()

		if err := s.Subscribe(ctx, symbols); err != nil {
			s.logger.WithError(err).Warn("tradier tick stream redial failed")
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}
		return
	}
}

// tickFrame covers the quote/trade event shapes on the feed. Numeric
// fields arrive as strings on some event types.
type tickFrame struct {
	Type      string      `json:"type"`
	Symbol    string      `json:"symbol"`
	Last      json.Number `json:"last"`
	Price     json.Number `json:"price"`
	Bid       json.Number `json:"bid"`
	Ask       json.Number `json:"ask"`
	Size      json.Number `json:"size"`
	CumVolume json.Number `json:"cvol"`
}

func (s *TickStream) handleMessage(data []byte) {
	var frame tickFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.logger.WithError(err).Debug("tradier frame skipped")
		return
	}
	if frame.Symbol == "" || s.onTick == nil {
		return
	}

	last := numberToFloat(frame.Last)
	if last == 0 {
		last = numberToFloat(frame.Price)
	}
	if last == 0 {
		return
	}

	volume := numberToInt(frame.CumVolume)
	if volume == 0 {
		volume = numberToInt(frame.Size)
	}

	s.onTick(contracts.Tick{
		Symbol:    frame.Symbol,
		Last:      last,
		Bid:       numberToFloat(frame.Bid),
		Ask:       numberToFloat(frame.Ask),
		Volume:    volume,
		Timestamp: time.Now().UTC(),
	})
}

func numberToFloat(n json.Number) float64 {
	if n == "" {
		return 0
	}
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

func numberToInt(n json.Number) int64 {
	return int64(numberToFloat(n))
}
