package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalscan/scanner/internal/contracts"
	"github.com/signalscan/scanner/pkg/config"
	"github.com/signalscan/scanner/pkg/logger"
)

const (
	DefaultStreamURL = "wss://stream.data.alpaca.markets/v2/iex"
	DefaultNewsURL   = "wss://stream.data.alpaca.markets/v1beta1/news"

	// The validation feed caps out at 500 symbols per subscription
	MaxQuoteSubscriptions = 500

	handshakeTimeout      = 10 * time.Second
	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 30 * time.Second
)

// QuoteStream handles the Alpaca quote/trade websocket used by the
// validation window. One subscription set at a time; a new shortlist
// tears the connection down and dials fresh.
type QuoteStream struct {
	cfg            config.AlpacaConfig
	logger         *logger.Logger
	reconnectDelay time.Duration

	conn      *websocket.Conn
	connMu    sync.Mutex
	connected bool

	ctx     context.Context
	symbols []string

	onQuote func(contracts.Quote)
	onTrade func(contracts.Tick)
	onError func(error)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewQuoteStream creates a quote stream client
func NewQuoteStream(cfg config.AlpacaConfig, log *logger.Logger) *QuoteStream {
	if cfg.StreamURL == "" {
		cfg.StreamURL = DefaultStreamURL
	}
	return &QuoteStream{
		cfg:            cfg,
		logger:         log,
		reconnectDelay: reconnectInitialDelay,
	}
}

// Enabled reports whether credentials are configured
func (s *QuoteStream) Enabled() bool {
	return s.cfg.KeyID != "" && s.cfg.SecretKey != ""
}

// Callback setters
func (s *QuoteStream) OnQuote(fn func(contracts.Quote)) { s.onQuote = fn }
func (s *QuoteStream) OnTrade(fn func(contracts.Tick))  { s.onTrade = fn }
func (s *QuoteStream) OnError(fn func(error))           { s.onError = fn }

// Subscribe dials the stream and subscribes the symbol set, replacing any
// previous subscription. The set is truncated to the feed cap.
func (s *QuoteStream) Subscribe(ctx context.Context, symbols []string) error {
	if !s.Enabled() {
		return fmt.Errorf("alpaca credentials not configured")
	}

	if len(symbols) > MaxQuoteSubscriptions {
		symbols = symbols[:MaxQuoteSubscriptions]
	}

	s.Close()

	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.StreamURL, nil)
	if err != nil {
		return fmt.Errorf("alpaca dial: %w", err)
	}

	auth := map[string]string{
		"action": "auth",
		"key":    s.cfg.KeyID,
		"secret": s.cfg.SecretKey,
	}
	if err := conn.WriteJSON(auth); err != nil {
		conn.Close()
		return fmt.Errorf("alpaca auth: %w", err)
	}

	s.conn = conn
	s.connected = true
	s.ctx = ctx
	s.symbols = symbols
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.readLoop()

	s.logger.WithField("symbols", len(symbols)).Info("alpaca quote stream subscribed")
	return nil
}

// Close tears down the connection. Safe to call when not connected.
func (s *QuoteStream) Close() {
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
func (s *QuoteStream) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.connected
}

func (s *QuoteStream) readLoop() {
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
				s.logger.WithError(err).Warn("alpaca quote stream dropped, reconnecting")
				go s.reconnectLoop(ctx)
			}
			return
		}

		s.handleMessage(data)
	}
}

// reconnectLoop redials the last symbol set with exponential backoff after
// the read loop exits on a stream error. A Subscribe for a fresh shortlist
// that lands first wins; the loop notices the live connection and stops.
func (s *QuoteStream) reconnectLoop(ctx context.Context) {
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
			s.logger.WithError(err).Warn("alpaca quote stream redial failed")
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}
		return
	}
}

// streamMessage covers every frame shape on the multiplexed feed
type streamMessage struct {
	Type    string  `json:"T"`
	Msg     string  `json:"msg"`
	Symbol  string  `json:"S"`
	BidP    float64 `json:"bp"`
	AskP    float64 `json:"ap"`
	TradeP  float64 `json:"p"`
	TradeSz int64   `json:"s"`
	Time    string  `json:"t"`
}

func (s *QuoteStream) handleMessage(data []byte) {
	var frames []streamMessage
	if err := json.Unmarshal(data, &frames); err != nil {
		s.logger.WithError(err).Debug("alpaca frame skipped")
		return
	}

	for _, f := range frames {
		switch f.Type {
		case "success":
			if f.Msg == "authenticated" {
				s.sendSubscribe()
			}
		case "error":
			if s.onError != nil {
				s.onError(fmt.Errorf("alpaca stream: %s", f.Msg))
			}
		case "q":
			if s.onQuote == nil || f.Symbol == "" {
				continue
			}
			s.onQuote(contracts.Quote{
				Symbol:    f.Symbol,
				BidPrice:  f.BidP,
				AskPrice:  f.AskP,
				Timestamp: parseStreamTime(f.Time),
			})
		case "t":
			if s.onTrade == nil || f.Symbol == "" {
				continue
			}
			s.onTrade(contracts.Tick{
				Symbol:    f.Symbol,
				Last:      f.TradeP,
				Volume:    f.TradeSz,
				Timestamp: parseStreamTime(f.Time),
			})
		}
	}
}

func (s *QuoteStream) sendSubscribe() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil || len(s.symbols) == 0 {
		return
	}

	msg := map[string]interface{}{
		"action": "subscribe",
		"quotes": s.symbols,
		"trades": s.symbols,
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.WithError(err).Error("alpaca subscribe failed")
	}
}

func parseStreamTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}
