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

// NewsStream handles the Alpaca realtime news websocket, the primary news
// path. It subscribes to the firehose and stays up across shortlists; the
// processor's watchlist match filters what matters.
type NewsStream struct {
	cfg    config.AlpacaConfig
	logger *logger.Logger

	onArticle func(contracts.Article)

	connMu    sync.Mutex
	conn      *websocket.Conn
	connected bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewNewsStream creates a news stream client
func NewNewsStream(cfg config.AlpacaConfig, log *logger.Logger) *NewsStream {
	if cfg.NewsURL == "" {
		cfg.NewsURL = DefaultNewsURL
	}
	return &NewsStream{cfg: cfg, logger: log}
}

// Enabled reports whether credentials are configured
func (s *NewsStream) Enabled() bool {
	return s.cfg.KeyID != "" && s.cfg.SecretKey != ""
}

// OnArticle sets the article callback
func (s *NewsStream) OnArticle(fn func(contracts.Article)) { s.onArticle = fn }

// Run connects and keeps the stream alive until the context is cancelled,
// reconnecting with exponential backoff on stream errors.
func (s *NewsStream) Run(ctx context.Context) {
	if !s.Enabled() {
		s.logger.Warn("alpaca news stream disabled, no credentials")
		return
	}

	delay := reconnectInitialDelay
	for {
		if ctx.Err() != nil {
			return
		}

		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.WithError(err).Warn("alpaca news stream dropped, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

func (s *NewsStream) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.NewsURL, nil)
	if err != nil {
		return fmt.Errorf("news dial: %w", err)
	}
	defer conn.Close()

	auth := map[string]string{
		"action": "auth",
		"key":    s.cfg.KeyID,
		"secret": s.cfg.SecretKey,
	}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("news auth: %w", err)
	}

	// close the socket when the context ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(conn, data)
	}
}

type newsFrame struct {
	Type      string   `json:"T"`
	Msg       string   `json:"msg"`
	ID        int64    `json:"id"`
	Headline  string   `json:"headline"`
	Summary   string   `json:"summary"`
	URL       string   `json:"url"`
	Symbols   []string `json:"symbols"`
	CreatedAt string   `json:"created_at"`
	Source    string   `json:"source"`
}

func (s *NewsStream) handleMessage(conn *websocket.Conn, data []byte) {
	var frames []newsFrame
	if err := json.Unmarshal(data, &frames); err != nil {
		s.logger.WithError(err).Debug("news frame skipped")
		return
	}

	for _, f := range frames {
		switch f.Type {
		case "success":
			if f.Msg == "authenticated" {
				sub := map[string]interface{}{
					"action": "subscribe",
					"news":   []string{"*"},
				}
				if err := conn.WriteJSON(sub); err != nil {
					s.logger.WithError(err).Error("news subscribe failed")
				}
			}
		case "n":
			if s.onArticle == nil || f.Headline == "" {
				continue
			}
			s.onArticle(contracts.Article{
				ID:        fmt.Sprintf("alpaca_%d", f.ID),
				Title:     f.Headline,
				Summary:   f.Summary,
				URL:       f.URL,
				Symbols:   f.Symbols,
				Published: parseStreamTime(f.CreatedAt),
				Source:    "alpaca",
			})
		}
	}
}
