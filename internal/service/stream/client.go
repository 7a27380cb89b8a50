package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TradeGate/internal/domain/models"
	"TradeGate/pkg/logger"

	"github.com/gorilla/websocket"
)

// SignalSink receives pushed signals from the stream.
type SignalSink interface {
	OfferRealtime(broker string, ps models.PushedSignal)
}

// Config holds the signal-stream connection settings.
type Config struct {
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"api_key"`
	Pairs          []string      `yaml:"pairs"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
}

// Client consumes the bridge's realtime signal stream over WebSocket and
// forwards high-conviction signals into the gateway's fast lane.
type Client struct {
	cfg Config
	log *logger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a signal-stream client.
func New(cfg Config, log *logger.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Client{cfg: cfg, log: log}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.cfg.URL
	if c.cfg.APIKey != "" {
		u = fmt.Sprintf("%s?token=%s", u, c.cfg.APIKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("signal stream connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.log.Info("signal stream connected", logger.String("url", c.cfg.URL))
	return nil
}

// Subscribe subscribes to the configured pairs.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("signal stream not connected")
	}
	for _, p := range c.cfg.Pairs {
		msg := map[string]string{"type": "subscribe", "pair": p}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", p, err)
		}
		c.log.Debug("signal stream subscribed", logger.String("pair", p))
	}
	return nil
}

type signalFrame struct {
	Type          string         `json:"type"`
	Broker        string         `json:"broker,omitempty"`
	Signal        *models.Signal `json:"signal,omitempty"`
	ShouldExecute *bool          `json:"should_execute,omitempty"`
	Message       string         `json:"message,omitempty"`
}

// Run reads frames and forwards them to sink until ctx ends, reconnecting
// after read failures. It blocks; run it in a goroutine.
func (c *Client) Run(ctx context.Context, sink SignalSink) {
	for {
		if err := c.readLoop(ctx, sink); err != nil {
			c.log.Warn("signal stream dropped", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			_ = c.Close()
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
		if err := c.Reconnect(ctx); err != nil {
			c.log.Warn("signal stream reconnect failed", logger.Error(err))
		}
	}
}

func (c *Client) readLoop(ctx context.Context, sink SignalSink) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("signal stream not connected")
	}

	// ping loop
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("signal stream read: %w", err)
		}
		var f signalFrame
		if err := json.Unmarshal(b, &f); err != nil {
			// ignore non-signal frames
			continue
		}
		if f.Type != "signal" || f.Signal == nil {
			continue
		}
		sink.OfferRealtime(f.Broker, models.PushedSignal{
			Signal:        f.Signal,
			ShouldExecute: f.ShouldExecute,
			Message:       f.Message,
		})
	}
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WebSocket connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
