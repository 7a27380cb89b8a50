package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	"TradeGate/internal/service/cache"
	xhttp "TradeGate/pkg/http"
	"TradeGate/pkg/logger"
)

// Config holds the terminal-bridge connection settings.
type Config struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout" default:"5s"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"2s"`
}

// Session talks to the terminal bridge: connection heartbeats, pushed
// execution signals and quote snapshots. Quote and status responses are
// cached for a couple of seconds since the monitor loop polls hot.
type Session struct {
	cfg   Config
	http  *xhttp.Client
	cache cache.BytesCache
	log   *logger.Logger
}

// New creates a bridge session. cache may be nil to disable caching.
func New(cfg Config, c cache.BytesCache, log *logger.Logger) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Second
	}
	return &Session{
		cfg:   cfg,
		http:  xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		cache: c,
		log:   log,
	}
}

type statusResponse struct {
	Connected bool      `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// IsBrokerConnected reports whether the bridge has heard from broker's
// terminal within maxAge. Any transport failure reads as disconnected.
func (s *Session) IsBrokerConnected(ctx context.Context, broker string, maxAge time.Duration) bool {
	var st statusResponse
	if !s.getCached(ctx, "bridge:status:"+broker, "/api/bridge/"+broker+"/status", &st) {
		return false
	}
	if !st.Connected {
		return false
	}
	return maxAge <= 0 || time.Since(st.LastSeen) <= maxAge
}

// SignalForExecution fetches the bridge's current pushed signal for one
// (broker, symbol), if any.
func (s *Session) SignalForExecution(ctx context.Context, broker, symbol string) (models.PushedSignal, error) {
	var ps models.PushedSignal
	err := s.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         s.cfg.BaseURL + "/api/bridge/" + broker + "/signal",
		Headers:     s.headers(),
		QueryParams: map[string][]string{"symbol": {symbol}},
	}, &ps)
	if err != nil {
		return models.PushedSignal{}, fmt.Errorf("bridge signal %s/%s: %w", broker, symbol, err)
	}
	return ps, nil
}

// Quotes returns the bridge's quote snapshot for broker, dropping quotes
// older than maxAge.
func (s *Session) Quotes(ctx context.Context, broker string, maxAge time.Duration) ([]models.Quote, error) {
	var raw struct {
		Quotes []models.Quote `json:"quotes"`
	}
	if !s.getCached(ctx, "bridge:quotes:"+broker, "/api/bridge/"+broker+"/quotes", &raw) {
		return nil, fmt.Errorf("bridge quotes %s: unavailable", broker)
	}

	now := time.Now()
	out := raw.Quotes[:0]
	for _, q := range raw.Quotes {
		if maxAge > 0 && now.Sub(q.ReceivedAt) > maxAge {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// getCached serves dest from the short-TTL cache when possible, falling
// back to a GET against the bridge. Returns false when both fail.
func (s *Session) getCached(ctx context.Context, key, path string, dest interface{}) bool {
	if s.cache != nil {
		if b, ok, err := s.cache.GetBytes(key); err == nil && ok {
			if json.Unmarshal(b, dest) == nil {
				return true
			}
		}
	}

	var buf []byte
	err := s.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     s.cfg.BaseURL + path,
		Headers: s.headers(),
	}, &buf)
	if err != nil {
		s.log.Debug("bridge request failed", logger.String("path", path), logger.Error(err))
		return false
	}
	if err := json.Unmarshal(buf, dest); err != nil {
		s.log.Debug("bridge response malformed", logger.String("path", path), logger.Error(err))
		return false
	}

	if s.cache != nil {
		if err := s.cache.SetBytes(key, buf, s.cfg.CacheTTL); err != nil {
			s.log.Debug("bridge cache write failed", logger.String("key", key), logger.Error(err))
		}
	}
	return true
}

func (s *Session) headers() map[string]string {
	if s.cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + s.cfg.APIKey}
}

var _ drepo.BridgeSession = (*Session)(nil)
