package analysis

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

// Config holds the analysis-service connection settings.
type Config struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout" default:"10s"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"60s"`
}

// Client fetches the three component analyses plus market data from the
// analysis service over HTTP. Responses are cached per (kind, pair) so a
// realtime burst does not hammer the upstream.
type Client struct {
	cfg   Config
	http  *xhttp.Client
	cache cache.BytesCache
	log   *logger.Logger
}

// New creates an analysis client. cache may be nil to disable caching.
func New(cfg Config, c cache.BytesCache, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &Client{
		cfg:   cfg,
		http:  xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		cache: c,
		log:   log,
	}
}

func (c *Client) Economic(ctx context.Context, pair string) (*models.ComponentAnalysis, error) {
	return c.component(ctx, "economic", pair)
}

func (c *Client) News(ctx context.Context, pair string) (*models.ComponentAnalysis, error) {
	return c.component(ctx, "news", pair)
}

func (c *Client) Technical(ctx context.Context, pair string) (*models.ComponentAnalysis, error) {
	return c.component(ctx, "technical", pair)
}

func (c *Client) component(ctx context.Context, kind, pair string) (*models.ComponentAnalysis, error) {
	key := "analysis:" + kind + ":" + pair
	if b, ok := c.cachedBytes(key); ok {
		var ca models.ComponentAnalysis
		if err := json.Unmarshal(b, &ca); err == nil {
			return &ca, nil
		}
	}

	var ca models.ComponentAnalysis
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.cfg.BaseURL + "/api/analysis/" + kind,
		QueryParams: map[string][]string{"pair": {pair}},
	}, &ca)
	if err != nil {
		return nil, fmt.Errorf("%s analysis %s: %w", kind, pair, err)
	}
	if ca.Source == "" {
		ca.Source = kind
	}

	c.storeBytes(key, &ca)
	return &ca, nil
}

type marketResponse struct {
	Market  models.MarketSnapshot `json:"market"`
	Quality *models.DataQuality   `json:"quality,omitempty"`
}

// MarketData returns the price snapshot and the data-quality overlay.
// Never cached: staleness detection needs the live answer.
func (c *Client) MarketData(ctx context.Context, pair string) (models.MarketSnapshot, *models.DataQuality, error) {
	var resp marketResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.cfg.BaseURL + "/api/market",
		QueryParams: map[string][]string{"pair": {pair}},
	}, &resp)
	if err != nil {
		return models.MarketSnapshot{}, nil, fmt.Errorf("market data %s: %w", pair, err)
	}
	return resp.Market, resp.Quality, nil
}

func (c *Client) cachedBytes(key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	b, ok, err := c.cache.GetBytes(key)
	if err != nil {
		c.log.Debug("analysis cache read failed", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	return b, ok
}

func (c *Client) storeBytes(key string, v interface{}) {
	if c.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.SetBytes(key, b, c.cfg.CacheTTL); err != nil {
		c.log.Debug("analysis cache write failed", logger.String("key", key), logger.Error(err))
	}
}

var _ drepo.AnalysisSource = (*Client)(nil)
