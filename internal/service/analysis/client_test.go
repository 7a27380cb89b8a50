package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/service/cache"
	"TradeGate/pkg/logger"
)

func analysisServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analysis/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.NotEmpty(t, r.URL.Query().Get("pair"))
		json.NewEncoder(w).Encode(models.ComponentAnalysis{
			Direction: models.DirectionBuy, Score: 62, Confidence: 71,
		})
	})
	mux.HandleFunc("/api/market", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"market":  models.MarketSnapshot{Pair: r.URL.Query().Get("pair"), Price: 1.1012, Confidence: 0.85},
			"quality": models.DataQuality{Modifier: 0.9, Status: models.QualityDegraded, Stale: true},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestComponentFillsSource(t *testing.T) {
	var hits atomic.Int64
	srv := analysisServer(t, &hits)
	c := New(Config{BaseURL: srv.URL}, nil, logger.Nop())

	econ, err := c.Economic(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, "economic", econ.Source, "source defaults to the requested kind")
	assert.Equal(t, models.DirectionBuy, econ.Direction)

	news, err := c.News(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, "news", news.Source)
}

func TestComponentUsesCache(t *testing.T) {
	var hits atomic.Int64
	srv := analysisServer(t, &hits)
	c := New(Config{BaseURL: srv.URL}, cache.NewTTLCache(), logger.Nop())

	_, err := c.Technical(context.Background(), "EURUSD")
	require.NoError(t, err)
	_, err = c.Technical(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load(), "second fetch is served from cache")

	// a different pair is a different key
	_, err = c.Technical(context.Background(), "GBPUSD")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestMarketDataIsNeverCached(t *testing.T) {
	var hits atomic.Int64
	srv := analysisServer(t, &hits)
	c := New(Config{BaseURL: srv.URL}, cache.NewTTLCache(), logger.Nop())

	market, quality, err := c.MarketData(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.InDelta(t, 1.1012, market.Price, 1e-9)
	require.NotNil(t, quality)
	assert.True(t, quality.Stale)

	_, _, err = c.MarketData(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load(), "staleness detection needs the live answer")
}

func TestClientPropagatesUpstreamFailure(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"}, nil, logger.Nop())

	_, err := c.Economic(context.Background(), "EURUSD")
	assert.Error(t, err)

	_, _, err = c.MarketData(context.Background(), "EURUSD")
	assert.Error(t, err)
}
