package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/service/cache"
	"TradeGate/pkg/logger"
)

func TestIsBrokerConnectedAgeWindow(t *testing.T) {
	lastSeen := time.Now().UTC()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bridge/bridge-a/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer bridge-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"connected": true, "last_seen": lastSeen,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	s := New(Config{BaseURL: srv.URL, APIKey: "bridge-key"}, nil, logger.Nop())

	assert.True(t, s.IsBrokerConnected(context.Background(), "bridge-a", 90*time.Second))

	// a heartbeat older than maxAge reads as disconnected
	lastSeen = time.Now().UTC().Add(-5 * time.Minute)
	assert.False(t, s.IsBrokerConnected(context.Background(), "bridge-a", 90*time.Second))

	// zero maxAge disables the age check
	assert.True(t, s.IsBrokerConnected(context.Background(), "bridge-a", 0))
}

func TestIsBrokerConnectedTransportFailureReadsDisconnected(t *testing.T) {
	s := New(Config{BaseURL: "http://127.0.0.1:1"}, nil, logger.Nop())
	assert.False(t, s.IsBrokerConnected(context.Background(), "bridge-a", time.Minute))
}

func TestQuotesDropStaleEntries(t *testing.T) {
	now := time.Now().UTC()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bridge/bridge-a/quotes", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"quotes": []models.Quote{
				{Symbol: "EURUSD", Bid: 1.1000, Ask: 1.1002, ReceivedAt: now},
				{Symbol: "GBPUSD", Bid: 1.2500, Ask: 1.2503, ReceivedAt: now.Add(-10 * time.Minute)},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	s := New(Config{BaseURL: srv.URL}, nil, logger.Nop())

	quotes, err := s.Quotes(context.Background(), "bridge-a", 30*time.Second)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "EURUSD", quotes[0].Symbol)

	quotes, err = s.Quotes(context.Background(), "bridge-a", 0)
	require.NoError(t, err)
	assert.Len(t, quotes, 2, "zero maxAge keeps everything")
}

func TestQuotesServedFromShortCache(t *testing.T) {
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bridge/bridge-a/quotes", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"quotes": []models.Quote{{Symbol: "EURUSD", Bid: 1.1, Ask: 1.1002, ReceivedAt: time.Now().UTC()}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	s := New(Config{BaseURL: srv.URL, CacheTTL: time.Minute}, cache.NewTTLCache(), logger.Nop())

	_, err := s.Quotes(context.Background(), "bridge-a", time.Minute)
	require.NoError(t, err)
	_, err = s.Quotes(context.Background(), "bridge-a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load(), "the monitor loop polls hot; the cache absorbs it")
}

func TestSignalForExecution(t *testing.T) {
	yes := true
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bridge/bridge-a/signal", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EURUSD", r.URL.Query().Get("symbol"))
		json.NewEncoder(w).Encode(models.PushedSignal{
			Signal:        &models.Signal{Pair: "EURUSD", Direction: models.DirectionBuy},
			ShouldExecute: &yes,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	s := New(Config{BaseURL: srv.URL}, nil, logger.Nop())

	ps, err := s.SignalForExecution(context.Background(), "bridge-a", "EURUSD")
	require.NoError(t, err)
	require.NotNil(t, ps.Signal)
	assert.Equal(t, "EURUSD", ps.Signal.Pair)
	require.NotNil(t, ps.ShouldExecute)
	assert.True(t, *ps.ShouldExecute)

	_, err = s.SignalForExecution(context.Background(), "bridge-b", "EURUSD")
	assert.Error(t, err, "unknown broker path 404s")
}
