package venues

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
)

func bridgeAServer(t *testing.T) (*httptest.Server, *map[string]json.RawMessage) {
	t.Helper()
	var lastOrder map[string]json.RawMessage
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"connected": true, "terminal": "mt4", "build": 1420,
		})
	})
	mux.HandleFunc("/api/order", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&lastOrder))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": true, "ticket": 99881, "price": 1.1003,
		})
	})
	mux.HandleFunc("/api/positions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"ticket": 99881, "symbol": "EURUSD", "cmd": "sell", "lots": 0.1, "open_price": 1.0950, "open_time": 1767340800},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &lastOrder
}

func TestBridgeAPlaceOrderSpeaksLots(t *testing.T) {
	srv, lastOrder := bridgeAServer(t)
	conn := NewBridgeA(Config{BaseURL: srv.URL, APIKey: "secret"})

	res, err := conn.PlaceOrder(context.Background(), models.NormalizedOrder{
		Symbol: "EURUSD", Side: models.DirectionBuy, Units: 10000,
		StopLoss: 1.085, TakeProfit: 1.125, CorrelationID: "corr-1",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "99881", res.OrderID)
	assert.InDelta(t, 1.1003, res.FilledPrice, 1e-9)

	var cmd string
	require.NoError(t, json.Unmarshal((*lastOrder)["cmd"], &cmd))
	assert.Equal(t, "buy", cmd)
	var lots float64
	require.NoError(t, json.Unmarshal((*lastOrder)["lots"], &lots))
	assert.InDelta(t, 0.1, lots, 1e-9, "10k units is a tenth of a standard lot")
	var comment string
	require.NoError(t, json.Unmarshal((*lastOrder)["comment"], &comment))
	assert.Equal(t, "corr-1", comment)
}

func TestBridgeAVenueRejectionIsAResultNotAnError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/order", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": "market closed"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	conn := NewBridgeA(Config{BaseURL: srv.URL})

	res, err := conn.PlaceOrder(context.Background(), models.NormalizedOrder{
		Symbol: "EURUSD", Side: models.DirectionSell, Units: 10000,
	})
	require.NoError(t, err, "a rejection is a business outcome")
	assert.False(t, res.Success)
	assert.Equal(t, "market closed", res.Error)
}

func TestBridgeATransportFailureIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	conn := NewBridgeA(Config{BaseURL: srv.URL})

	_, err := conn.PlaceOrder(context.Background(), models.NormalizedOrder{
		Symbol: "EURUSD", Side: models.DirectionBuy, Units: 10000,
	})
	assert.Error(t, err)
}

func TestBridgeAPositionsMapToCanonicalShape(t *testing.T) {
	srv, _ := bridgeAServer(t)
	conn := NewBridgeA(Config{Name: "mt4-live", BaseURL: srv.URL, APIKey: "secret"})

	positions, err := conn.OpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)

	p := positions[0]
	assert.Equal(t, "99881", p.ID)
	assert.Equal(t, "mt4-live", p.Broker)
	assert.Equal(t, models.DirectionSell, p.Side)
	assert.InDelta(t, 10000, p.Units, 1e-9, "lots convert back to units")
	assert.InDelta(t, 1.0950, p.EntryPrice, 1e-9)
}

func TestBridgeAHealthCheck(t *testing.T) {
	srv, _ := bridgeAServer(t)
	conn := NewBridgeA(Config{BaseURL: srv.URL, APIKey: "secret", Mode: "real"})

	snap := conn.HealthCheck(context.Background())
	assert.True(t, snap.Connected)
	assert.Equal(t, "bridge-a", snap.Broker, "name defaults when unset")
	assert.Equal(t, "real", snap.Mode)
	assert.Equal(t, "mt4", snap.Details["terminal"])

	// unreachable bridge reports disconnected with the error, never panics
	down := NewBridgeA(Config{BaseURL: "http://127.0.0.1:1"})
	snap = down.HealthCheck(context.Background())
	assert.False(t, snap.Connected)
	assert.NotEmpty(t, snap.Error)
}
