package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	"TradeGate/pkg/logger"
)

type fakeEngine struct {
	mu        sync.Mutex
	signals   map[string]*models.Signal
	signalErr map[string]error
	execRes   models.ExecutionResult
	executed  []string // "broker|pair"
	open      map[string]*models.Trade
	managed   int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		signals:   make(map[string]*models.Signal),
		signalErr: make(map[string]error),
		execRes:   models.ExecutionResult{Success: true},
		open:      make(map[string]*models.Trade),
	}
}

func (f *fakeEngine) GenerateSignal(ctx context.Context, pair string, opts drepo.SignalOptions) (*models.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.signalErr[pair]; err != nil {
		return nil, err
	}
	if sig, ok := f.signals[pair]; ok {
		return sig, nil
	}
	return executableSignal(pair), nil
}

func (f *fakeEngine) ExecuteTrade(ctx context.Context, sig *models.Signal, broker string) models.ExecutionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, broker+"|"+sig.Pair)
	res := f.execRes
	if res.Success {
		t := &models.Trade{ID: "t-" + sig.Pair, Pair: sig.Pair, Broker: broker, Status: models.TradeOpen}
		f.open[t.ID] = t
		res.Trade = t
	}
	return res
}

func (f *fakeEngine) CloseTrade(ctx context.Context, tradeID string, price float64, reason string) (*models.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.open[tradeID]
	if !ok {
		return nil, errors.New("trade not found")
	}
	delete(f.open, tradeID)
	t.Status = models.TradeClosed
	t.ClosePrice = price
	t.CloseReason = reason
	return t, nil
}

func (f *fakeEngine) ManageActiveTrades(ctx context.Context) {
	f.mu.Lock()
	f.managed++
	f.mu.Unlock()
}

func (f *fakeEngine) OpenTrades() []*models.Trade {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Trade, 0, len(f.open))
	for _, t := range f.open {
		out = append(out, t)
	}
	return out
}

func (f *fakeEngine) HasOpenTrade(pair string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.open {
		if t.Pair == pair {
			return true
		}
	}
	return false
}

func (f *fakeEngine) executedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

type fakeBridge struct {
	connected bool
	quotes    []models.Quote
}

func (f *fakeBridge) IsBrokerConnected(ctx context.Context, broker string, maxAge time.Duration) bool {
	return f.connected
}

func (f *fakeBridge) SignalForExecution(ctx context.Context, broker, symbol string) (models.PushedSignal, error) {
	return models.PushedSignal{}, nil
}

func (f *fakeBridge) Quotes(ctx context.Context, broker string, maxAge time.Duration) ([]models.Quote, error) {
	return f.quotes, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (f *fakeSink) Publish(ctx context.Context, ev models.Event) error {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) byType(typ string) []models.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Event
	for _, ev := range f.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

var _ drepo.TradingEngine = (*fakeEngine)(nil)
var _ drepo.BridgeSession = (*fakeBridge)(nil)
var _ drepo.EventSink = (*fakeSink)(nil)

func testGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Pairs:                []string{"EURUSD", "GBPUSD"},
		DefaultBroker:        "bridge-a",
		SignalCheckInterval:  time.Hour, // tests drive cycles directly
		MonitorInterval:      time.Hour,
		RealtimeDebounce:     10 * time.Millisecond,
		TradeCooldown:        3 * time.Minute,
		MaxNewTradesPerCycle: 1,
		MaxOrdersPerMinute:   60,
		Gate:                 GateConfig{MinConfidence: 55, MinStrength: 50},
	}
}

func newTestGateway(t *testing.T, cfg GatewayConfig, eng *fakeEngine, bridge drepo.BridgeSession, sink drepo.EventSink) *Gateway {
	t.Helper()
	g := NewGateway(cfg, eng, bridge, sink, nil, logger.Nop())
	t.Cleanup(g.Shutdown)
	return g
}

func TestGatewayStartRequiresBroker(t *testing.T) {
	cfg := testGatewayConfig()
	cfg.DefaultBroker = ""
	g := newTestGateway(t, cfg, newFakeEngine(), nil, nil)

	err := g.Start(context.Background(), "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no broker specified")
}

func TestGatewayStartRefusesDisconnectedBroker(t *testing.T) {
	g := newTestGateway(t, testGatewayConfig(), newFakeEngine(), &fakeBridge{connected: false}, nil)

	err := g.Start(context.Background(), "bridge-a", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")

	// forcing start arms the loops and records the disconnect
	require.NoError(t, g.Start(context.Background(), "bridge-a", true))
	st := g.Status()
	require.Len(t, st.EnabledBrokers, 1)
	assert.True(t, st.EnabledBrokers[0].Enabled)
	assert.False(t, st.EnabledBrokers[0].Connected)
}

func TestGatewayRealtimeExecution(t *testing.T) {
	eng := newFakeEngine()
	sink := &fakeSink{}
	g := newTestGateway(t, testGatewayConfig(), eng, nil, sink)
	require.NoError(t, g.Start(context.Background(), "", false))

	g.OfferRealtime("bridge-a", models.PushedSignal{Signal: executableSignal("EURUSD")})

	assert.Eventually(t, func() bool {
		return len(eng.executedCalls()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"bridge-a|EURUSD"}, eng.executedCalls())
	assert.Equal(t, 1, g.Status().Statistics.TradesOpened)
	assert.Len(t, sink.byType(models.EventAutoTradeAttempt), 1)
	assert.Len(t, sink.byType(models.EventTradeOpened), 1)
}

func TestGatewayRealtimeIgnoredWhenDisabled(t *testing.T) {
	eng := newFakeEngine()
	g := newTestGateway(t, testGatewayConfig(), eng, nil, nil)

	g.OfferRealtime("bridge-a", models.PushedSignal{Signal: executableSignal("EURUSD")})
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, eng.executedCalls())
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestGatewayCooldownSuppressesRepeatAttempts(t *testing.T) {
	eng := newFakeEngine()
	g := newTestGateway(t, testGatewayConfig(), eng, nil, nil)
	require.NoError(t, g.Start(context.Background(), "", false))

	clk := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	g.now = clk.Now

	g.OfferRealtime("bridge-a", models.PushedSignal{Signal: executableSignal("GBPUSD")})
	assert.Eventually(t, func() bool {
		return len(eng.executedCalls()) == 1
	}, time.Second, 5*time.Millisecond)

	// inside the cooldown the candidate is dropped before gating
	clk.Advance(time.Minute)
	g.OfferRealtime("bridge-a", models.PushedSignal{Signal: executableSignal("GBPUSD")})
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, eng.executedCalls(), 1)
	assert.Equal(t, 1, g.Status().Statistics.CooldownDrops)

	// past the cooldown it flows again; the previous trade is closed so
	// the open-trade check does not interfere
	for id := range eng.open {
		_, err := eng.CloseTrade(context.Background(), id, 1.25, "test")
		require.NoError(t, err)
	}
	clk.Advance(5 * time.Minute)
	g.OfferRealtime("bridge-a", models.PushedSignal{Signal: executableSignal("GBPUSD")})
	assert.Eventually(t, func() bool {
		return len(eng.executedCalls()) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestGatewayRanksAndCapsPerWindow(t *testing.T) {
	eng := newFakeEngine()
	g := newTestGateway(t, testGatewayConfig(), eng, nil, nil)
	require.NoError(t, g.Start(context.Background(), "", false))

	weak := executableSignal("EURUSD")
	weak.Validity.Decision.Score = 60
	strong := executableSignal("GBPUSD")
	strong.Validity.Decision.Score = 85

	g.OfferRealtime("bridge-a", models.PushedSignal{Signal: weak})
	g.OfferRealtime("bridge-a", models.PushedSignal{Signal: strong})

	assert.Eventually(t, func() bool {
		return len(eng.executedCalls()) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	// only the strongest opened; the cap leaves the weaker one untouched
	assert.Equal(t, []string{"bridge-a|GBPUSD"}, eng.executedCalls())
}

func TestGatewayGateRejectionPublishes(t *testing.T) {
	eng := newFakeEngine()
	sink := &fakeSink{}
	g := newTestGateway(t, testGatewayConfig(), eng, nil, sink)
	require.NoError(t, g.Start(context.Background(), "", false))

	watch := executableSignal("EURUSD")
	watch.Validity.IsValid = false
	watch.Validity.Decision.State = models.DecisionWatch

	g.OfferRealtime("bridge-a", models.PushedSignal{Signal: watch})

	assert.Eventually(t, func() bool {
		return g.Status().Statistics.GateRejections == 1
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, eng.executedCalls())
	rejected := sink.byType(models.EventAutoTradeRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "signal not executable (state=WATCH)", rejected[0].Reason)
}

func TestGatewayEngineRejectionStampsCooldown(t *testing.T) {
	eng := newFakeEngine()
	eng.execRes = models.ExecutionResult{Success: false, Reason: "order rejected by venue"}
	g := newTestGateway(t, testGatewayConfig(), eng, nil, nil)
	require.NoError(t, g.Start(context.Background(), "", false))

	g.OfferRealtime("bridge-a", models.PushedSignal{Signal: executableSignal("EURUSD")})
	assert.Eventually(t, func() bool {
		return len(eng.executedCalls()) == 1
	}, time.Second, 5*time.Millisecond)

	// a failed attempt still cools the pair down
	g.OfferRealtime("bridge-a", models.PushedSignal{Signal: executableSignal("EURUSD")})
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, eng.executedCalls(), 1)
	assert.Equal(t, 1, g.Status().Statistics.CooldownDrops)
}

func TestGatewayRunCycleGeneratesAndExecutes(t *testing.T) {
	eng := newFakeEngine()
	eng.signalErr["GBPUSD"] = errors.New("analysis upstream unavailable")
	g := newTestGateway(t, testGatewayConfig(), eng, &fakeBridge{connected: true}, nil)
	require.NoError(t, g.Start(context.Background(), "", false))

	g.RunCycle(context.Background())

	// one pair failed, the other executed; the failure never aborts the cycle
	assert.Equal(t, []string{"bridge-a|EURUSD"}, eng.executedCalls())
	st := g.Status().Statistics
	assert.Equal(t, 2, st.SignalsChecked)
	assert.Equal(t, 1, st.TradesOpened)
	assert.False(t, st.LastCycleAt.IsZero())
}

func TestGatewayRunCycleRespectsCheckInterval(t *testing.T) {
	eng := newFakeEngine()
	eng.execRes = models.ExecutionResult{Success: false, Reason: "no fill"}
	g := newTestGateway(t, testGatewayConfig(), eng, &fakeBridge{connected: true}, nil)
	require.NoError(t, g.Start(context.Background(), "", false))

	g.RunCycle(context.Background())
	checked := g.Status().Statistics.SignalsChecked

	// an immediate second cycle finds no pair due
	g.RunCycle(context.Background())
	assert.Equal(t, checked, g.Status().Statistics.SignalsChecked)
}

func TestGatewayRunCycleSkipsDisconnectedBroker(t *testing.T) {
	eng := newFakeEngine()
	bridge := &fakeBridge{connected: false}
	g := newTestGateway(t, testGatewayConfig(), eng, bridge, nil)
	require.NoError(t, g.Start(context.Background(), "", true))

	g.RunCycle(context.Background())
	assert.Empty(t, eng.executedCalls())

	// connectivity restored: the same loop picks the broker back up
	bridge.connected = true
	g.RunCycle(context.Background())
	assert.NotEmpty(t, eng.executedCalls())
}

func TestGatewayCloseAllTrades(t *testing.T) {
	eng := newFakeEngine()
	eng.open["t-EURUSD"] = &models.Trade{ID: "t-EURUSD", Pair: "EURUSD", Broker: "bridge-a", Status: models.TradeOpen}
	bridge := &fakeBridge{connected: true, quotes: []models.Quote{{Symbol: "EURUSD", Bid: 1.0999, Ask: 1.1001}}}
	g := newTestGateway(t, testGatewayConfig(), eng, bridge, nil)

	closed := g.CloseAllTrades(context.Background(), "manual close-all")
	require.Len(t, closed, 1)
	assert.Equal(t, models.TradeClosed, closed[0].Status)
	assert.InDelta(t, 1.10, closed[0].ClosePrice, 1e-9)
	assert.Equal(t, "manual close-all", closed[0].CloseReason)
	assert.Empty(t, eng.OpenTrades())
}

func TestGatewayPairManagement(t *testing.T) {
	g := newTestGateway(t, testGatewayConfig(), newFakeEngine(), nil, nil)

	g.AddPair("USDJPY")
	g.AddPair("USDJPY") // idempotent
	assert.Equal(t, []string{"EURUSD", "GBPUSD", "USDJPY"}, g.Status().Pairs)

	g.RemovePair("EURUSD")
	assert.Equal(t, []string{"GBPUSD", "USDJPY"}, g.Status().Pairs)
}

func TestGatewayStopDisablesAll(t *testing.T) {
	eng := newFakeEngine()
	g := newTestGateway(t, testGatewayConfig(), eng, nil, nil)
	require.NoError(t, g.Start(context.Background(), "bridge-a", false))

	g.Stop("")

	for _, st := range g.Status().EnabledBrokers {
		assert.False(t, st.Enabled)
	}
	g.OfferRealtime("bridge-a", models.PushedSignal{Signal: executableSignal("EURUSD")})
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, eng.executedCalls())
}

func TestRankCandidatesOrdering(t *testing.T) {
	a := scoredCandidate("bridge-a", "EURUSD", 60)
	b := scoredCandidate("bridge-a", "GBPUSD", 85)
	c := scoredCandidate("bridge-a", "USDJPY", 85)
	c.Signal.Confidence = 90
	b.Signal.Confidence = 70

	batch := []*Candidate{a, b, c}
	rankCandidates(batch)

	assert.Equal(t, "USDJPY", batch[0].Pair, "confidence breaks the score tie")
	assert.Equal(t, "GBPUSD", batch[1].Pair)
	assert.Equal(t, "EURUSD", batch[2].Pair)
}
