package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	"TradeGate/pkg/breaker"
	"TradeGate/pkg/logger"
)

type stubConnector struct {
	mu        sync.Mutex
	name      string
	placeErr  error
	placeRes  models.OrderResult
	lastOrder models.NormalizedOrder
	placed    int
	positions []models.Position
	posErr    error
	healthy   bool
}

func newStubConnector(name string) *stubConnector {
	return &stubConnector{
		name:     name,
		placeRes: models.OrderResult{Success: true, OrderID: "ord-1", FilledPrice: 1.1},
		healthy:  true,
	}
}

func (s *stubConnector) Name() string { return s.name }
func (s *stubConnector) Mode() string { return "demo" }

func (s *stubConnector) HealthCheck(ctx context.Context) models.HealthSnapshot {
	return models.HealthSnapshot{Broker: s.name, Mode: "demo", Connected: s.healthy}
}

func (s *stubConnector) PlaceOrder(ctx context.Context, order models.NormalizedOrder) (models.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placed++
	s.lastOrder = order
	if s.placeErr != nil {
		return models.OrderResult{}, s.placeErr
	}
	return s.placeRes, nil
}

func (s *stubConnector) ClosePosition(ctx context.Context, pos models.Position) (models.OrderResult, error) {
	return models.OrderResult{Success: true, OrderID: "close-" + pos.ID}, nil
}

func (s *stubConnector) ModifyPosition(ctx context.Context, upd models.PositionUpdate) (models.OrderResult, error) {
	return models.OrderResult{Success: true, OrderID: "mod-" + upd.ID}, nil
}

func (s *stubConnector) OpenPositions(ctx context.Context) ([]models.Position, error) {
	return s.positions, s.posErr
}

func (s *stubConnector) RecentFills(ctx context.Context) ([]models.Fill, error) {
	return nil, nil
}

func (s *stubConnector) AccountSummary(ctx context.Context) (*models.AccountSummary, error) {
	return &models.AccountSummary{Broker: s.name, Currency: "USD", Balance: 10000}, nil
}

var _ drepo.BrokerConnector = (*stubConnector)(nil)

func newTestRouter(conns []drepo.BrokerConnector, opts ...RouterOption) *Router {
	reg := breaker.NewRegistry(breaker.WithFailureThreshold(3))
	return NewRouter(conns, reg, nil, logger.Nop(), opts...)
}

func TestRouterNormalizesOrders(t *testing.T) {
	conn := newStubConnector("bridge-a")
	r := newTestRouter([]drepo.BrokerConnector{conn})

	res := r.PlaceOrder(context.Background(), models.OrderRequest{
		Symbol: "eur/usd",
		Side:   models.DirectionBuy,
		Units:  10000,
	})
	require.True(t, res.Success)

	assert.Equal(t, "EURUSD", conn.lastOrder.Symbol)
	assert.Equal(t, "GTC", conn.lastOrder.TimeInForce)
	assert.Equal(t, "bridge-a", conn.lastOrder.Broker, "empty broker falls back to the default")
	assert.NotEmpty(t, conn.lastOrder.CorrelationID)
}

func TestRouterKillSwitchRejectsEverything(t *testing.T) {
	conn := newStubConnector("bridge-a")
	r := newTestRouter([]drepo.BrokerConnector{conn}, WithKillSwitch(true))

	res := r.PlaceOrder(context.Background(), models.OrderRequest{Symbol: "EURUSD", Side: models.DirectionBuy, Units: 1})
	assert.False(t, res.Success)
	assert.Equal(t, "kill switch engaged: all new orders rejected", res.Error)
	assert.Zero(t, conn.placed, "the connector is never reached")

	res = r.ClosePosition(context.Background(), "bridge-a", models.Position{ID: "p1", Symbol: "EURUSD"})
	assert.False(t, res.Success)

	r.SetKillSwitch(false)
	res = r.PlaceOrder(context.Background(), models.OrderRequest{Symbol: "EURUSD", Side: models.DirectionBuy, Units: 1})
	assert.True(t, res.Success)
}

func TestRouterUnknownBroker(t *testing.T) {
	r := newTestRouter([]drepo.BrokerConnector{newStubConnector("bridge-a")})

	res := r.PlaceOrder(context.Background(), models.OrderRequest{Broker: "nope", Symbol: "EURUSD"})
	assert.False(t, res.Success)
	assert.Equal(t, `unknown broker "nope"`, res.Error)
}

func TestRouterVenueRejectionIsNotABreakerFailure(t *testing.T) {
	conn := newStubConnector("bridge-a")
	conn.placeRes = models.OrderResult{Success: false, Error: "insufficient margin"}
	r := newTestRouter([]drepo.BrokerConnector{conn})

	for i := 0; i < 5; i++ {
		res := r.PlaceOrder(context.Background(), models.OrderRequest{Symbol: "EURUSD", Side: models.DirectionSell, Units: 1})
		assert.False(t, res.Success)
		assert.Equal(t, "insufficient margin", res.Error)
	}

	// rejections are business outcomes; the breaker stays closed
	assert.True(t, r.BreakersHealthy())
	assert.Equal(t, 5, conn.placed)
}

func TestRouterTransportErrorsOpenBreaker(t *testing.T) {
	conn := newStubConnector("bridge-a")
	conn.placeErr = errors.New("dial tcp: connection refused")
	r := newTestRouter([]drepo.BrokerConnector{conn})

	for i := 0; i < 3; i++ {
		res := r.PlaceOrder(context.Background(), models.OrderRequest{Symbol: "EURUSD", Side: models.DirectionBuy, Units: 1})
		assert.False(t, res.Success)
	}
	assert.False(t, r.BreakersHealthy())

	// with the breaker open the connector is no longer invoked
	placedBefore := conn.placed
	res := r.PlaceOrder(context.Background(), models.OrderRequest{Symbol: "EURUSD", Side: models.DirectionBuy, Units: 1})
	assert.False(t, res.Success)
	assert.Equal(t, placedBefore, conn.placed)

	snaps := r.BreakerSnapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, "venue:bridge-a", snaps[0].Name)
	assert.Equal(t, breaker.StateOpen, snaps[0].State)
}

func TestRouterAuditRingIsBounded(t *testing.T) {
	conn := newStubConnector("bridge-a")
	r := newTestRouter([]drepo.BrokerConnector{conn}, WithAuditCap(10))

	for i := 0; i < 25; i++ {
		r.PlaceOrder(context.Background(), models.OrderRequest{
			Symbol: fmt.Sprintf("PAIR%02d", i), Side: models.DirectionBuy, Units: 1,
		})
	}

	audit := r.RecentAudit(0)
	require.Len(t, audit, 10)
	assert.Equal(t, "PAIR15", audit[0].Request.Symbol, "oldest surviving entry")
	assert.Equal(t, "PAIR24", audit[9].Request.Symbol, "newest last")

	tail := r.RecentAudit(3)
	require.Len(t, tail, 3)
	assert.Equal(t, "PAIR22", tail[0].Request.Symbol)
}

func TestRouterAuditRecordsFailuresToo(t *testing.T) {
	r := newTestRouter([]drepo.BrokerConnector{newStubConnector("bridge-a")}, WithKillSwitch(true))

	// kill-switch rejections happen before a connector is resolved and
	// are not audited; transport and venue outcomes are
	r.PlaceOrder(context.Background(), models.OrderRequest{Symbol: "EURUSD"})
	assert.Empty(t, r.RecentAudit(0))

	r.SetKillSwitch(false)
	r.PlaceOrder(context.Background(), models.OrderRequest{Symbol: "EURUSD", Side: models.DirectionBuy, Units: 1})
	audit := r.RecentAudit(0)
	require.Len(t, audit, 1)
	assert.Equal(t, "place", audit[0].Op)
	assert.True(t, audit[0].Result.Success)
}

func TestRouterHealthSnapshotsFanOut(t *testing.T) {
	a := newStubConnector("bridge-a")
	b := newStubConnector("bridge-b")
	b.healthy = false
	r := newTestRouter([]drepo.BrokerConnector{a, b})

	snaps := r.HealthSnapshots(context.Background())
	require.Len(t, snaps, 2)

	byBroker := make(map[string]models.HealthSnapshot, 2)
	for _, s := range snaps {
		byBroker[s.Broker] = s
	}
	assert.True(t, byBroker["bridge-a"].Connected)
	assert.False(t, byBroker["bridge-b"].Connected)
}

func TestRouterReconciliationToleratesVenueFailure(t *testing.T) {
	a := newStubConnector("bridge-a")
	a.positions = []models.Position{{ID: "p1", Broker: "bridge-a", Symbol: "EURUSD", Side: models.DirectionBuy, Units: 10000}}
	b := newStubConnector("bridge-b")
	b.posErr = errors.New("session expired")
	r := newTestRouter([]drepo.BrokerConnector{a, b})

	report := r.RunReconciliation(context.Background())
	require.Len(t, report.Venues, 2)

	assert.Len(t, report.Venues["bridge-a"].Positions, 1)
	assert.Empty(t, report.Venues["bridge-a"].Error)
	assert.Equal(t, "session expired", report.Venues["bridge-b"].Error)
	assert.False(t, report.LastSyncAt.IsZero())
	assert.Equal(t, report.LastSyncAt, r.LastSyncAt())
}

func TestRouterModifyPosition(t *testing.T) {
	conn := newStubConnector("bridge-a")
	r := newTestRouter([]drepo.BrokerConnector{conn})

	res := r.ModifyPosition(context.Background(), "", models.PositionUpdate{ID: "p1", Symbol: "EURUSD", StopLoss: 1.08})
	assert.True(t, res.Success)
	assert.Equal(t, "mod-p1", res.OrderID)

	audit := r.RecentAudit(1)
	require.Len(t, audit, 1)
	assert.Equal(t, "modify", audit[0].Op)
}
