package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	"TradeGate/pkg/breaker"
	"TradeGate/pkg/logger"

	"github.com/google/uuid"
)

// RouterOption configures Router.
type RouterOption func(*Router)

// WithDefaultBroker sets the connector used when a request names none.
func WithDefaultBroker(name string) RouterOption {
	return func(r *Router) { r.defaultBroker = name }
}

// WithAuditCap bounds the in-memory audit ring.
func WithAuditCap(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.auditCap = n
		}
	}
}

// WithAuditStore mirrors audit entries to a persistent store, best effort.
func WithAuditStore(store drepo.AuditStore) RouterOption {
	return func(r *Router) { r.store = store }
}

// WithKillSwitch sets the initial kill-switch state.
func WithKillSwitch(engaged bool) RouterOption {
	return func(r *Router) { r.kill = engaged }
}

// Router selects a connector by id, normalizes order requests, enforces
// the global kill switch, and keeps a bounded audit log of recent orders.
type Router struct {
	mu            sync.RWMutex
	connectors    map[string]drepo.BrokerConnector
	defaultBroker string
	kill          bool
	audit         []models.AuditEntry
	auditCap      int
	lastSyncAt    time.Time

	breakers *breaker.Registry
	store    drepo.AuditStore
	metrics  drepo.Metrics
	log      *logger.Logger
}

// NewRouter creates a router over the given connectors.
func NewRouter(
	connectors []drepo.BrokerConnector,
	breakers *breaker.Registry,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts ...RouterOption,
) *Router {
	r := &Router{
		connectors: make(map[string]drepo.BrokerConnector, len(connectors)),
		auditCap:   500,
		breakers:   breakers,
		metrics:    metrics,
		log:        log,
	}
	for _, c := range connectors {
		r.connectors[c.Name()] = c
		if r.defaultBroker == "" {
			r.defaultBroker = c.Name()
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetKillSwitch engages or disengages the global kill switch.
func (r *Router) SetKillSwitch(engaged bool) {
	r.mu.Lock()
	r.kill = engaged
	r.mu.Unlock()
	r.log.Warn("kill switch changed", logger.Bool("engaged", engaged))
}

// KillSwitch reports the current kill-switch state.
func (r *Router) KillSwitch() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kill
}

// Brokers lists registered connector ids.
func (r *Router) Brokers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		out = append(out, name)
	}
	return out
}

// PlaceOrder normalizes and routes an order. Kill-switch engagement and
// unknown brokers come back as structured failures, never panics.
func (r *Router) PlaceOrder(ctx context.Context, req models.OrderRequest) models.OrderResult {
	order, conn, res := r.admit(req)
	if res != nil {
		return *res
	}

	var result models.OrderResult
	err := r.guard(conn.Name()).Execute(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = conn.PlaceOrder(ctx, order)
		return callErr
	})
	if err != nil {
		result = transportFailure(err)
	}

	r.record(conn.Name(), "place", order, result)
	return result
}

// ClosePosition routes a close request for an existing position.
func (r *Router) ClosePosition(ctx context.Context, brokerName string, pos models.Position) models.OrderResult {
	if r.KillSwitch() {
		return killSwitchResult()
	}
	conn, ok := r.resolve(brokerName)
	if !ok {
		return unknownBrokerResult(brokerName)
	}

	var result models.OrderResult
	err := r.guard(conn.Name()).Execute(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = conn.ClosePosition(ctx, pos)
		return callErr
	})
	if err != nil {
		result = transportFailure(err)
	}

	r.record(conn.Name(), "close", models.NormalizedOrder{
		Broker: conn.Name(), Symbol: pos.Symbol, Side: pos.Side, Units: pos.Units,
		CorrelationID: uuid.NewString(),
	}, result)
	return result
}

// ModifyPosition routes a stop/target modification.
func (r *Router) ModifyPosition(ctx context.Context, brokerName string, upd models.PositionUpdate) models.OrderResult {
	if r.KillSwitch() {
		return killSwitchResult()
	}
	conn, ok := r.resolve(brokerName)
	if !ok {
		return unknownBrokerResult(brokerName)
	}

	var result models.OrderResult
	err := r.guard(conn.Name()).Execute(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = conn.ModifyPosition(ctx, upd)
		return callErr
	})
	if err != nil {
		result = transportFailure(err)
	}

	r.record(conn.Name(), "modify", models.NormalizedOrder{
		Broker: conn.Name(), Symbol: upd.Symbol,
		StopLoss: upd.StopLoss, TakeProfit: upd.TakeProfit,
		CorrelationID: uuid.NewString(),
	}, result)
	return result
}

// HealthSnapshots fans out health checks to every connector
// concurrently. A failing connector reports Connected=false instead of
// aborting the batch; this method never fails.
func (r *Router) HealthSnapshots(ctx context.Context) []models.HealthSnapshot {
	r.mu.RLock()
	conns := make([]drepo.BrokerConnector, 0, len(r.connectors))
	for _, c := range r.connectors {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	out := make([]models.HealthSnapshot, len(conns))
	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func(i int, c drepo.BrokerConnector) {
			defer wg.Done()
			start := time.Now()
			out[i] = c.HealthCheck(ctx)
			if r.metrics != nil {
				r.metrics.RecordLatency("health_check", time.Since(start).Seconds())
			}
		}(i, c)
	}
	wg.Wait()
	return out
}

// RunReconciliation fans out open-positions/fills/account fetches per
// connector, tolerating individual venue failures.
func (r *Router) RunReconciliation(ctx context.Context) models.ReconciliationReport {
	r.mu.RLock()
	conns := make([]drepo.BrokerConnector, 0, len(r.connectors))
	for _, c := range r.connectors {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	report := models.ReconciliationReport{Venues: make(map[string]models.VenueReconciliation, len(conns))}
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, c := range conns {
		wg.Add(1)
		go func(c drepo.BrokerConnector) {
			defer wg.Done()
			vr := models.VenueReconciliation{Broker: c.Name()}

			positions, err := c.OpenPositions(ctx)
			if err != nil {
				vr.Error = err.Error()
			} else {
				vr.Positions = positions
			}
			if fills, err := c.RecentFills(ctx); err == nil {
				vr.Fills = fills
			} else if vr.Error == "" {
				vr.Error = err.Error()
			}
			if acct, err := c.AccountSummary(ctx); err == nil {
				vr.Account = acct
			} else if vr.Error == "" {
				vr.Error = err.Error()
			}

			mu.Lock()
			report.Venues[c.Name()] = vr
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	report.LastSyncAt = time.Now().UTC()
	r.mu.Lock()
	r.lastSyncAt = report.LastSyncAt
	r.mu.Unlock()
	return report
}

// RecentAudit returns up to n most recent audit entries, newest last.
func (r *Router) RecentAudit(n int) []models.AuditEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > len(r.audit) {
		n = len(r.audit)
	}
	out := make([]models.AuditEntry, n)
	copy(out, r.audit[len(r.audit)-n:])
	return out
}

// BreakersHealthy reports true iff no venue breaker is open.
func (r *Router) BreakersHealthy() bool {
	return r.breakers.Healthy()
}

// BreakerSnapshots exposes the per-venue breaker states.
func (r *Router) BreakerSnapshots() []breaker.Snapshot {
	return r.breakers.Snapshots()
}

// LastSyncAt reports when reconciliation last completed.
func (r *Router) LastSyncAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSyncAt
}

// admit runs the shared pre-flight for order placement: kill switch,
// connector resolution, normalization.
func (r *Router) admit(req models.OrderRequest) (models.NormalizedOrder, drepo.BrokerConnector, *models.OrderResult) {
	if r.KillSwitch() {
		res := killSwitchResult()
		return models.NormalizedOrder{}, nil, &res
	}
	conn, ok := r.resolve(req.Broker)
	if !ok {
		res := unknownBrokerResult(req.Broker)
		return models.NormalizedOrder{}, nil, &res
	}
	return r.normalize(req, conn.Name()), conn, nil
}

// normalize turns a request into the canonical order shape every
// connector receives.
func (r *Router) normalize(req models.OrderRequest, brokerName string) models.NormalizedOrder {
	tif := req.TimeInForce
	if tif == "" {
		tif = "GTC"
	}
	return models.NormalizedOrder{
		Broker:        brokerName,
		Symbol:        strings.ToUpper(strings.NewReplacer("/", "", "_", "").Replace(req.Symbol)),
		Side:          req.Side,
		Units:         req.Units,
		StopLoss:      req.StopLoss,
		TakeProfit:    req.TakeProfit,
		TimeInForce:   tif,
		CorrelationID: uuid.NewString(),
		Source:        req.Source,
		Comment:       req.Comment,
	}
}

func (r *Router) resolve(name string) (drepo.BrokerConnector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultBroker
	}
	c, ok := r.connectors[name]
	return c, ok
}

func (r *Router) guard(name string) *breaker.Breaker {
	return r.breakers.Get("venue:" + name)
}

// record appends to the bounded audit ring and mirrors to the persistent
// store best effort.
func (r *Router) record(brokerName, op string, order models.NormalizedOrder, result models.OrderResult) {
	entry := models.AuditEntry{
		Broker:  brokerName,
		Op:      op,
		Request: order,
		Result:  result,
		At:      time.Now().UTC(),
	}

	r.mu.Lock()
	r.audit = append(r.audit, entry)
	if len(r.audit) > r.auditCap {
		r.audit = r.audit[len(r.audit)-r.auditCap:]
	}
	r.mu.Unlock()

	if r.metrics != nil {
		outcome := "rejected"
		if result.Success {
			outcome = "accepted"
		}
		r.metrics.RecordOrder(brokerName, outcome)
	}

	if r.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.store.StoreAudit(ctx, entry); err != nil {
			r.log.Debug("audit store write failed", logger.Error(err))
		}
	}
}

func killSwitchResult() models.OrderResult {
	return models.OrderResult{Success: false, Error: "kill switch engaged: all new orders rejected"}
}

func unknownBrokerResult(name string) models.OrderResult {
	return models.OrderResult{Success: false, Error: fmt.Sprintf("unknown broker %q", name)}
}

func transportFailure(err error) models.OrderResult {
	return models.OrderResult{Success: false, Error: err.Error()}
}
