package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	"TradeGate/internal/service/ratelimit"
	"TradeGate/pkg/logger"
)

// GatewayConfig collects every recognized gateway option with its
// default, instead of scattering fallbacks across call sites.
type GatewayConfig struct {
	Pairs                []string      `yaml:"pairs"`
	DefaultBroker        string        `yaml:"default_broker"`
	SignalCheckInterval  time.Duration `yaml:"signal_check_interval" default:"15m"`
	MonitorInterval      time.Duration `yaml:"monitor_interval" default:"10s"`
	RealtimeDebounce     time.Duration `yaml:"realtime_debounce" default:"500ms"`
	TradeCooldown        time.Duration `yaml:"trade_cooldown" default:"3m"`
	MaxNewTradesPerCycle int           `yaml:"max_new_trades_per_cycle" default:"1"`
	MaxOrdersPerMinute   float64       `yaml:"max_orders_per_minute" default:"6"`
	BridgeMaxAge         time.Duration `yaml:"bridge_max_age" default:"90s"`
	Gate                 GateConfig    `yaml:"gate"`
}

func (c *GatewayConfig) applyDefaults() {
	if c.SignalCheckInterval <= 0 {
		c.SignalCheckInterval = 15 * time.Minute
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = 10 * time.Second
	}
	if c.RealtimeDebounce <= 0 {
		c.RealtimeDebounce = 500 * time.Millisecond
	}
	if c.TradeCooldown <= 0 {
		c.TradeCooldown = 3 * time.Minute
	}
	if c.MaxNewTradesPerCycle <= 0 {
		c.MaxNewTradesPerCycle = 1
	}
	if c.MaxOrdersPerMinute <= 0 {
		c.MaxOrdersPerMinute = 6
	}
	if c.BridgeMaxAge <= 0 {
		c.BridgeMaxAge = 90 * time.Second
	}
}

type brokerState struct {
	enabled   bool
	connected bool
}

// Gateway is the trade manager: it polls for signals per tracked pair,
// accepts a push stream of high-conviction signals, applies the
// execution gate, and drives the trading engine.
type Gateway struct {
	cfg     GatewayConfig
	engine  drepo.TradingEngine
	bridge  drepo.BridgeSession
	events  drepo.EventSink
	metrics drepo.Metrics
	log     *logger.Logger
	limiter *ratelimit.Limiter
	now     func() time.Time

	mu          sync.Mutex
	brokers     map[string]*brokerState
	pairs       []string
	cooldowns   map[string]time.Time // broker|pair -> last execution attempt
	lastChecked map[string]time.Time // broker|pair -> last scheduled check
	stats       models.GatewayStatistics

	rt *realtimeQueue

	loopStop    chan struct{}
	monitorStop chan struct{}
}

// NewGateway wires a gateway. events may be nil (no-op), bridge may be
// nil (brokers treated as connected).
func NewGateway(
	cfg GatewayConfig,
	engine drepo.TradingEngine,
	bridge drepo.BridgeSession,
	events drepo.EventSink,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Gateway {
	cfg.applyDefaults()
	g := &Gateway{
		cfg:         cfg,
		engine:      engine,
		bridge:      bridge,
		events:      events,
		metrics:     metrics,
		log:         log,
		limiter:     ratelimit.New(),
		now:         time.Now,
		brokers:     make(map[string]*brokerState),
		pairs:       append([]string(nil), cfg.Pairs...),
		cooldowns:   make(map[string]time.Time),
		lastChecked: make(map[string]time.Time),
	}
	g.rt = newRealtimeQueue(cfg.RealtimeDebounce, g.flushRealtime)
	return g
}

// Start enables auto-trading for broker. A failing health check records
// the broker as disconnected but still arms the loops so trading resumes
// automatically once connectivity returns; pass allowDisconnected=false
// to refuse instead.
func (g *Gateway) Start(ctx context.Context, broker string, allowDisconnected bool) error {
	if broker == "" {
		broker = g.cfg.DefaultBroker
	}
	if broker == "" {
		return fmt.Errorf("no broker specified and no default configured")
	}

	connected := g.brokerConnected(ctx, broker)
	if !connected && !allowDisconnected {
		return fmt.Errorf("broker %s is not connected", broker)
	}

	g.mu.Lock()
	st, ok := g.brokers[broker]
	if !ok {
		st = &brokerState{}
		g.brokers[broker] = st
	}
	st.enabled = true
	st.connected = connected
	g.mu.Unlock()

	g.log.Info("auto-trading enabled",
		logger.String("broker", broker),
		logger.Bool("connected", connected))

	g.ensureSignalLoop()
	g.ensureMonitor()
	return nil
}

// Stop disables auto-trading for broker (all brokers when empty). The
// monitoring timer keeps running as long as any trade remains open.
func (g *Gateway) Stop(broker string) {
	g.mu.Lock()
	if broker == "" {
		for _, st := range g.brokers {
			st.enabled = false
		}
	} else if st, ok := g.brokers[broker]; ok {
		st.enabled = false
	}
	anyEnabled := g.anyEnabledLocked()
	g.mu.Unlock()

	g.log.Info("auto-trading disabled", logger.String("broker", broker))

	if !anyEnabled {
		g.stopSignalLoop()
		g.rt.Stop()
	}
	// monitor shuts itself down once no broker is enabled and no trade
	// remains open
}

// AddPair adds an instrument to the tracked set.
func (g *Gateway) AddPair(pair string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.pairs {
		if p == pair {
			return
		}
	}
	g.pairs = append(g.pairs, pair)
}

// RemovePair removes an instrument from the tracked set.
func (g *Gateway) RemovePair(pair string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.pairs[:0]
	for _, p := range g.pairs {
		if p != pair {
			out = append(out, p)
		}
	}
	g.pairs = out
}

// Status reports the gateway's current view.
func (g *Gateway) Status() models.GatewayStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	states := make([]models.BrokerState, 0, len(g.brokers))
	for name, st := range g.brokers {
		states = append(states, models.BrokerState{Broker: name, Enabled: st.enabled, Connected: st.connected})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Broker < states[j].Broker })

	return models.GatewayStatus{
		EnabledBrokers: states,
		Pairs:          append([]string(nil), g.pairs...),
		ActiveTrades:   g.engine.OpenTrades(),
		Statistics:     g.stats,
	}
}

// CloseAllTrades closes every open trade at the best known price.
func (g *Gateway) CloseAllTrades(ctx context.Context, reason string) []*models.Trade {
	closed := make([]*models.Trade, 0)
	for _, t := range g.engine.OpenTrades() {
		price := g.lastPrice(ctx, t.Broker, t.Pair)
		ct, err := g.engine.CloseTrade(ctx, t.ID, price, reason)
		if err != nil {
			g.log.Warn("close trade failed",
				logger.String("trade", t.ID), logger.Error(err))
			continue
		}
		closed = append(closed, ct)
	}
	return closed
}

// OfferRealtime feeds a pushed high-conviction signal into the fast
// lane. Candidates inside the per-(broker,pair) cooldown are dropped
// before gating.
func (g *Gateway) OfferRealtime(broker string, ps models.PushedSignal) {
	if ps.Signal == nil {
		return
	}
	if broker == "" {
		broker = g.cfg.DefaultBroker
	}

	g.mu.Lock()
	enabled := false
	if st, ok := g.brokers[broker]; ok {
		enabled = st.enabled
	}
	inCooldown := g.inCooldownLocked(broker, ps.Signal.Pair)
	if inCooldown {
		g.stats.CooldownDrops++
	}
	g.mu.Unlock()

	if !enabled {
		return
	}
	if inCooldown {
		g.log.Debug("realtime candidate in cooldown",
			logger.String("broker", broker), logger.String("pair", ps.Signal.Pair))
		return
	}

	g.rt.Offer(&Candidate{
		Broker:        broker,
		Pair:          ps.Signal.Pair,
		Signal:        ps.Signal,
		ShouldExecute: ps.ShouldExecute,
		EnqueuedAt:    g.now(),
	})
}

// flushRealtime ranks and executes one debounce window's candidates with
// the same gate/open logic as the scheduled path.
func (g *Gateway) flushRealtime(batch []*Candidate) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	g.runCandidates(ctx, batch, "realtime")
}

// runCandidates gates, ranks and opens at most MaxNewTradesPerCycle
// trades, highest-ranked first. One candidate's failure never aborts the
// rest.
func (g *Gateway) runCandidates(ctx context.Context, batch []*Candidate, source string) {
	rankCandidates(batch)

	opened := 0
	for _, c := range batch {
		if opened >= g.cfg.MaxNewTradesPerCycle {
			break
		}
		decision := EvaluateGate(g.cfg.Gate, GateInput{
			Broker:        c.Broker,
			Source:        source,
			Signal:        c.Signal,
			ShouldExecute: c.ShouldExecute,
			HasOpenTrade:  g.engine.HasOpenTrade(c.Pair),
		})
		if !decision.OK {
			g.rejectCandidate(ctx, c, source, decision.Reason)
			continue
		}
		if g.executeCandidate(ctx, c, source) {
			opened++
		}
	}
}

// executeCandidate attempts one execution. The cooldown stamp is
// recorded for every attempt, successful or not.
func (g *Gateway) executeCandidate(ctx context.Context, c *Candidate, source string) bool {
	g.mu.Lock()
	g.cooldowns[cooldownKey(c.Broker, c.Pair)] = g.now()
	g.mu.Unlock()

	if !g.limiter.Allow("orders:"+c.Broker, g.cfg.MaxOrdersPerMinute, g.cfg.MaxOrdersPerMinute/60) {
		g.rejectCandidate(ctx, c, source, "order rate limit exceeded")
		return false
	}

	g.publish(ctx, models.Event{
		Type:   models.EventAutoTradeAttempt,
		Broker: c.Broker,
		Pair:   c.Pair,
		Source: source,
		Signal: c.Signal,
		At:     g.now(),
	})

	res := g.engine.ExecuteTrade(ctx, c.Signal, c.Broker)
	if !res.Success {
		g.mu.Lock()
		g.stats.GateRejections++
		g.mu.Unlock()
		if g.metrics != nil {
			g.metrics.RecordOrder(c.Broker, "rejected")
		}
		g.publish(ctx, models.Event{
			Type:   models.EventAutoTradeRejected,
			Broker: c.Broker,
			Pair:   c.Pair,
			Source: source,
			Reason: res.Reason,
			At:     g.now(),
		})
		g.log.Warn("auto trade rejected",
			logger.String("broker", c.Broker),
			logger.String("pair", c.Pair),
			logger.String("reason", res.Reason))
		return false
	}

	g.mu.Lock()
	g.stats.TradesOpened++
	g.mu.Unlock()
	if g.metrics != nil {
		g.metrics.RecordOrder(c.Broker, "opened")
	}
	g.publish(ctx, models.Event{
		Type:   models.EventTradeOpened,
		Broker: c.Broker,
		Pair:   c.Pair,
		Source: source,
		Trade:  res.Trade,
		At:     g.now(),
	})
	g.log.Info("trade opened",
		logger.String("broker", c.Broker),
		logger.String("pair", c.Pair),
		logger.String("direction", string(c.Signal.Direction)))

	g.ensureMonitor()
	return true
}

func (g *Gateway) rejectCandidate(ctx context.Context, c *Candidate, source, reason string) {
	g.mu.Lock()
	g.stats.GateRejections++
	g.mu.Unlock()
	if g.metrics != nil {
		g.metrics.RecordGateRejection(reason)
	}
	g.publish(ctx, models.Event{
		Type:   models.EventAutoTradeRejected,
		Broker: c.Broker,
		Pair:   c.Pair,
		Source: source,
		Reason: reason,
		Signal: c.Signal,
		At:     g.now(),
	})
}

// --- scheduled path ---

func (g *Gateway) ensureSignalLoop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loopStop != nil {
		return
	}
	stop := make(chan struct{})
	g.loopStop = stop
	go g.signalLoop(stop)
}

func (g *Gateway) stopSignalLoop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loopStop != nil {
		close(g.loopStop)
		g.loopStop = nil
	}
}

func (g *Gateway) signalLoop(stop chan struct{}) {
	ticker := time.NewTicker(g.cfg.SignalCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), g.cfg.SignalCheckInterval/2)
			g.RunCycle(ctx)
			cancel()
		}
	}
}

// RunCycle executes one scheduled signal-generation pass for every
// enabled broker. Exported so operators can trigger it out of schedule.
func (g *Gateway) RunCycle(ctx context.Context) {
	g.mu.Lock()
	brokers := make([]string, 0, len(g.brokers))
	for name, st := range g.brokers {
		if st.enabled {
			brokers = append(brokers, name)
		}
	}
	pairs := append([]string(nil), g.pairs...)
	g.stats.LastCycleAt = g.now()
	g.mu.Unlock()
	sort.Strings(brokers)

	for _, broker := range brokers {
		connected := g.brokerConnected(ctx, broker)
		g.mu.Lock()
		if st, ok := g.brokers[broker]; ok {
			st.connected = connected
		}
		g.mu.Unlock()
		if !connected {
			g.log.Debug("broker idle: disconnected", logger.String("broker", broker))
			continue
		}
		g.cycleBroker(ctx, broker, pairs)
	}
}

func (g *Gateway) cycleBroker(ctx context.Context, broker string, pairs []string) {
	batch := make([]*Candidate, 0, len(pairs))
	for _, pair := range pairs {
		key := cooldownKey(broker, pair)

		g.mu.Lock()
		last := g.lastChecked[key]
		due := g.now().Sub(last) >= g.cfg.SignalCheckInterval
		if due {
			g.lastChecked[key] = g.now()
		}
		inCooldown := g.inCooldownLocked(broker, pair)
		g.mu.Unlock()
		if !due || inCooldown {
			continue
		}

		sig, err := g.engine.GenerateSignal(ctx, pair, drepo.SignalOptions{Broker: broker})
		g.mu.Lock()
		g.stats.SignalsChecked++
		g.mu.Unlock()
		if err != nil {
			// one pair's failure never aborts the cycle
			if g.metrics != nil {
				g.metrics.RecordError("signal_generation")
			}
			g.log.Warn("signal generation failed",
				logger.String("broker", broker),
				logger.String("pair", pair),
				logger.Error(err))
			continue
		}
		batch = append(batch, &Candidate{
			Broker:     broker,
			Pair:       pair,
			Signal:     sig,
			EnqueuedAt: g.now(),
		})
	}
	g.runCandidates(ctx, batch, "scheduled")
}

// --- monitoring path ---

// ensureMonitor arms the trade-monitoring timer. The loop disarms itself
// once no broker is enabled and no trade remains open.
func (g *Gateway) ensureMonitor() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.monitorStop != nil {
		return
	}
	stop := make(chan struct{})
	g.monitorStop = stop
	go g.monitorLoop(stop)
}

func (g *Gateway) monitorLoop(stop chan struct{}) {
	ticker := time.NewTicker(g.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.mu.Lock()
			anyEnabled := g.anyEnabledLocked()
			g.mu.Unlock()

			openTrades := len(g.engine.OpenTrades())
			if !anyEnabled && openTrades == 0 {
				g.mu.Lock()
				if g.monitorStop != nil {
					close(g.monitorStop)
					g.monitorStop = nil
				}
				g.mu.Unlock()
				g.log.Debug("trade monitor stopped: idle")
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), g.cfg.MonitorInterval)
			g.engine.ManageActiveTrades(ctx)
			if g.metrics != nil {
				g.metrics.SetOpenTrades(openTrades)
			}
			cancel()
		}
	}
}

// Shutdown stops all loops unconditionally.
func (g *Gateway) Shutdown() {
	g.stopSignalLoop()
	g.rt.Stop()
	g.mu.Lock()
	if g.monitorStop != nil {
		close(g.monitorStop)
		g.monitorStop = nil
	}
	g.mu.Unlock()
}

// --- helpers ---

func (g *Gateway) brokerConnected(ctx context.Context, broker string) bool {
	if g.bridge == nil {
		return true
	}
	return g.bridge.IsBrokerConnected(ctx, broker, g.cfg.BridgeMaxAge)
}

func (g *Gateway) lastPrice(ctx context.Context, broker, pair string) float64 {
	if g.bridge == nil {
		return 0
	}
	quotes, err := g.bridge.Quotes(ctx, broker, g.cfg.BridgeMaxAge)
	if err != nil {
		return 0
	}
	for _, q := range quotes {
		if q.Symbol == pair {
			return (q.Bid + q.Ask) / 2
		}
	}
	return 0
}

// publish is best effort: a sink failure is logged, never propagated.
func (g *Gateway) publish(ctx context.Context, ev models.Event) {
	if g.events == nil {
		return
	}
	if err := g.events.Publish(ctx, ev); err != nil {
		g.log.Debug("event publish failed",
			logger.String("type", ev.Type), logger.Error(err))
	}
}

func (g *Gateway) anyEnabledLocked() bool {
	for _, st := range g.brokers {
		if st.enabled {
			return true
		}
	}
	return false
}

func (g *Gateway) inCooldownLocked(broker, pair string) bool {
	last, ok := g.cooldowns[cooldownKey(broker, pair)]
	return ok && g.now().Sub(last) < g.cfg.TradeCooldown
}

func cooldownKey(broker, pair string) string { return broker + "|" + pair }

// rankCandidates orders by decision score, then confidence, then
// strength, all descending, so higher-conviction signals are never
// starved by lower ones that arrived earlier in the same window.
func rankCandidates(batch []*Candidate) {
	sort.SliceStable(batch, func(i, j int) bool {
		a, b := batch[i].Signal, batch[j].Signal
		if a.DecisionScore() != b.DecisionScore() {
			return a.DecisionScore() > b.DecisionScore()
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Strength > b.Strength
	})
}
