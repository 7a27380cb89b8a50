package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
	"TradeGate/internal/usecase"
	"TradeGate/pkg/logger"

	"github.com/google/uuid"
)

// OrderPlacer is the slice of the broker router the engine needs.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req models.OrderRequest) models.OrderResult
	ClosePosition(ctx context.Context, broker string, pos models.Position) models.OrderResult
}

// Config tunes the default engine.
type Config struct {
	Units       float64       `yaml:"units" default:"10000"`
	QuoteMaxAge time.Duration `yaml:"quote_max_age" default:"30s"`
}

// Engine is the default trading-engine boundary: it composes the
// combiner with the analysis sources, owns the active-trades store, and
// turns validated signals into routed orders. The store is the single
// source of truth for "is a trade open for this pair".
type Engine struct {
	cfg      Config
	sources  drepo.AnalysisSource
	combiner *usecase.Combiner
	router   OrderPlacer
	bridge   drepo.BridgeSession
	metrics  drepo.Metrics
	log      *logger.Logger

	mu      sync.RWMutex
	trades  map[string]*models.Trade // by trade id
	pending map[string]bool          // pairs with an order placement in flight
}

// New creates an engine. bridge may be nil; ManageActiveTrades is then a
// no-op beyond bookkeeping.
func New(
	cfg Config,
	sources drepo.AnalysisSource,
	combiner *usecase.Combiner,
	router OrderPlacer,
	bridge drepo.BridgeSession,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Engine {
	if cfg.Units <= 0 {
		cfg.Units = 10000
	}
	if cfg.QuoteMaxAge <= 0 {
		cfg.QuoteMaxAge = 30 * time.Second
	}
	return &Engine{
		cfg:      cfg,
		sources:  sources,
		combiner: combiner,
		router:   router,
		bridge:   bridge,
		metrics:  metrics,
		log:      log,
		trades:   make(map[string]*models.Trade),
		pending:  make(map[string]bool),
	}
}

// GenerateSignal runs all three component analyses plus market data and
// combines them. Component failures degrade to neutral inputs.
func (e *Engine) GenerateSignal(ctx context.Context, pair string, opts drepo.SignalOptions) (*models.Signal, error) {
	econ, err := e.sources.Economic(ctx, pair)
	if err != nil {
		e.log.Debug("economic analysis unavailable", logger.String("pair", pair), logger.Error(err))
		econ = nil
	}
	news, err := e.sources.News(ctx, pair)
	if err != nil {
		e.log.Debug("news analysis unavailable", logger.String("pair", pair), logger.Error(err))
		news = nil
	}
	tech, err := e.sources.Technical(ctx, pair)
	if err != nil {
		e.log.Debug("technical analysis unavailable", logger.String("pair", pair), logger.Error(err))
		tech = nil
	}
	market, quality, err := e.sources.MarketData(ctx, pair)
	if err != nil {
		// missing prices are a data-quality problem, not a hard failure
		quality = &models.DataQuality{
			Modifier:       0.3,
			Status:         models.QualityCritical,
			ShouldBlock:    true,
			Recommendation: "block",
			Issues:         []string{"market data unavailable: " + err.Error()},
		}
	}

	return e.combiner.Combine(pair, econ, news, tech, market, quality), nil
}

// ExecuteTrade places an order for a validated signal. The pair is
// reserved inside the same critical section as the open-trade check and
// stays reserved until the placement settles, so concurrent attempts for
// one pair are rejected instead of doubled.
func (e *Engine) ExecuteTrade(ctx context.Context, sig *models.Signal, broker string) models.ExecutionResult {
	if sig == nil || !sig.Validity.IsValid {
		return models.ExecutionResult{Success: false, Reason: "signal is not executable"}
	}

	e.mu.Lock()
	for _, t := range e.trades {
		if t.Status == models.TradeOpen && t.Pair == sig.Pair {
			e.mu.Unlock()
			return models.ExecutionResult{Success: false, Reason: fmt.Sprintf("open trade exists for %s", sig.Pair)}
		}
	}
	if e.pending[sig.Pair] {
		e.mu.Unlock()
		return models.ExecutionResult{Success: false, Reason: fmt.Sprintf("order already in flight for %s", sig.Pair)}
	}
	e.pending[sig.Pair] = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.pending, sig.Pair)
		e.mu.Unlock()
	}()

	res := e.router.PlaceOrder(ctx, models.OrderRequest{
		Broker:     broker,
		Symbol:     sig.Pair,
		Side:       sig.Direction,
		Units:      e.cfg.Units,
		StopLoss:   sig.Entry.StopLoss,
		TakeProfit: sig.Entry.TakeProfit,
		Source:     "auto",
	})
	if !res.Success {
		return models.ExecutionResult{Success: false, Reason: res.Error}
	}

	entry := res.FilledPrice
	if entry == 0 {
		entry = sig.Entry.Price
	}
	trade := &models.Trade{
		ID:           uuid.NewString(),
		Pair:         sig.Pair,
		Direction:    sig.Direction,
		EntryPrice:   entry,
		StopLoss:     sig.Entry.StopLoss,
		TakeProfit:   sig.Entry.TakeProfit,
		Broker:       broker,
		Status:       models.TradeOpen,
		OpenedAt:     time.Now().UTC(),
		OrderID:      res.OrderID,
		OriginSignal: sig,
	}

	e.mu.Lock()
	e.trades[trade.ID] = trade
	open := e.openCountLocked()
	snap := *trade
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.SetOpenTrades(open)
	}
	return models.ExecutionResult{Success: true, Trade: &snap}
}

// CloseTrade closes one trade by id at currentPrice. The returned trade
// is a snapshot detached from the store.
func (e *Engine) CloseTrade(ctx context.Context, tradeID string, currentPrice float64, reason string) (*models.Trade, error) {
	e.mu.RLock()
	trade, ok := e.trades[tradeID]
	var snap models.Trade
	if ok {
		snap = *trade
	}
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown trade %s", tradeID)
	}
	if snap.Status == models.TradeClosed {
		return &snap, nil
	}

	res := e.router.ClosePosition(ctx, snap.Broker, models.Position{
		ID:     snap.OrderID,
		Broker: snap.Broker,
		Symbol: snap.Pair,
		Side:   snap.Direction,
		Units:  e.cfg.Units,
	})
	if !res.Success {
		return nil, fmt.Errorf("close %s: %s", tradeID, res.Error)
	}

	price := res.FilledPrice
	if price == 0 {
		price = currentPrice
	}

	e.mu.Lock()
	if trade.Status != models.TradeClosed { // lost races keep the first close
		trade.Status = models.TradeClosed
		trade.ClosedAt = time.Now().UTC()
		trade.ClosePrice = price
		trade.CloseReason = reason
	}
	snap = *trade
	open := e.openCountLocked()
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.SetOpenTrades(open)
	}

	e.log.Info("trade closed",
		logger.String("trade", tradeID),
		logger.String("pair", snap.Pair),
		logger.String("reason", reason))
	return &snap, nil
}

// ManageActiveTrades scans open trades against fresh quotes and closes
// any whose stop or target has been touched. Per-trade failures are
// logged and skipped.
func (e *Engine) ManageActiveTrades(ctx context.Context) {
	if e.bridge == nil {
		return
	}
	for _, t := range e.OpenTrades() {
		quotes, err := e.bridge.Quotes(ctx, t.Broker, e.cfg.QuoteMaxAge)
		if err != nil {
			e.log.Debug("quotes unavailable", logger.String("broker", t.Broker), logger.Error(err))
			continue
		}
		var quote *models.Quote
		for i := range quotes {
			if quotes[i].Symbol == t.Pair {
				quote = &quotes[i]
				break
			}
		}
		if quote == nil {
			continue
		}

		price, reason := e.exitFor(t, quote)
		if reason == "" {
			continue
		}
		if _, err := e.CloseTrade(ctx, t.ID, price, reason); err != nil {
			e.log.Warn("managed close failed", logger.String("trade", t.ID), logger.Error(err))
		}
	}
}

// exitFor returns the close price and reason when a stop or target is
// touched, or an empty reason when the trade stays open.
func (e *Engine) exitFor(t *models.Trade, q *models.Quote) (float64, string) {
	if t.Direction == models.DirectionBuy {
		// longs exit on bid
		if t.StopLoss > 0 && q.Bid <= t.StopLoss {
			return q.Bid, "stop loss hit"
		}
		if t.TakeProfit > 0 && q.Bid >= t.TakeProfit {
			return q.Bid, "take profit hit"
		}
		return 0, ""
	}
	if t.StopLoss > 0 && q.Ask >= t.StopLoss {
		return q.Ask, "stop loss hit"
	}
	if t.TakeProfit > 0 && q.Ask <= t.TakeProfit {
		return q.Ask, "take profit hit"
	}
	return 0, ""
}

// OpenTrades snapshots the currently open trades. The returned trades
// are copies; mutating them does not touch the store.
func (e *Engine) OpenTrades() []*models.Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*models.Trade, 0, len(e.trades))
	for _, t := range e.trades {
		if t.Status == models.TradeOpen {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

// HasOpenTrade reports whether a trade is open for pair.
func (e *Engine) HasOpenTrade(pair string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, t := range e.trades {
		if t.Status == models.TradeOpen && t.Pair == pair {
			return true
		}
	}
	return false
}

func (e *Engine) openCountLocked() int {
	n := 0
	for _, t := range e.trades {
		if t.Status == models.TradeOpen {
			n++
		}
	}
	return n
}

// ClassifyError annotates a failure for diagnostics without changing
// control flow.
func ClassifyError(err error, context string) models.ErrorClass {
	if err == nil {
		return models.ErrorClass{Type: "none", Category: "internal", Context: context}
	}
	var netErr net.Error
	msg := strings.ToLower(err.Error())
	switch {
	case errors.As(err, &netErr):
		return models.ErrorClass{Type: "transport", Category: "broker", Context: context}
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "forbidden"):
		return models.ErrorClass{Type: "auth", Category: "broker", Context: context}
	case strings.Contains(msg, "rejected"):
		return models.ErrorClass{Type: "rejected", Category: "broker", Context: context}
	case strings.Contains(msg, "stale"), strings.Contains(msg, "unavailable"):
		return models.ErrorClass{Type: "data", Category: "upstream", Context: context}
	default:
		return models.ErrorClass{Type: "unknown", Category: "internal", Context: context}
	}
}

var _ drepo.TradingEngine = (*Engine)(nil)
