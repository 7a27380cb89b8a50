package repository

import (
	"context"
	"time"

	"TradeGate/internal/domain/models"
)

// BrokerConnector is the uniform per-venue adapter. Order-affecting calls
// report venue rejections inside OrderResult; the error return is reserved
// for transport/auth failures so the router's breakers can count them.
type BrokerConnector interface {
	Name() string
	Mode() string
	HealthCheck(ctx context.Context) models.HealthSnapshot
	PlaceOrder(ctx context.Context, order models.NormalizedOrder) (models.OrderResult, error)
	ClosePosition(ctx context.Context, pos models.Position) (models.OrderResult, error)
	ModifyPosition(ctx context.Context, upd models.PositionUpdate) (models.OrderResult, error)
	OpenPositions(ctx context.Context) ([]models.Position, error)
	RecentFills(ctx context.Context) ([]models.Fill, error)
	AccountSummary(ctx context.Context) (*models.AccountSummary, error)
}

// SignalOptions tune a signal-generation call.
type SignalOptions struct {
	Broker       string
	EAOnly       bool
	AnalysisMode string
}

// TradingEngine is the boundary the gateway drives. Its active-trades
// store is the single source of truth for "is a trade open for this pair".
type TradingEngine interface {
	GenerateSignal(ctx context.Context, pair string, opts SignalOptions) (*models.Signal, error)
	ExecuteTrade(ctx context.Context, sig *models.Signal, broker string) models.ExecutionResult
	CloseTrade(ctx context.Context, tradeID string, currentPrice float64, reason string) (*models.Trade, error)
	ManageActiveTrades(ctx context.Context)
	OpenTrades() []*models.Trade
	HasOpenTrade(pair string) bool
}

// AnalysisSource supplies the three component analyses plus market data
// with its quality overlay. Implementations degrade, they do not panic.
type AnalysisSource interface {
	Economic(ctx context.Context, pair string) (*models.ComponentAnalysis, error)
	News(ctx context.Context, pair string) (*models.ComponentAnalysis, error)
	Technical(ctx context.Context, pair string) (*models.ComponentAnalysis, error)
	MarketData(ctx context.Context, pair string) (models.MarketSnapshot, *models.DataQuality, error)
}

// BridgeSession is the EA/terminal integration surface.
type BridgeSession interface {
	IsBrokerConnected(ctx context.Context, broker string, maxAge time.Duration) bool
	SignalForExecution(ctx context.Context, broker, symbol string) (models.PushedSignal, error)
	Quotes(ctx context.Context, broker string, maxAge time.Duration) ([]models.Quote, error)
}

// EventSink receives gateway events. Implementations must tolerate
// publish failure; callers treat publishing as best effort.
type EventSink interface {
	Publish(ctx context.Context, ev models.Event) error
}

// AuditStore persists routed-order audit entries (best effort; the
// authoritative log is the router's in-memory ring).
type AuditStore interface {
	StoreAudit(ctx context.Context, e models.AuditEntry) error
	Close() error
}

// Metrics is the operational metrics surface.
type Metrics interface {
	RecordSignal(pair string, direction string)
	RecordGateRejection(reason string)
	RecordOrder(broker, outcome string)
	SetOpenTrades(n int)
	SetBreakerState(name string, state float64)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}
