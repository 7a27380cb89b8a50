package venues

import (
	"context"
	"fmt"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
)

// BridgeA is the retail FX terminal bridge: a local sidecar exposing the
// terminal's trade API over REST, ticket-based position ids.
type BridgeA struct {
	restBase
}

// NewBridgeA creates a bridge-A connector.
func NewBridgeA(cfg Config) *BridgeA {
	if cfg.Name == "" {
		cfg.Name = "bridge-a"
	}
	return &BridgeA{restBase: newRestBase(cfg)}
}

func (b *BridgeA) Name() string { return b.cfg.Name }
func (b *BridgeA) Mode() string { return b.cfg.Mode }

type bridgeAHealth struct {
	Connected bool   `json:"connected"`
	Terminal  string `json:"terminal"`
	Build     int    `json:"build"`
}

func (b *BridgeA) HealthCheck(ctx context.Context) models.HealthSnapshot {
	snap := models.HealthSnapshot{Broker: b.cfg.Name, Mode: b.cfg.Mode, CheckedAt: time.Now().UTC()}
	var h bridgeAHealth
	if err := b.getJSON(ctx, "/api/health", &h); err != nil {
		snap.Error = err.Error()
		return snap
	}
	snap.Connected = h.Connected
	snap.Details = map[string]string{
		"terminal": h.Terminal,
		"build":    fmt.Sprintf("%d", h.Build),
	}
	return snap
}

type bridgeAOrderReq struct {
	Symbol     string  `json:"symbol"`
	Cmd        string  `json:"cmd"` // buy|sell
	Lots       float64 `json:"lots"`
	StopLoss   float64 `json:"sl,omitempty"`
	TakeProfit float64 `json:"tp,omitempty"`
	Comment    string  `json:"comment,omitempty"`
}

type bridgeAOrderResp struct {
	OK     bool    `json:"ok"`
	Ticket int64   `json:"ticket"`
	Price  float64 `json:"price"`
	Error  string  `json:"error,omitempty"`
}

func (b *BridgeA) PlaceOrder(ctx context.Context, order models.NormalizedOrder) (models.OrderResult, error) {
	req := bridgeAOrderReq{
		Symbol:     order.Symbol,
		Cmd:        cmdFor(order.Side),
		Lots:       order.Units / 100000, // bridge speaks standard lots
		StopLoss:   order.StopLoss,
		TakeProfit: order.TakeProfit,
		Comment:    order.CorrelationID,
	}
	var resp bridgeAOrderResp
	if err := b.postJSON(ctx, "/api/order", req, &resp); err != nil {
		return models.OrderResult{}, err
	}
	if !resp.OK {
		return models.OrderResult{Success: false, Error: resp.Error}, nil
	}
	return models.OrderResult{
		Success:     true,
		OrderID:     fmt.Sprintf("%d", resp.Ticket),
		FilledPrice: resp.Price,
	}, nil
}

func (b *BridgeA) ClosePosition(ctx context.Context, pos models.Position) (models.OrderResult, error) {
	var resp bridgeAOrderResp
	if err := b.postJSON(ctx, "/api/close", map[string]string{"ticket": pos.ID}, &resp); err != nil {
		return models.OrderResult{}, err
	}
	if !resp.OK {
		return models.OrderResult{Success: false, Error: resp.Error}, nil
	}
	return models.OrderResult{Success: true, OrderID: pos.ID, FilledPrice: resp.Price}, nil
}

func (b *BridgeA) ModifyPosition(ctx context.Context, upd models.PositionUpdate) (models.OrderResult, error) {
	var resp bridgeAOrderResp
	err := b.postJSON(ctx, "/api/modify", map[string]interface{}{
		"ticket": upd.ID, "sl": upd.StopLoss, "tp": upd.TakeProfit,
	}, &resp)
	if err != nil {
		return models.OrderResult{}, err
	}
	if !resp.OK {
		return models.OrderResult{Success: false, Error: resp.Error}, nil
	}
	return models.OrderResult{Success: true, OrderID: upd.ID}, nil
}

type bridgeAPosition struct {
	Ticket   int64   `json:"ticket"`
	Symbol   string  `json:"symbol"`
	Cmd      string  `json:"cmd"`
	Lots     float64 `json:"lots"`
	Price    float64 `json:"open_price"`
	OpenTime int64   `json:"open_time"`
}

func (b *BridgeA) OpenPositions(ctx context.Context) ([]models.Position, error) {
	var raw []bridgeAPosition
	if err := b.getJSON(ctx, "/api/positions", &raw); err != nil {
		return nil, err
	}
	out := make([]models.Position, 0, len(raw))
	for _, p := range raw {
		out = append(out, models.Position{
			ID:         fmt.Sprintf("%d", p.Ticket),
			Broker:     b.cfg.Name,
			Symbol:     p.Symbol,
			Side:       sideFor(p.Cmd),
			Units:      p.Lots * 100000,
			EntryPrice: p.Price,
			OpenedAt:   time.Unix(p.OpenTime, 0).UTC(),
		})
	}
	return out, nil
}

type bridgeAFill struct {
	Ticket    int64   `json:"ticket"`
	Symbol    string  `json:"symbol"`
	Cmd       string  `json:"cmd"`
	Lots      float64 `json:"lots"`
	Price     float64 `json:"price"`
	CloseTime int64   `json:"close_time"`
}

func (b *BridgeA) RecentFills(ctx context.Context) ([]models.Fill, error) {
	var raw []bridgeAFill
	if err := b.getJSON(ctx, "/api/history?limit=50", &raw); err != nil {
		return nil, err
	}
	out := make([]models.Fill, 0, len(raw))
	for _, f := range raw {
		out = append(out, models.Fill{
			ID:     fmt.Sprintf("%d", f.Ticket),
			Symbol: f.Symbol,
			Side:   sideFor(f.Cmd),
			Units:  f.Lots * 100000,
			Price:  f.Price,
			At:     time.Unix(f.CloseTime, 0).UTC(),
		})
	}
	return out, nil
}

type bridgeAAccount struct {
	Currency    string  `json:"currency"`
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Margin      float64 `json:"margin"`
	FreeMargin  float64 `json:"free_margin"`
	OpenOrders  int     `json:"open_orders"`
}

func (b *BridgeA) AccountSummary(ctx context.Context) (*models.AccountSummary, error) {
	var a bridgeAAccount
	if err := b.getJSON(ctx, "/api/account", &a); err != nil {
		return nil, err
	}
	return &models.AccountSummary{
		Broker:          b.cfg.Name,
		Currency:        a.Currency,
		Balance:         a.Balance,
		Equity:          a.Equity,
		MarginUsed:      a.Margin,
		MarginAvailable: a.FreeMargin,
		OpenTrades:      a.OpenOrders,
	}, nil
}

func cmdFor(side models.Direction) string {
	if side == models.DirectionSell {
		return "sell"
	}
	return "buy"
}

func sideFor(cmd string) models.Direction {
	if cmd == "sell" {
		return models.DirectionSell
	}
	return models.DirectionBuy
}

var _ drepo.BrokerConnector = (*BridgeA)(nil)
