package venues

import (
	"context"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
)

// BridgeB is the second retail FX bridge. Same concept as bridge A but a
// different sidecar generation: string deal ids, volume in units.
type BridgeB struct {
	restBase
}

// NewBridgeB creates a bridge-B connector.
func NewBridgeB(cfg Config) *BridgeB {
	if cfg.Name == "" {
		cfg.Name = "bridge-b"
	}
	return &BridgeB{restBase: newRestBase(cfg)}
}

func (b *BridgeB) Name() string { return b.cfg.Name }
func (b *BridgeB) Mode() string { return b.cfg.Mode }

type bridgeBStatus struct {
	State   string `json:"state"` // connected|disconnected
	Server  string `json:"server"`
	Account string `json:"account"`
}

func (b *BridgeB) HealthCheck(ctx context.Context) models.HealthSnapshot {
	snap := models.HealthSnapshot{Broker: b.cfg.Name, Mode: b.cfg.Mode, CheckedAt: time.Now().UTC()}
	var s bridgeBStatus
	if err := b.getJSON(ctx, "/v2/status", &s); err != nil {
		snap.Error = err.Error()
		return snap
	}
	snap.Connected = s.State == "connected"
	snap.Details = map[string]string{"server": s.Server, "account": s.Account}
	return snap
}

type bridgeBDeal struct {
	DealID string  `json:"deal_id"`
	Status string  `json:"status"` // filled|rejected
	Price  float64 `json:"price"`
	Reason string  `json:"reason,omitempty"`
}

func (b *BridgeB) PlaceOrder(ctx context.Context, order models.NormalizedOrder) (models.OrderResult, error) {
	payload := map[string]interface{}{
		"symbol":     order.Symbol,
		"action":     string(order.Side),
		"volume":     order.Units,
		"sl":         order.StopLoss,
		"tp":         order.TakeProfit,
		"tif":        order.TimeInForce,
		"client_ref": order.CorrelationID,
	}
	var deal bridgeBDeal
	if err := b.postJSON(ctx, "/v2/deals", payload, &deal); err != nil {
		return models.OrderResult{}, err
	}
	if deal.Status != "filled" {
		return models.OrderResult{Success: false, Error: deal.Reason}, nil
	}
	return models.OrderResult{Success: true, OrderID: deal.DealID, FilledPrice: deal.Price}, nil
}

func (b *BridgeB) ClosePosition(ctx context.Context, pos models.Position) (models.OrderResult, error) {
	var deal bridgeBDeal
	if err := b.postJSON(ctx, "/v2/deals/"+pos.ID+"/close", nil, &deal); err != nil {
		return models.OrderResult{}, err
	}
	if deal.Status != "filled" {
		return models.OrderResult{Success: false, Error: deal.Reason}, nil
	}
	return models.OrderResult{Success: true, OrderID: deal.DealID, FilledPrice: deal.Price}, nil
}

func (b *BridgeB) ModifyPosition(ctx context.Context, upd models.PositionUpdate) (models.OrderResult, error) {
	var deal bridgeBDeal
	err := b.postJSON(ctx, "/v2/deals/"+upd.ID+"/modify", map[string]float64{
		"sl": upd.StopLoss, "tp": upd.TakeProfit,
	}, &deal)
	if err != nil {
		return models.OrderResult{}, err
	}
	if deal.Status == "rejected" {
		return models.OrderResult{Success: false, Error: deal.Reason}, nil
	}
	return models.OrderResult{Success: true, OrderID: upd.ID}, nil
}

type bridgeBPosition struct {
	DealID   string  `json:"deal_id"`
	Symbol   string  `json:"symbol"`
	Action   string  `json:"action"`
	Volume   float64 `json:"volume"`
	Price    float64 `json:"open_price"`
	OpenedAt string  `json:"opened_at"`
}

func (b *BridgeB) OpenPositions(ctx context.Context) ([]models.Position, error) {
	var raw struct {
		Positions []bridgeBPosition `json:"positions"`
	}
	if err := b.getJSON(ctx, "/v2/positions", &raw); err != nil {
		return nil, err
	}
	out := make([]models.Position, 0, len(raw.Positions))
	for _, p := range raw.Positions {
		opened, _ := time.Parse(time.RFC3339, p.OpenedAt)
		out = append(out, models.Position{
			ID:         p.DealID,
			Broker:     b.cfg.Name,
			Symbol:     p.Symbol,
			Side:       models.Direction(p.Action),
			Units:      p.Volume,
			EntryPrice: p.Price,
			OpenedAt:   opened,
		})
	}
	return out, nil
}

func (b *BridgeB) RecentFills(ctx context.Context) ([]models.Fill, error) {
	var raw struct {
		Fills []struct {
			DealID   string  `json:"deal_id"`
			Symbol   string  `json:"symbol"`
			Action   string  `json:"action"`
			Volume   float64 `json:"volume"`
			Price    float64 `json:"price"`
			FilledAt string  `json:"filled_at"`
		} `json:"fills"`
	}
	if err := b.getJSON(ctx, "/v2/fills?limit=50", &raw); err != nil {
		return nil, err
	}
	out := make([]models.Fill, 0, len(raw.Fills))
	for _, f := range raw.Fills {
		at, _ := time.Parse(time.RFC3339, f.FilledAt)
		out = append(out, models.Fill{
			ID:     f.DealID,
			Symbol: f.Symbol,
			Side:   models.Direction(f.Action),
			Units:  f.Volume,
			Price:  f.Price,
			At:     at,
		})
	}
	return out, nil
}

func (b *BridgeB) AccountSummary(ctx context.Context) (*models.AccountSummary, error) {
	var a struct {
		Currency   string  `json:"currency"`
		Balance    float64 `json:"balance"`
		Equity     float64 `json:"equity"`
		UsedMargin float64 `json:"used_margin"`
		Available  float64 `json:"available"`
		Open       int     `json:"open_positions"`
	}
	if err := b.getJSON(ctx, "/v2/account", &a); err != nil {
		return nil, err
	}
	return &models.AccountSummary{
		Broker:          b.cfg.Name,
		Currency:        a.Currency,
		Balance:         a.Balance,
		Equity:          a.Equity,
		MarginUsed:      a.UsedMargin,
		MarginAvailable: a.Available,
		OpenTrades:      a.Open,
	}, nil
}

var _ drepo.BrokerConnector = (*BridgeB)(nil)
