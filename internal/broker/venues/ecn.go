package venues

import (
	"context"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
)

// ECN is the ECN gateway: FIX-flavored field names over REST, client
// order ids carried end to end.
type ECN struct {
	restBase
}

// NewECN creates an ECN-gateway connector.
func NewECN(cfg Config) *ECN {
	if cfg.Name == "" {
		cfg.Name = "ecn"
	}
	return &ECN{restBase: newRestBase(cfg)}
}

func (e *ECN) Name() string { return e.cfg.Name }
func (e *ECN) Mode() string { return e.cfg.Mode }

func (e *ECN) HealthCheck(ctx context.Context) models.HealthSnapshot {
	snap := models.HealthSnapshot{Broker: e.cfg.Name, Mode: e.cfg.Mode, CheckedAt: time.Now().UTC()}
	var s struct {
		SessionStatus string `json:"session_status"` // active|halted
		Venue         string `json:"venue"`
	}
	if err := e.getJSON(ctx, "/fix/session", &s); err != nil {
		snap.Error = err.Error()
		return snap
	}
	snap.Connected = s.SessionStatus == "active"
	snap.Details = map[string]string{"venue": s.Venue, "session": s.SessionStatus}
	return snap
}

type ecnExecReport struct {
	ClOrdID   string  `json:"cl_ord_id"`
	ExecID    string  `json:"exec_id"`
	OrdStatus string  `json:"ord_status"` // FILLED|REJECTED
	AvgPx     float64 `json:"avg_px"`
	Text      string  `json:"text,omitempty"`
}

func (e *ECN) PlaceOrder(ctx context.Context, order models.NormalizedOrder) (models.OrderResult, error) {
	payload := map[string]interface{}{
		"cl_ord_id":     order.CorrelationID,
		"symbol":        order.Symbol,
		"side":          string(order.Side),
		"order_qty":     order.Units,
		"ord_type":      "MARKET",
		"time_in_force": order.TimeInForce,
		"stop_px":       order.StopLoss,
		"target_px":     order.TakeProfit,
	}
	var rep ecnExecReport
	if err := e.postJSON(ctx, "/fix/orders", payload, &rep); err != nil {
		return models.OrderResult{}, err
	}
	if rep.OrdStatus != "FILLED" {
		return models.OrderResult{Success: false, Error: rep.Text}, nil
	}
	return models.OrderResult{Success: true, OrderID: rep.ExecID, FilledPrice: rep.AvgPx}, nil
}

func (e *ECN) ClosePosition(ctx context.Context, pos models.Position) (models.OrderResult, error) {
	side := models.DirectionSell
	if pos.Side == models.DirectionSell {
		side = models.DirectionBuy
	}
	payload := map[string]interface{}{
		"symbol":    pos.Symbol,
		"side":      string(side),
		"order_qty": pos.Units,
		"ord_type":  "MARKET",
		"position":  pos.ID,
	}
	var rep ecnExecReport
	if err := e.postJSON(ctx, "/fix/orders", payload, &rep); err != nil {
		return models.OrderResult{}, err
	}
	if rep.OrdStatus != "FILLED" {
		return models.OrderResult{Success: false, Error: rep.Text}, nil
	}
	return models.OrderResult{Success: true, OrderID: rep.ExecID, FilledPrice: rep.AvgPx}, nil
}

func (e *ECN) ModifyPosition(ctx context.Context, upd models.PositionUpdate) (models.OrderResult, error) {
	var rep ecnExecReport
	err := e.postJSON(ctx, "/fix/orders/"+upd.ID+"/replace", map[string]float64{
		"stop_px": upd.StopLoss, "target_px": upd.TakeProfit,
	}, &rep)
	if err != nil {
		return models.OrderResult{}, err
	}
	if rep.OrdStatus == "REJECTED" {
		return models.OrderResult{Success: false, Error: rep.Text}, nil
	}
	return models.OrderResult{Success: true, OrderID: upd.ID}, nil
}

func (e *ECN) OpenPositions(ctx context.Context) ([]models.Position, error) {
	var raw []struct {
		PositionID string  `json:"position_id"`
		Symbol     string  `json:"symbol"`
		Side       string  `json:"side"`
		Qty        float64 `json:"qty"`
		AvgPx      float64 `json:"avg_px"`
		OpenedAt   string  `json:"opened_at"`
	}
	if err := e.getJSON(ctx, "/fix/positions", &raw); err != nil {
		return nil, err
	}
	out := make([]models.Position, 0, len(raw))
	for _, p := range raw {
		opened, _ := time.Parse(time.RFC3339, p.OpenedAt)
		out = append(out, models.Position{
			ID: p.PositionID, Broker: e.cfg.Name, Symbol: p.Symbol,
			Side: models.Direction(p.Side), Units: p.Qty, EntryPrice: p.AvgPx, OpenedAt: opened,
		})
	}
	return out, nil
}

func (e *ECN) RecentFills(ctx context.Context) ([]models.Fill, error) {
	var raw []struct {
		ExecID string  `json:"exec_id"`
		Symbol string  `json:"symbol"`
		Side   string  `json:"side"`
		Qty    float64 `json:"last_qty"`
		Px     float64 `json:"last_px"`
		At     string  `json:"transact_time"`
	}
	if err := e.getJSON(ctx, "/fix/executions?limit=50", &raw); err != nil {
		return nil, err
	}
	out := make([]models.Fill, 0, len(raw))
	for _, f := range raw {
		at, _ := time.Parse(time.RFC3339, f.At)
		out = append(out, models.Fill{
			ID: f.ExecID, Symbol: f.Symbol, Side: models.Direction(f.Side),
			Units: f.Qty, Price: f.Px, At: at,
		})
	}
	return out, nil
}

func (e *ECN) AccountSummary(ctx context.Context) (*models.AccountSummary, error) {
	var a struct {
		Currency   string  `json:"currency"`
		CashBal    float64 `json:"cash_balance"`
		NetLiq     float64 `json:"net_liquidation"`
		InitMrgn   float64 `json:"initial_margin"`
		AvailFunds float64 `json:"available_funds"`
		Positions  int     `json:"open_positions"`
	}
	if err := e.getJSON(ctx, "/fix/account", &a); err != nil {
		return nil, err
	}
	return &models.AccountSummary{
		Broker:          e.cfg.Name,
		Currency:        a.Currency,
		Balance:         a.CashBal,
		Equity:          a.NetLiq,
		MarginUsed:      a.InitMrgn,
		MarginAvailable: a.AvailFunds,
		OpenTrades:      a.Positions,
	}, nil
}

var _ drepo.BrokerConnector = (*ECN)(nil)
