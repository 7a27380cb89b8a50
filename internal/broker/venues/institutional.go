package venues

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
)

// Institutional is the prime-broker REST gateway: account-scoped
// endpoints, signed units (negative = short).
type Institutional struct {
	restBase
}

// NewInstitutional creates an institutional-gateway connector.
func NewInstitutional(cfg Config) *Institutional {
	if cfg.Name == "" {
		cfg.Name = "institutional"
	}
	return &Institutional{restBase: newRestBase(cfg)}
}

func (g *Institutional) Name() string { return g.cfg.Name }
func (g *Institutional) Mode() string { return g.cfg.Mode }

func (g *Institutional) accountPath(suffix string) string {
	return "/v3/accounts/" + g.cfg.Account + suffix
}

func (g *Institutional) HealthCheck(ctx context.Context) models.HealthSnapshot {
	snap := models.HealthSnapshot{Broker: g.cfg.Name, Mode: g.cfg.Mode, CheckedAt: time.Now().UTC()}
	var a struct {
		Account struct {
			ID       string `json:"id"`
			Alias    string `json:"alias"`
			Currency string `json:"currency"`
		} `json:"account"`
	}
	if err := g.getJSON(ctx, g.accountPath("/summary"), &a); err != nil {
		snap.Error = err.Error()
		return snap
	}
	snap.Connected = a.Account.ID != ""
	snap.Details = map[string]string{"account": a.Account.ID, "currency": a.Account.Currency}
	return snap
}

type instOrderResp struct {
	OrderFillTransaction *struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"orderFillTransaction"`
	OrderRejectTransaction *struct {
		RejectReason string `json:"rejectReason"`
	} `json:"orderRejectTransaction"`
}

func (g *Institutional) PlaceOrder(ctx context.Context, order models.NormalizedOrder) (models.OrderResult, error) {
	units := order.Units
	if order.Side == models.DirectionSell {
		units = -units
	}
	payload := map[string]interface{}{
		"order": map[string]interface{}{
			"type":        "MARKET",
			"instrument":  order.Symbol,
			"units":       fmt.Sprintf("%.0f", units),
			"timeInForce": "FOK",
			"stopLossOnFill": map[string]string{
				"price": strconv.FormatFloat(order.StopLoss, 'f', 5, 64),
			},
			"takeProfitOnFill": map[string]string{
				"price": strconv.FormatFloat(order.TakeProfit, 'f', 5, 64),
			},
			"clientExtensions": map[string]string{"id": order.CorrelationID},
		},
	}
	var resp instOrderResp
	if err := g.postJSON(ctx, g.accountPath("/orders"), payload, &resp); err != nil {
		return models.OrderResult{}, err
	}
	if resp.OrderRejectTransaction != nil {
		return models.OrderResult{Success: false, Error: resp.OrderRejectTransaction.RejectReason}, nil
	}
	if resp.OrderFillTransaction == nil {
		return models.OrderResult{Success: false, Error: "no fill transaction in response"}, nil
	}
	price, _ := strconv.ParseFloat(resp.OrderFillTransaction.Price, 64)
	return models.OrderResult{Success: true, OrderID: resp.OrderFillTransaction.ID, FilledPrice: price}, nil
}

func (g *Institutional) ClosePosition(ctx context.Context, pos models.Position) (models.OrderResult, error) {
	var resp instOrderResp
	err := g.postJSON(ctx, g.accountPath("/positions/"+pos.Symbol+"/close"),
		map[string]string{"longUnits": "ALL", "shortUnits": "ALL"}, &resp)
	if err != nil {
		return models.OrderResult{}, err
	}
	if resp.OrderFillTransaction == nil {
		reason := "close rejected"
		if resp.OrderRejectTransaction != nil {
			reason = resp.OrderRejectTransaction.RejectReason
		}
		return models.OrderResult{Success: false, Error: reason}, nil
	}
	price, _ := strconv.ParseFloat(resp.OrderFillTransaction.Price, 64)
	return models.OrderResult{Success: true, OrderID: resp.OrderFillTransaction.ID, FilledPrice: price}, nil
}

func (g *Institutional) ModifyPosition(ctx context.Context, upd models.PositionUpdate) (models.OrderResult, error) {
	payload := map[string]interface{}{
		"stopLoss":   map[string]string{"price": strconv.FormatFloat(upd.StopLoss, 'f', 5, 64)},
		"takeProfit": map[string]string{"price": strconv.FormatFloat(upd.TakeProfit, 'f', 5, 64)},
	}
	var resp struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := g.postJSON(ctx, g.accountPath("/trades/"+upd.ID+"/orders"), payload, &resp); err != nil {
		return models.OrderResult{}, err
	}
	if resp.ErrorMessage != "" {
		return models.OrderResult{Success: false, Error: resp.ErrorMessage}, nil
	}
	return models.OrderResult{Success: true, OrderID: upd.ID}, nil
}

func (g *Institutional) OpenPositions(ctx context.Context) ([]models.Position, error) {
	var raw struct {
		Trades []struct {
			ID           string `json:"id"`
			Instrument   string `json:"instrument"`
			CurrentUnits string `json:"currentUnits"`
			Price        string `json:"price"`
			OpenTime     string `json:"openTime"`
		} `json:"trades"`
	}
	if err := g.getJSON(ctx, g.accountPath("/openTrades"), &raw); err != nil {
		return nil, err
	}
	out := make([]models.Position, 0, len(raw.Trades))
	for _, t := range raw.Trades {
		units, _ := strconv.ParseFloat(t.CurrentUnits, 64)
		price, _ := strconv.ParseFloat(t.Price, 64)
		side := models.DirectionBuy
		if units < 0 {
			side = models.DirectionSell
			units = -units
		}
		opened, _ := time.Parse(time.RFC3339, t.OpenTime)
		out = append(out, models.Position{
			ID: t.ID, Broker: g.cfg.Name, Symbol: t.Instrument,
			Side: side, Units: units, EntryPrice: price, OpenedAt: opened,
		})
	}
	return out, nil
}

func (g *Institutional) RecentFills(ctx context.Context) ([]models.Fill, error) {
	var raw struct {
		Transactions []struct {
			ID         string `json:"id"`
			Type       string `json:"type"`
			Instrument string `json:"instrument"`
			Units      string `json:"units"`
			Price      string `json:"price"`
			Time       string `json:"time"`
		} `json:"transactions"`
	}
	if err := g.getJSON(ctx, g.accountPath("/transactions?type=ORDER_FILL&pageSize=50"), &raw); err != nil {
		return nil, err
	}
	out := make([]models.Fill, 0, len(raw.Transactions))
	for _, t := range raw.Transactions {
		if t.Type != "ORDER_FILL" {
			continue
		}
		units, _ := strconv.ParseFloat(t.Units, 64)
		price, _ := strconv.ParseFloat(t.Price, 64)
		side := models.DirectionBuy
		if units < 0 {
			side = models.DirectionSell
			units = -units
		}
		at, _ := time.Parse(time.RFC3339, t.Time)
		out = append(out, models.Fill{ID: t.ID, Symbol: t.Instrument, Side: side, Units: units, Price: price, At: at})
	}
	return out, nil
}

func (g *Institutional) AccountSummary(ctx context.Context) (*models.AccountSummary, error) {
	var raw struct {
		Account struct {
			Currency        string `json:"currency"`
			Balance         string `json:"balance"`
			NAV             string `json:"NAV"`
			MarginUsed      string `json:"marginUsed"`
			MarginAvailable string `json:"marginAvailable"`
			OpenTradeCount  int    `json:"openTradeCount"`
		} `json:"account"`
	}
	if err := g.getJSON(ctx, g.accountPath("/summary"), &raw); err != nil {
		return nil, err
	}
	balance, _ := strconv.ParseFloat(raw.Account.Balance, 64)
	equity, _ := strconv.ParseFloat(raw.Account.NAV, 64)
	used, _ := strconv.ParseFloat(raw.Account.MarginUsed, 64)
	avail, _ := strconv.ParseFloat(raw.Account.MarginAvailable, 64)
	return &models.AccountSummary{
		Broker:          g.cfg.Name,
		Currency:        raw.Account.Currency,
		Balance:         balance,
		Equity:          equity,
		MarginUsed:      used,
		MarginAvailable: avail,
		OpenTrades:      raw.Account.OpenTradeCount,
	}, nil
}

var _ drepo.BrokerConnector = (*Institutional)(nil)
