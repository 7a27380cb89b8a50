package models

import "time"

// OrderRequest is the caller-facing order shape before normalization.
type OrderRequest struct {
	Broker      string    `json:"broker,omitempty"` // router default when empty
	Symbol      string    `json:"symbol"`
	Side        Direction `json:"side"`
	Units       float64   `json:"units"`
	StopLoss    float64   `json:"stop_loss,omitempty"`
	TakeProfit  float64   `json:"take_profit,omitempty"`
	TimeInForce string    `json:"time_in_force,omitempty"`
	Source      string    `json:"source,omitempty"` // scheduled|realtime|manual
	Comment     string    `json:"comment,omitempty"`
}

// NormalizedOrder is the canonical shape every connector receives.
type NormalizedOrder struct {
	Broker        string    `json:"broker"`
	Symbol        string    `json:"symbol"`
	Side          Direction `json:"side"`
	Units         float64   `json:"units"`
	StopLoss      float64   `json:"stop_loss,omitempty"`
	TakeProfit    float64   `json:"take_profit,omitempty"`
	TimeInForce   string    `json:"time_in_force"`
	CorrelationID string    `json:"correlation_id"`
	Source        string    `json:"source,omitempty"`
	Comment       string    `json:"comment,omitempty"`
}

// OrderResult is a connector's answer to an order-affecting call.
// Expected failures are values here, never panics.
type OrderResult struct {
	Success     bool    `json:"success"`
	OrderID     string  `json:"order_id,omitempty"`
	FilledPrice float64 `json:"filled_price,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Position is an open position as reported by a venue.
type Position struct {
	ID         string    `json:"id"`
	Broker     string    `json:"broker"`
	Symbol     string    `json:"symbol"`
	Side       Direction `json:"side"`
	Units      float64   `json:"units"`
	EntryPrice float64   `json:"entry_price"`
	OpenedAt   time.Time `json:"opened_at"`
}

// PositionUpdate modifies stops on an existing position.
type PositionUpdate struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
}

// Fill is a recent execution reported by a venue.
type Fill struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Side   Direction `json:"side"`
	Units  float64   `json:"units"`
	Price  float64   `json:"price"`
	At     time.Time `json:"at"`
}

// AccountSummary is a venue account snapshot.
type AccountSummary struct {
	Broker          string  `json:"broker"`
	Currency        string  `json:"currency"`
	Balance         float64 `json:"balance"`
	Equity          float64 `json:"equity"`
	MarginUsed      float64 `json:"margin_used"`
	MarginAvailable float64 `json:"margin_available"`
	OpenTrades      int     `json:"open_trades"`
}

// HealthSnapshot is the result of one connector health check. A failing
// connector reports Connected=false with Error set; it never aborts the
// batch it was collected in.
type HealthSnapshot struct {
	Broker    string            `json:"broker"`
	Mode      string            `json:"mode"` // demo|real
	Connected bool              `json:"connected"`
	Error     string            `json:"error,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	CheckedAt time.Time         `json:"checked_at"`
}

// VenueReconciliation is one venue's slice of a reconciliation run.
type VenueReconciliation struct {
	Broker    string          `json:"broker"`
	Positions []Position      `json:"positions"`
	Fills     []Fill          `json:"fills"`
	Account   *AccountSummary `json:"account,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ReconciliationReport aggregates per-venue reconciliation results.
type ReconciliationReport struct {
	Venues     map[string]VenueReconciliation `json:"venues"`
	LastSyncAt time.Time                      `json:"last_sync_at"`
}

// AuditEntry records one routed order-affecting call.
type AuditEntry struct {
	Broker  string          `json:"broker"`
	Op      string          `json:"op"` // place|close|modify
	Request NormalizedOrder `json:"request"`
	Result  OrderResult     `json:"result"`
	At      time.Time       `json:"at"`
}

// Quote is a bridge-delivered bid/ask snapshot.
type Quote struct {
	Symbol     string    `json:"symbol"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	ReceivedAt time.Time `json:"received_at"`
}
