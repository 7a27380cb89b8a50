package models

import "time"

// TradeStatus is the lifecycle state of a managed trade.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// Trade is a position opened by a successful execution and owned by the
// trading engine's active-trades store. The gateway enforces at most one
// open trade per pair.
type Trade struct {
	ID           string      `json:"id"`
	Pair         string      `json:"pair"`
	Direction    Direction   `json:"direction"`
	EntryPrice   float64     `json:"entry_price"`
	StopLoss     float64     `json:"stop_loss"`
	TakeProfit   float64     `json:"take_profit"`
	Broker       string      `json:"broker"`
	Status       TradeStatus `json:"status"`
	OpenedAt     time.Time   `json:"opened_at"`
	ClosedAt     time.Time   `json:"closed_at,omitempty"`
	ClosePrice   float64     `json:"close_price,omitempty"`
	CloseReason  string      `json:"close_reason,omitempty"`
	OrderID      string      `json:"order_id,omitempty"`
	OriginSignal *Signal     `json:"origin_signal,omitempty"`
}

// ExecutionResult is the trading engine's answer to an execution attempt.
type ExecutionResult struct {
	Success bool   `json:"success"`
	Trade   *Trade `json:"trade,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// GateDetails is the diagnostic payload attached to a gate decision.
type GateDetails struct {
	Broker        string  `json:"broker"`
	Pair          string  `json:"pair"`
	Source        string  `json:"source"`
	DecisionState string  `json:"decision_state"`
	DecisionScore float64 `json:"decision_score"`
	Confidence    float64 `json:"confidence"`
	Strength      float64 `json:"strength"`
}

// GateDecision is the execution gate's verdict on one candidate. Gate
// rejections are policy outcomes, not errors.
type GateDecision struct {
	OK      bool        `json:"ok"`
	Reason  string      `json:"reason,omitempty"`
	Details GateDetails `json:"details"`
}

// ErrorClass annotates a failure without changing control flow.
type ErrorClass struct {
	Type     string `json:"type"`     // transport|auth|rejected|data|unknown
	Category string `json:"category"` // broker|upstream|internal
	Context  string `json:"context,omitempty"`
}
