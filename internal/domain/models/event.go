package models

import "time"

// Gateway event types observable by subscribers.
const (
	EventTradeOpened       = "trade_opened"
	EventAutoTradeAttempt  = "auto_trade_attempt"
	EventAutoTradeRejected = "auto_trade_rejected"
	EventTradeClosed       = "trade_closed"
	EventKillSwitch        = "kill_switch"
)

// Event is one observable gateway occurrence. Publishing is best effort;
// an absent subscriber set is a valid no-op state.
type Event struct {
	Type   string    `json:"type"`
	Broker string    `json:"broker,omitempty"`
	Pair   string    `json:"pair,omitempty"`
	Source string    `json:"source,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Trade  *Trade    `json:"trade,omitempty"`
	Signal *Signal   `json:"signal,omitempty"`
	At     time.Time `json:"at"`
}
