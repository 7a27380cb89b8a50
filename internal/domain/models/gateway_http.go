package models

import "time"

// Request shapes for the auto-trading API surface.

type StartAutoTradingRequest struct {
	Broker            string `json:"broker,omitempty"`
	AllowDisconnected bool   `json:"allow_disconnected,omitempty" default:"false"`
}

type StopAutoTradingRequest struct {
	Broker string `json:"broker,omitempty"`
}

type PairRequest struct {
	Pair string `json:"pair" validate:"required,min=3,max=12"`
}

type KillSwitchRequest struct {
	Engaged bool `json:"engaged"`
}

// GatewayStatistics are process-local counters kept by the gateway.
type GatewayStatistics struct {
	SignalsChecked int       `json:"signals_checked"`
	TradesOpened   int       `json:"trades_opened"`
	GateRejections int       `json:"gate_rejections"`
	CooldownDrops  int       `json:"cooldown_drops"`
	LastCycleAt    time.Time `json:"last_cycle_at,omitempty"`
}

// BrokerState is one broker's view in the status payload.
type BrokerState struct {
	Broker    string `json:"broker"`
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
}

// GatewayStatus is the exposed status payload.
type GatewayStatus struct {
	EnabledBrokers  []BrokerState     `json:"enabled_brokers"`
	Pairs           []string          `json:"pairs"`
	ActiveTrades    []*Trade          `json:"active_trades"`
	Statistics      GatewayStatistics `json:"statistics"`
	KillSwitch      bool              `json:"kill_switch"`
	BreakersHealthy bool              `json:"breakers_healthy"`
}
