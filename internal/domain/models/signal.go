package models

import (
	"strings"
	"time"
)

// Direction is the directional vote of a component or a combined signal.
type Direction string

const (
	DirectionBuy     Direction = "BUY"
	DirectionSell    Direction = "SELL"
	DirectionNeutral Direction = "NEUTRAL"
)

// Decision states produced by the validity pipeline.
const (
	DecisionEnter = "ENTER"
	DecisionWatch = "WATCH"
	DecisionBlock = "BLOCK"
)

// Data-quality status levels.
const (
	QualityHealthy  = "healthy"
	QualityDegraded = "degraded"
	QualityCritical = "critical"
)

// TimeframeVote is a single technical sub-timeframe's directional reading.
type TimeframeVote struct {
	Timeframe string    `json:"timeframe"`
	Direction Direction `json:"direction"`
}

// ComponentAnalysis is one source's contribution to a combined signal
// (economic, news or technical). Score is on the source's own scale;
// ScaleMax declares that scale (0 means already [-100,100]).
type ComponentAnalysis struct {
	Source     string    `json:"source"`
	Direction  Direction `json:"direction"`
	Score      float64   `json:"score"`
	ScaleMax   float64   `json:"scale_max,omitempty"`
	Confidence float64   `json:"confidence"` // [0,100]
	Strength   float64   `json:"strength"`   // [0,100]

	// Technical-only detail.
	Timeframes  []TimeframeVote `json:"timeframes,omitempty"`
	MissingFrac float64         `json:"missing_frac,omitempty"` // fraction of timeframes with no data
	ATR         float64         `json:"atr,omitempty"`

	// Source-specific evidence (calendar events, headlines, confluences).
	Evidence []string `json:"evidence,omitempty"`
}

// MarketSnapshot is the price-feed view at combine time, with the
// provider's own confidence in the data [0,1].
type MarketSnapshot struct {
	Pair       string    `json:"pair"`
	Price      float64   `json:"price"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"at"`
}

// DataQuality is the derived dampening/blocking overlay describing how
// trustworthy current upstream data is. It is never stored long-term.
type DataQuality struct {
	Modifier          float64  `json:"modifier"`           // [0.3,1], multiplicative
	ConfidencePenalty float64  `json:"confidence_penalty"` // additive
	ShouldBlock       bool     `json:"should_block"`
	Recommendation    string   `json:"recommendation,omitempty"` // "block" forces neutrality
	Status            string   `json:"status"`                   // healthy|degraded|critical
	Issues            []string `json:"issues,omitempty"`
	ConfidenceFloor   float64  `json:"confidence_floor,omitempty"`
	Stale             bool     `json:"stale,omitempty"`
	TolerateDegraded  bool     `json:"tolerate_degraded,omitempty"`
}

// Blocked reports whether the report demands forced neutrality.
func (q *DataQuality) Blocked() bool {
	if q == nil {
		return false
	}
	return q.ShouldBlock || strings.EqualFold(q.Recommendation, "block")
}

// EntryPlan holds proposed entry/exit prices derived from the technical
// component. Zero-valued when the signal is neutral.
type EntryPlan struct {
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	RiskReward float64 `json:"risk_reward"`
	ATR        float64 `json:"atr"`
}

// Decision is the validity pipeline's verdict attached to a signal.
type Decision struct {
	State      string  `json:"state"` // ENTER|WATCH|BLOCK
	Score      float64 `json:"score"`
	Blocked    bool    `json:"blocked"`
	AssetClass string  `json:"asset_class"`
}

// Validity is the executable-or-not verdict on a signal.
type Validity struct {
	IsValid  bool     `json:"is_valid"`
	Reason   string   `json:"reason,omitempty"`
	Decision Decision `json:"decision"`
}

// Components carries the per-source analyses that produced a signal.
type Components struct {
	Economic   *ComponentAnalysis `json:"economic,omitempty"`
	News       *ComponentAnalysis `json:"news,omitempty"`
	Technical  *ComponentAnalysis `json:"technical,omitempty"`
	MarketData MarketSnapshot     `json:"market_data"`
}

// Signal is a scored, directional trading recommendation for one
// instrument. Immutable once returned by the combiner.
type Signal struct {
	Pair             string      `json:"pair"`
	Timestamp        time.Time   `json:"timestamp"`
	Direction        Direction   `json:"direction"`
	Strength         float64     `json:"strength"`   // [0,100]
	Confidence       float64     `json:"confidence"` // [0,100]
	FinalScore       float64     `json:"final_score"` // [-100,100]
	EstimatedWinRate float64     `json:"estimated_win_rate"`
	Entry            EntryPlan   `json:"entry"`
	Validity         Validity    `json:"is_valid"`
	Components       Components  `json:"components"`
	Quality          *DataQuality `json:"quality,omitempty"`
}

// DecisionScore is the ranking key used when competing candidates are
// flushed in one cycle.
func (s *Signal) DecisionScore() float64 {
	return s.Validity.Decision.Score
}

// PushedSignal is a bridge-delivered high-conviction signal for the
// realtime execution lane.
type PushedSignal struct {
	Signal        *Signal `json:"signal"`
	ShouldExecute *bool   `json:"should_execute,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// LayeredReadiness is the explainability readiness report optionally
// required by the execution gate.
type LayeredReadiness struct {
	ReadyLayers int     `json:"ready_layers"`
	TotalLayers int     `json:"total_layers"`
	Confluence  float64 `json:"confluence"`
}

// Asset classes recognized by the auto-trading allow-list.
const (
	AssetClassForex  = "forex"
	AssetClassMetals = "metals"
	AssetClassCrypto = "crypto"
	AssetClassIndex  = "index"
)

var indexSymbols = map[string]bool{
	"US30": true, "US500": true, "NAS100": true, "SPX500": true,
	"GER40": true, "UK100": true, "JPN225": true,
}

// ClassifyAsset maps a symbol onto one of the recognized asset classes.
func ClassifyAsset(pair string) string {
	p := strings.ToUpper(strings.NewReplacer("/", "", "_", "").Replace(pair))
	switch {
	case strings.HasPrefix(p, "XAU"), strings.HasPrefix(p, "XAG"), strings.HasPrefix(p, "XPT"), strings.HasPrefix(p, "XPD"):
		return AssetClassMetals
	case strings.HasPrefix(p, "BTC"), strings.HasPrefix(p, "ETH"), strings.HasSuffix(p, "USDT"):
		return AssetClassCrypto
	case indexSymbols[p]:
		return AssetClassIndex
	default:
		return AssetClassForex
	}
}
