package usecase

import (
	"fmt"
	"strings"

	"TradeGate/internal/domain/models"
)

// GateConfig holds the execution gate policy. MinConfidence/MinStrength
// are a stricter floor than general signal validity: a safety margin for
// automated capital deployment.
type GateConfig struct {
	AllowedAssetClasses []string `yaml:"allowed_asset_classes"`
	MinConfidence       float64  `yaml:"min_confidence" default:"55"`
	MinStrength         float64  `yaml:"min_strength" default:"50"`
	RequireReadiness    bool     `yaml:"require_readiness" default:"false"`
	MinReadyLayers      int      `yaml:"min_ready_layers" default:"3"`
	MinConfluence       float64  `yaml:"min_confluence" default:"60"`
}

// GateInput is everything the gate needs about one candidate, captured
// as a snapshot so repeated evaluation is idempotent.
type GateInput struct {
	Broker        string
	Source        string // scheduled|realtime
	Signal        *models.Signal
	ShouldExecute *bool // bridge hint; nil means no opinion
	HasOpenTrade  bool  // open-trade snapshot for the signal's pair
	Readiness     *models.LayeredReadiness
}

// EvaluateGate applies the ordered execution checks; the first failure
// wins. It is a pure function shared by the scheduled and realtime paths.
func EvaluateGate(cfg GateConfig, in GateInput) models.GateDecision {
	sig := in.Signal
	details := models.GateDetails{
		Broker: in.Broker,
		Source: in.Source,
	}
	if sig != nil {
		details.Pair = sig.Pair
		details.DecisionState = sig.Validity.Decision.State
		details.DecisionScore = sig.Validity.Decision.Score
		details.Confidence = sig.Confidence
		details.Strength = sig.Strength
	}

	reject := func(reason string) models.GateDecision {
		return models.GateDecision{OK: false, Reason: reason, Details: details}
	}

	if sig == nil {
		return reject("no signal")
	}

	assetClass := sig.Validity.Decision.AssetClass
	if assetClass == "" {
		assetClass = models.ClassifyAsset(sig.Pair)
	}
	if !classAllowed(cfg.AllowedAssetClasses, assetClass) {
		return reject(fmt.Sprintf("asset class %s not allowed for auto-trading", assetClass))
	}

	if in.HasOpenTrade {
		return reject(fmt.Sprintf("open trade exists for %s", sig.Pair))
	}

	if !sig.Validity.IsValid || sig.Validity.Decision.State != models.DecisionEnter {
		return reject(fmt.Sprintf("signal not executable (state=%s)", sig.Validity.Decision.State))
	}

	if in.ShouldExecute != nil && !*in.ShouldExecute {
		return reject("bridge declined execution")
	}

	if sig.Confidence < cfg.MinConfidence {
		return reject(fmt.Sprintf("signal not strong enough: confidence %.1f below %.1f",
			sig.Confidence, cfg.MinConfidence))
	}
	if sig.Strength < cfg.MinStrength {
		return reject(fmt.Sprintf("signal not strong enough: strength %.1f below %.1f",
			sig.Strength, cfg.MinStrength))
	}

	if cfg.RequireReadiness {
		r := in.Readiness
		if r == nil {
			return reject("layered analysis readiness unavailable")
		}
		if r.ReadyLayers < cfg.MinReadyLayers {
			return reject(fmt.Sprintf("only %d/%d analysis layers populated", r.ReadyLayers, cfg.MinReadyLayers))
		}
		if r.Confluence < cfg.MinConfluence {
			return reject(fmt.Sprintf("confluence %.1f below %.1f", r.Confluence, cfg.MinConfluence))
		}
	}

	return models.GateDecision{OK: true, Details: details}
}

func classAllowed(allowed []string, class string) bool {
	if len(allowed) == 0 {
		// default allow-list: forex and metals only
		allowed = []string{models.AssetClassForex, models.AssetClassMetals}
	}
	for _, a := range allowed {
		if strings.EqualFold(a, class) {
			return true
		}
	}
	return false
}
