package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
)

func executableSignal(pair string) *models.Signal {
	return &models.Signal{
		Pair:       pair,
		Direction:  models.DirectionBuy,
		Strength:   72,
		Confidence: 68,
		Validity: models.Validity{
			IsValid: true,
			Decision: models.Decision{
				State:      models.DecisionEnter,
				Score:      70,
				AssetClass: models.ClassifyAsset(pair),
			},
		},
	}
}

func TestGatePassesCleanCandidate(t *testing.T) {
	dec := EvaluateGate(GateConfig{MinConfidence: 55, MinStrength: 50}, GateInput{
		Broker: "bridge-a",
		Source: "scheduled",
		Signal: executableSignal("EURUSD"),
	})

	assert.True(t, dec.OK)
	assert.Empty(t, dec.Reason)
	assert.Equal(t, "EURUSD", dec.Details.Pair)
	assert.Equal(t, "bridge-a", dec.Details.Broker)
}

func TestGateRejectsNilSignal(t *testing.T) {
	dec := EvaluateGate(GateConfig{}, GateInput{Broker: "bridge-a"})
	assert.False(t, dec.OK)
	assert.Equal(t, "no signal", dec.Reason)
}

func TestGateDefaultAssetClassAllowList(t *testing.T) {
	cfg := GateConfig{MinConfidence: 55, MinStrength: 50}

	assert.True(t, EvaluateGate(cfg, GateInput{Signal: executableSignal("EURUSD")}).OK)
	assert.True(t, EvaluateGate(cfg, GateInput{Signal: executableSignal("XAUUSD")}).OK)

	dec := EvaluateGate(cfg, GateInput{Signal: executableSignal("BTCUSD")})
	assert.False(t, dec.OK)
	assert.Equal(t, "asset class crypto not allowed for auto-trading", dec.Reason)
}

func TestGateExplicitAllowListOverridesDefault(t *testing.T) {
	cfg := GateConfig{AllowedAssetClasses: []string{"crypto"}, MinConfidence: 55, MinStrength: 50}

	assert.True(t, EvaluateGate(cfg, GateInput{Signal: executableSignal("BTCUSD")}).OK)
	assert.False(t, EvaluateGate(cfg, GateInput{Signal: executableSignal("EURUSD")}).OK)
}

func TestGateRejectsOpenTradeBeforeValidity(t *testing.T) {
	sig := executableSignal("EURUSD")
	sig.Validity.IsValid = false // would also fail, but the open trade wins

	dec := EvaluateGate(GateConfig{}, GateInput{Signal: sig, HasOpenTrade: true})
	assert.False(t, dec.OK)
	assert.Equal(t, "open trade exists for EURUSD", dec.Reason)
}

func TestGateRejectsNonEnterState(t *testing.T) {
	sig := executableSignal("EURUSD")
	sig.Validity.IsValid = false
	sig.Validity.Decision.State = models.DecisionWatch

	dec := EvaluateGate(GateConfig{}, GateInput{Signal: sig})
	assert.False(t, dec.OK)
	assert.Equal(t, "signal not executable (state=WATCH)", dec.Reason)
}

func TestGateHonorsBridgeVeto(t *testing.T) {
	veto := false
	dec := EvaluateGate(GateConfig{}, GateInput{Signal: executableSignal("EURUSD"), ShouldExecute: &veto})
	assert.False(t, dec.OK)
	assert.Equal(t, "bridge declined execution", dec.Reason)

	// an explicit yes is not required; nil means no opinion
	assert.True(t, EvaluateGate(GateConfig{}, GateInput{Signal: executableSignal("EURUSD")}).OK)
}

func TestGateConfidenceAndStrengthFloors(t *testing.T) {
	cfg := GateConfig{MinConfidence: 55, MinStrength: 50}

	sig := executableSignal("EURUSD")
	sig.Confidence = 54.9
	dec := EvaluateGate(cfg, GateInput{Signal: sig})
	require.False(t, dec.OK)
	assert.Equal(t, "signal not strong enough: confidence 54.9 below 55.0", dec.Reason)

	sig = executableSignal("EURUSD")
	sig.Strength = 42
	dec = EvaluateGate(cfg, GateInput{Signal: sig})
	require.False(t, dec.OK)
	assert.Equal(t, "signal not strong enough: strength 42.0 below 50.0", dec.Reason)
}

func TestGateReadinessRequirement(t *testing.T) {
	cfg := GateConfig{RequireReadiness: true, MinReadyLayers: 3, MinConfluence: 60}

	dec := EvaluateGate(cfg, GateInput{Signal: executableSignal("EURUSD")})
	require.False(t, dec.OK)
	assert.Equal(t, "layered analysis readiness unavailable", dec.Reason)

	dec = EvaluateGate(cfg, GateInput{
		Signal:    executableSignal("EURUSD"),
		Readiness: &models.LayeredReadiness{ReadyLayers: 2, TotalLayers: 4, Confluence: 80},
	})
	require.False(t, dec.OK)
	assert.Equal(t, "only 2/3 analysis layers populated", dec.Reason)

	dec = EvaluateGate(cfg, GateInput{
		Signal:    executableSignal("EURUSD"),
		Readiness: &models.LayeredReadiness{ReadyLayers: 4, TotalLayers: 4, Confluence: 55},
	})
	require.False(t, dec.OK)
	assert.Equal(t, "confluence 55.0 below 60.0", dec.Reason)

	dec = EvaluateGate(cfg, GateInput{
		Signal:    executableSignal("EURUSD"),
		Readiness: &models.LayeredReadiness{ReadyLayers: 4, TotalLayers: 4, Confluence: 75},
	})
	assert.True(t, dec.OK)
}

func TestGateEvaluationIsIdempotent(t *testing.T) {
	cfg := GateConfig{MinConfidence: 55, MinStrength: 50}
	in := GateInput{Broker: "bridge-a", Source: "realtime", Signal: executableSignal("EURUSD")}

	first := EvaluateGate(cfg, in)
	second := EvaluateGate(cfg, in)
	assert.Equal(t, first, second)
}
