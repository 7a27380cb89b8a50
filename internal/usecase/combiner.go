package usecase

import (
	"math"
	"time"

	"TradeGate/internal/domain/models"
	drepo "TradeGate/internal/domain/repository"
)

// CombinerConfig holds the combiner's tunables. Defaults mirror the
// production weighting: news slightly above economic, technical heaviest.
type CombinerConfig struct {
	EconomicWeight     float64 `yaml:"economic_weight" default:"0.28"`
	NewsWeight         float64 `yaml:"news_weight" default:"0.32"`
	TechnicalWeight    float64 `yaml:"technical_weight" default:"0.40"`
	Gain               float64 `yaml:"gain" default:"1.15"`
	DirectionThreshold float64 `yaml:"direction_threshold" default:"20"`
	ConfidenceFloor    float64 `yaml:"confidence_floor" default:"35"`
	StopATRMultiple    float64 `yaml:"stop_atr_multiple" default:"1.5"`
	TargetATRMultiple  float64 `yaml:"target_atr_multiple" default:"2.5"`
}

// Combiner merges the three component analyses plus a data-quality
// report into one scored signal. It performs no I/O.
type Combiner struct {
	cfg     CombinerConfig
	metrics drepo.Metrics
}

// NewCombiner creates a combiner. metrics may be nil.
func NewCombiner(cfg CombinerConfig, metrics drepo.Metrics) *Combiner {
	if cfg.Gain <= 0 {
		cfg.Gain = 1
	}
	if cfg.DirectionThreshold <= 0 {
		cfg.DirectionThreshold = 20
	}
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = 35
	}
	if cfg.StopATRMultiple <= 0 {
		cfg.StopATRMultiple = 1.5
	}
	if cfg.TargetATRMultiple <= 0 {
		cfg.TargetATRMultiple = 2.5
	}
	return &Combiner{cfg: cfg, metrics: metrics}
}

// Combine builds a Signal from the component analyses. A missing
// component degrades to a neutral zero-confidence input; it never fails
// the combination.
func (c *Combiner) Combine(
	pair string,
	economic, news, technical *models.ComponentAnalysis,
	market models.MarketSnapshot,
	quality *models.DataQuality,
) *models.Signal {
	economic = orNeutral(economic, "economic")
	news = orNeutral(news, "news")
	technical = orNeutral(technical, "technical")

	normEcon := normalizeScore(economic)
	normNews := normalizeScore(news)
	normTech := normalizeScore(technical)

	wEcon, wNews, wTech := c.qualityWeights(economic, news, technical, market)

	composite := clamp(c.cfg.Gain*(normEcon*wEcon+normNews*wNews+normTech*wTech), -100, 100)

	direction := c.resolveDirection(composite, economic, news, technical)

	strength := math.Abs(composite)
	confidence := clamp(
		economic.Confidence*wEcon+news.Confidence*wNews+technical.Confidence*wTech,
		0, 100,
	)
	if economic.Direction == news.Direction && news.Direction == technical.Direction &&
		technical.Direction != models.DirectionNeutral {
		// full agreement across sources earns a small conviction bonus
		confidence = clamp(confidence+5, 0, 100)
	}

	score := composite
	blocked := false

	if quality != nil {
		score, strength, confidence, blocked = c.applyQuality(quality, score, strength, confidence)
		if blocked {
			direction = models.DirectionNeutral
		}
	}
	if direction == models.DirectionNeutral {
		// neutral signals carry no actionable score
		if blocked {
			score = 0
			strength = 0
		}
	}

	entry := models.EntryPlan{}
	if direction != models.DirectionNeutral {
		entry = c.entryPlan(direction, technical, market)
	}

	winRate := c.estimatedWinRate(direction, strength, confidence, entry, quality)

	state := models.DecisionEnter
	switch {
	case blocked:
		state = models.DecisionBlock
	case direction == models.DirectionNeutral:
		state = models.DecisionWatch
	}

	decision := models.Decision{
		State:      state,
		Score:      0.6*math.Abs(score) + 0.4*confidence,
		Blocked:    blocked,
		AssetClass: models.ClassifyAsset(pair),
	}

	validity := models.Validity{
		IsValid:  direction != models.DirectionNeutral && state == models.DecisionEnter,
		Decision: decision,
	}
	if !validity.IsValid {
		validity.Reason = invalidReason(state, direction)
	}

	sig := &models.Signal{
		Pair:             pair,
		Timestamp:        time.Now().UTC(),
		Direction:        direction,
		Strength:         round2(strength),
		Confidence:       round2(confidence),
		FinalScore:       round2(score),
		EstimatedWinRate: round2(winRate),
		Entry:            entry,
		Validity:         validity,
		Components: models.Components{
			Economic:   economic,
			News:       news,
			Technical:  technical,
			MarketData: market,
		},
		Quality: quality,
	}
	if c.metrics != nil {
		c.metrics.RecordSignal(pair, string(direction))
	}
	return sig
}

// qualityWeights scales the base weights by each component's own
// reliability and renormalizes so they sum to 1.
func (c *Combiner) qualityWeights(economic, news, technical *models.ComponentAnalysis, market models.MarketSnapshot) (float64, float64, float64) {
	qEcon := qualityFactor(economic.Confidence / 100)
	qNews := qualityFactor(news.Confidence / 100)

	// technical quality blends indicator strength with upstream data
	// confidence, discounted by the fraction of missing timeframes
	techStrength := technical.Strength
	if techStrength == 0 {
		techStrength = technical.Confidence
	}
	dataConf := market.Confidence
	if dataConf <= 0 {
		dataConf = 0.5
	}
	qTech := qualityFactor((0.6*techStrength/100 + 0.4*dataConf) * (1 - clamp(technical.MissingFrac, 0, 1)))

	wEcon := c.cfg.EconomicWeight * qEcon
	wNews := c.cfg.NewsWeight * qNews
	wTech := c.cfg.TechnicalWeight * qTech

	sum := wEcon + wNews + wTech
	if sum <= 0 {
		// all components dead: fall back to base weights
		sum = c.cfg.EconomicWeight + c.cfg.NewsWeight + c.cfg.TechnicalWeight
		if sum <= 0 {
			return 0.28, 0.32, 0.40
		}
		return c.cfg.EconomicWeight / sum, c.cfg.NewsWeight / sum, c.cfg.TechnicalWeight / sum
	}
	return wEcon / sum, wNews / sum, wTech / sum
}

// resolveDirection turns the composite into a direction, guarded by the
// component vote check so a single noisy source cannot flip the sign
// against the other two.
func (c *Combiner) resolveDirection(composite float64, economic, news, technical *models.ComponentAnalysis) models.Direction {
	threshold := c.cfg.DirectionThreshold
	mag := math.Abs(composite)
	if mag < 0.75*threshold {
		return models.DirectionNeutral
	}

	candidate := models.DirectionBuy
	if composite < 0 {
		candidate = models.DirectionSell
	}

	votesFor, votesAgainst := 0, 0
	tally := func(d models.Direction) {
		switch d {
		case candidate:
			votesFor++
		case models.DirectionNeutral:
		default:
			votesAgainst++
		}
	}
	tally(economic.Direction)
	tally(news.Direction)
	tally(technical.Direction)
	for _, tf := range technical.Timeframes {
		tally(tf.Direction)
	}

	if votesAgainst > votesFor+1 {
		return models.DirectionNeutral
	}
	if mag < threshold && votesFor < votesAgainst+2 {
		// sub-threshold composites need a clear vote majority
		return models.DirectionNeutral
	}
	return candidate
}

// applyQuality dampens score/strength/confidence per the quality report
// and decides whether the signal must be blocked outright. The floor
// re-check is a deliberate second-pass safety net.
func (c *Combiner) applyQuality(q *models.DataQuality, score, strength, confidence float64) (float64, float64, float64, bool) {
	modifier := q.Modifier
	if modifier <= 0 {
		modifier = 1
	}
	modifier = clamp(modifier, 0.3, 1)

	score *= modifier
	strength *= modifier
	confidence -= q.ConfidencePenalty
	if q.Stale {
		confidence -= 5
	}
	if q.Status == models.QualityCritical {
		confidence -= 10
	}
	confidence = clamp(confidence, 0, 100)

	if q.Blocked() {
		return 0, 0, math.Min(confidence, c.cfg.ConfidenceFloor), true
	}

	floor := q.ConfidenceFloor
	if floor <= 0 {
		floor = c.cfg.ConfidenceFloor
	}
	relaxed := q.Status == models.QualityDegraded && q.TolerateDegraded
	if confidence < floor && !relaxed {
		// retroactive block: post-adjustment confidence fell under the floor
		return 0, 0, confidence, true
	}
	return score, strength, confidence, false
}

func (c *Combiner) entryPlan(direction models.Direction, technical *models.ComponentAnalysis, market models.MarketSnapshot) models.EntryPlan {
	price := market.Price
	atr := technical.ATR
	if price <= 0 || atr <= 0 {
		return models.EntryPlan{Price: price, ATR: atr}
	}

	stopDist := c.cfg.StopATRMultiple * atr
	targetDist := c.cfg.TargetATRMultiple * atr

	var stop, target float64
	if direction == models.DirectionBuy {
		stop = price - stopDist
		target = price + targetDist
	} else {
		stop = price + stopDist
		target = price - targetDist
	}

	rr := 0.0
	if stopDist > 0 {
		rr = targetDist / stopDist
	}
	return models.EntryPlan{
		Price:      price,
		StopLoss:   stop,
		TakeProfit: target,
		RiskReward: round2(rr),
		ATR:        atr,
	}
}

func (c *Combiner) estimatedWinRate(direction models.Direction, strength, confidence float64, entry models.EntryPlan, quality *models.DataQuality) float64 {
	wr := 50.0
	if direction != models.DirectionNeutral {
		wr += strength*0.15 + confidence*0.2
		if entry.RiskReward >= 2 {
			wr += 5
		}
	}
	if quality != nil {
		switch quality.Status {
		case models.QualityCritical:
			wr -= 10
		case models.QualityDegraded:
			wr -= 5
		}
	}
	return clamp(wr, 35, 95)
}

func normalizeScore(a *models.ComponentAnalysis) float64 {
	scale := a.ScaleMax
	if scale <= 0 {
		scale = 100
	}
	return clamp(a.Score/scale*100, -100, 100)
}

func orNeutral(a *models.ComponentAnalysis, source string) *models.ComponentAnalysis {
	if a != nil {
		return a
	}
	return &models.ComponentAnalysis{Source: source, Direction: models.DirectionNeutral}
}

func invalidReason(state string, direction models.Direction) string {
	switch {
	case state == models.DecisionBlock:
		return "blocked by data quality"
	case direction == models.DirectionNeutral:
		return "no directional edge"
	default:
		return "decision state is " + state
	}
}

// qualityFactor keeps a dead component from zeroing its weight entirely;
// renormalization handles the rest.
func qualityFactor(v float64) float64 {
	return clamp(v, 0.1, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
