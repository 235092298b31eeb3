package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/internal/domain/indicators"
)

// GeneratorConfig holds the named-rule weights and the participation
// threshold. A zero weight disables a rule entirely.
type GeneratorConfig struct {
	TrendWeight     int `yaml:"trend_weight"`
	VWAPWeight      int `yaml:"vwap_weight"`
	RSIWeight       int `yaml:"rsi_weight"`
	MACDWeight      int `yaml:"macd_weight"`
	BollingerWeight int `yaml:"bollinger_weight"`
	PatternWeight   int `yaml:"pattern_weight"`

	// MinScore is the minimum absolute ensemble score a signal needs to
	// clear to vote a direction at all.
	MinScore int `yaml:"min_score"`

	// FullScore is the absolute score that maps to 100% confidence.
	FullScore int `yaml:"full_score"`
}

// DefaultGeneratorConfig returns the production rule weighting.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		TrendWeight:     2,
		VWAPWeight:      1,
		RSIWeight:       1,
		MACDWeight:      1,
		BollingerWeight: 1,
		PatternWeight:   1,
		MinScore:        2,
		FullScore:       5,
	}
}

// Generator turns a MarketSnapshot into one QuantSignal by running the
// named technical rules and aggregating their weighted votes. Deterministic
// for identical snapshot and configuration.
type Generator struct {
	cfg GeneratorConfig
}

// NewGenerator creates a generator with the given rule configuration.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.FullScore <= 0 {
		cfg.FullScore = 5
	}
	return &Generator{cfg: cfg}
}

// Generate runs the ensemble over one snapshot. Direction is NONE when the
// aggregate score does not clear the participation threshold or the
// indicator window is too short for the core indicators.
func (g *Generator) Generate(snap MarketSnapshot) QuantSignal {
	sig := QuantSignal{
		Symbol: snap.Symbol,
		Entry:  snap.Last,
		ATR:    snap.Indicators.ATR,
		Regime: snap.Regime,
		At:     snap.Timestamp,
	}

	votes := []RuleVote{
		g.trendRule(snap),
		g.vwapRule(snap),
		g.rsiRule(snap),
		g.macdRule(snap),
		g.bollingerRule(snap),
		g.patternRule(snap),
	}
	sig.Votes = votes

	total := 0
	for _, v := range votes {
		total += v.Score
	}
	sig.Score = total

	abs := total
	if abs < 0 {
		abs = -abs
	}
	if abs < g.cfg.MinScore {
		sig.Direction = DirectionNone
		log.Debug().Str("symbol", snap.Symbol).Int("score", total).
			Int("min_score", g.cfg.MinScore).Msg("ensemble below participation threshold")
		return sig
	}

	if total > 0 {
		sig.Direction = DirectionBuy
	} else {
		sig.Direction = DirectionSell
	}

	conf := abs * 100 / g.cfg.FullScore
	if conf > 100 {
		conf = 100
	}
	sig.Confidence = conf

	log.Debug().Str("symbol", snap.Symbol).Str("direction", string(sig.Direction)).
		Int("score", total).Int("confidence", conf).Str("regime", string(snap.Regime)).
		Msg("quant signal generated")
	return sig
}

// trendRule votes with the full EMA stack: 20 over 50 over 200 is an
// uptrend, the inverse a downtrend. Abstains without 200 bars of history.
func (g *Generator) trendRule(snap MarketSnapshot) RuleVote {
	v := RuleVote{Rule: "trend"}
	ind := snap.Indicators
	if !ind.Complete || ind.EMA200 == 0 {
		v.Note = "trend: insufficient history"
		return v
	}
	switch {
	case ind.EMA20 > ind.EMA50 && ind.EMA50 > ind.EMA200:
		v.Score = g.cfg.TrendWeight
		v.Note = "strong uptrend (EMA 20 > 50 > 200)"
	case ind.EMA20 < ind.EMA50 && ind.EMA50 < ind.EMA200:
		v.Score = -g.cfg.TrendWeight
		v.Note = "strong downtrend (EMA 20 < 50 < 200)"
	}
	return v
}

// vwapRule votes the side of the session VWAP the price is trading on.
// Price exactly at VWAP carries no bias, so the rule abstains there.
func (g *Generator) vwapRule(snap MarketSnapshot) RuleVote {
	v := RuleVote{Rule: "vwap"}
	if snap.Indicators.VWAP == 0 || snap.Last == 0 {
		return v
	}
	switch {
	case snap.Last > snap.Indicators.VWAP:
		v.Score = g.cfg.VWAPWeight
		v.Note = "price above VWAP (bullish bias)"
	case snap.Last < snap.Indicators.VWAP:
		v.Score = -g.cfg.VWAPWeight
		v.Note = "price below VWAP (bearish bias)"
	}
	return v
}

// rsiRule votes mean reversion at the 30/70 bands.
func (g *Generator) rsiRule(snap MarketSnapshot) RuleVote {
	v := RuleVote{Rule: "rsi"}
	rsi := snap.Indicators.RSI
	switch {
	case rsi < 30:
		v.Score = g.cfg.RSIWeight
		v.Note = "RSI oversold"
	case rsi > 70:
		v.Score = -g.cfg.RSIWeight
		v.Note = "RSI overbought"
	}
	return v
}

// macdRule votes a signal-line cross confirmed by histogram momentum.
func (g *Generator) macdRule(snap MarketSnapshot) RuleVote {
	v := RuleVote{Rule: "macd"}
	ind := snap.Indicators
	switch {
	case ind.MACD > ind.MACDSig && ind.Hist > ind.HistPrev:
		v.Score = g.cfg.MACDWeight
		v.Note = "MACD bullish crossover"
	case ind.MACD < ind.MACDSig && ind.Hist < ind.HistPrev:
		v.Score = -g.cfg.MACDWeight
		v.Note = "MACD bearish crossover"
	}
	return v
}

// bollingerRule votes mean reversion when price closes outside the bands.
func (g *Generator) bollingerRule(snap MarketSnapshot) RuleVote {
	v := RuleVote{Rule: "bollinger"}
	ind := snap.Indicators
	if ind.BBUpper == ind.BBLower {
		return v
	}
	switch {
	case snap.Last < ind.BBLower:
		v.Score = g.cfg.BollingerWeight
		v.Note = "price below lower band (mean reversion buy)"
	case snap.Last > ind.BBUpper:
		v.Score = -g.cfg.BollingerWeight
		v.Note = "price above upper band (mean reversion sell)"
	}
	return v
}

// patternRule votes the candlestick pattern bias of the last two bars.
func (g *Generator) patternRule(snap MarketSnapshot) RuleVote {
	v := RuleVote{Rule: "pattern"}
	if len(snap.Candles) < 2 {
		return v
	}
	bars := make([]indicators.PriceBar, 0, 2)
	for _, c := range snap.Candles[len(snap.Candles)-2:] {
		bars = append(bars, indicators.PriceBar{Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume})
	}
	pattern := indicators.DetectPattern(bars)
	if !pattern.IsValid || pattern.Bias == 0 {
		return v
	}
	v.Score = pattern.Bias * g.cfg.PatternWeight
	v.Note = "candlestick pattern: " + pattern.Name
	return v
}
