package signal

import (
	"time"

	"github.com/sawpanic/signalrun/internal/domain/regime"
)

// Direction is the trade direction proposed by the quant layer.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionNone Direction = "NONE"
)

// Action is the verdict action returned by the reasoning layer.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Agrees reports whether the verdict action confirms the quant direction.
// HOLD never agrees: the reasoner may downgrade a signal but a downgrade
// is still a rejection, and an inverted action is always a rejection.
func (d Direction) Agrees(a Action) bool {
	switch d {
	case DirectionBuy:
		return a == ActionBuy
	case DirectionSell:
		return a == ActionSell
	default:
		return false
	}
}

// Inverts reports whether the verdict action is the opposite of the quant
// direction (BUY vs SELL), as opposed to a downgrade to HOLD.
func (d Direction) Inverts(a Action) bool {
	return (d == DirectionBuy && a == ActionSell) ||
		(d == DirectionSell && a == ActionBuy)
}

// Tick is a single top-of-book observation.
type Tick struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Last   float64   `json:"last"`
}

// Spread returns the current bid/ask spread.
func (t Tick) Spread() float64 { return t.Ask - t.Bid }

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// IndicatorSet holds the indicator values computed once per snapshot.
// Complete is false when the history window was too short for the slowest
// indicator; rules treat an incomplete set as a non-vote.
type IndicatorSet struct {
	EMA20    float64 `json:"ema_20"`
	EMA50    float64 `json:"ema_50"`
	EMA200   float64 `json:"ema_200"`
	RSI      float64 `json:"rsi"`
	MACD     float64 `json:"macd"`
	MACDSig  float64 `json:"macd_signal"`
	Hist     float64 `json:"macd_hist"`
	HistPrev float64 `json:"macd_hist_prev"`
	BBUpper  float64 `json:"bb_upper"`
	BBMiddle float64 `json:"bb_middle"`
	BBLower  float64 `json:"bb_lower"`
	BBWidth  float64 `json:"bb_width"`
	VWAP     float64 `json:"vwap"`
	ATR      float64 `json:"atr"`
	ATRAvg   float64 `json:"atr_avg"`
	Complete bool    `json:"complete"`
}

// MarketSnapshot is the immutable per-cycle view of one symbol: top of book,
// the OHLC history window, and the indicators computed from it.
type MarketSnapshot struct {
	Symbol     string        `json:"symbol"`
	Timestamp  time.Time     `json:"timestamp"`
	Bid        float64       `json:"bid"`
	Ask        float64       `json:"ask"`
	Last       float64       `json:"last"`
	Candles    []Candle      `json:"-"`
	Indicators IndicatorSet  `json:"indicators"`
	Regime     regime.Regime `json:"regime"`
}

// Spread returns the captured bid/ask spread.
func (m MarketSnapshot) Spread() float64 { return m.Ask - m.Bid }

// Fingerprint reduces the snapshot to a normalized numeric vector used as
// the similarity key for playbook retrieval. Components are scale-free so
// snapshots of different symbols remain comparable.
func (m MarketSnapshot) Fingerprint() []float64 {
	ind := m.Indicators
	price := m.Last
	if price == 0 {
		price = ind.EMA20
	}

	atr := ind.ATR
	if atr <= 0 {
		atr = 1
	}
	atrRatio := 1.0
	if ind.ATRAvg > 0 {
		atrRatio = ind.ATR / ind.ATRAvg
	}
	bbPos := 0.5
	if w := ind.BBUpper - ind.BBLower; w > 0 {
		bbPos = (price - ind.BBLower) / w
	}
	trend := 0.0
	if price > 0 {
		trend = (ind.EMA20 - ind.EMA50) / price * 100
	}

	return []float64{
		trend,
		ind.RSI / 100,
		ind.Hist / atr,
		bbPos,
		(price - ind.VWAP) / atr,
		atrRatio,
	}
}

// RuleVote is one technical rule's contribution to the ensemble score.
type RuleVote struct {
	Rule  string `json:"rule"`
	Score int    `json:"score"`
	Note  string `json:"note"`
}

// QuantSignal is the raw candidate produced by the generator for one cycle.
// It is read-only input to the AI evaluator and is not persisted.
type QuantSignal struct {
	Symbol     string        `json:"symbol"`
	Direction  Direction     `json:"direction"`
	Confidence int           `json:"confidence"`
	Entry      float64       `json:"entry"`
	Score      int           `json:"score"`
	ATR        float64       `json:"atr"`
	Regime     regime.Regime `json:"regime"`
	Votes      []RuleVote    `json:"votes"`
	At         time.Time     `json:"at"`
}

// Reasons returns the notes of the rules that actually voted, used for the
// reasoning trail and the playbook prompt.
func (q QuantSignal) Reasons() []string {
	out := make([]string, 0, len(q.Votes))
	for _, v := range q.Votes {
		if v.Score != 0 {
			out = append(out, v.Note)
		}
	}
	return out
}

// Verdict is the reasoning layer's structured answer. Valid is false when
// the raw response failed the strict parse, the call timed out, or the
// action had to be coerced to HOLD.
type Verdict struct {
	Action     Action `json:"action"`
	Confidence int    `json:"confidence"`
	Rationale  string `json:"rationale"`
	Valid      bool   `json:"valid"`
}

// HoldVerdict returns the recoverable fallback verdict used whenever the
// reasoning step cannot produce a well-formed answer.
func HoldVerdict(rationale string) Verdict {
	return Verdict{Action: ActionHold, Confidence: 0, Rationale: rationale, Valid: false}
}

// TradeSetup is the final decision unit handed to execution. It is created
// only by the safety gate and only when every admission condition holds.
type TradeSetup struct {
	ID              string     `json:"id"`
	Symbol          string     `json:"symbol"`
	Direction       Direction  `json:"direction"`
	Entry           float64    `json:"entry"`
	StopLoss        float64    `json:"stop_loss"`
	TakeProfit      float64    `json:"take_profit"`
	TakeProfits     [3]float64 `json:"take_profits"`
	Size            float64    `json:"size"`
	RiskReward      float64    `json:"risk_reward"`
	Confidence      int        `json:"confidence"`
	QuantConfidence int        `json:"quant_confidence"`
	AIConfidence    int        `json:"ai_confidence"`
	Reasoning       []string   `json:"reasoning"`
	Fingerprint     []float64  `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
}
