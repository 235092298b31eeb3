package reasoner

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/sawpanic/signalrun/internal/domain/signal"
)

// rawVerdict mirrors the JSON contract the prompt demands. Confidence is a
// number so responses on a 0-1 scale parse too.
type rawVerdict struct {
	Decision   string   `json:"decision"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
}

// ParseVerdict strictly parses the raw model response into a Verdict.
// Malformed JSON, a missing decision or a missing confidence yield the
// invalid HOLD verdict; an unrecognized action is coerced to HOLD with
// Valid false. Loosely-typed model output never crosses this boundary.
func ParseVerdict(raw string) signal.Verdict {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return signal.HoldVerdict("empty reasoner response")
	}

	var rv rawVerdict
	if err := json.Unmarshal([]byte(trimmed), &rv); err != nil {
		return signal.HoldVerdict("malformed reasoner response: not valid JSON")
	}
	if rv.Decision == "" {
		return signal.HoldVerdict("malformed reasoner response: missing decision")
	}
	if rv.Confidence == nil {
		return signal.HoldVerdict("malformed reasoner response: missing confidence")
	}

	var action signal.Action
	switch strings.ToUpper(strings.TrimSpace(rv.Decision)) {
	case "BUY":
		action = signal.ActionBuy
	case "SELL":
		action = signal.ActionSell
	case "HOLD":
		action = signal.ActionHold
	default:
		v := signal.HoldVerdict("unrecognized action coerced to HOLD")
		v.Rationale = rv.Reason
		v.Valid = false
		return v
	}

	return signal.Verdict{
		Action:     action,
		Confidence: normalizeConfidence(*rv.Confidence),
		Rationale:  rv.Reason,
		Valid:      true,
	}
}

// normalizeConfidence maps both 0-1 and 0-100 scales onto a clamped 0-100
// integer.
func normalizeConfidence(c float64) int {
	if c > 0 && c <= 1 {
		c *= 100
	}
	c = math.Round(c)
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return int(c)
}
