package reasoner

import (
	"fmt"
	"strings"
	"time"

	"github.com/sawpanic/signalrun/internal/domain/signal"
	"github.com/sawpanic/signalrun/internal/memory"
)

// PlaybookEntry is one retrieved scenario rendered into the prompt.
type PlaybookEntry struct {
	Action     string
	Outcome    string
	PnL        float64
	Similarity float64
	Age        time.Duration
}

// PromptData is the structured payload combining the quant signal with the
// retrieved context. Render produces the sectioned text the reasoner
// receives; keeping the struct separate from the rendering makes the
// payload assertable in tests.
type PromptData struct {
	Symbol     string
	Direction  signal.Direction
	Confidence int
	Regime     string
	Reasons    []string
	Playbook   []PlaybookEntry
	Degraded   bool
}

// BuildPromptData assembles the payload from one cycle's signal and
// retrieval bundle.
func BuildPromptData(sig signal.QuantSignal, rc memory.RetrievedContext) PromptData {
	data := PromptData{
		Symbol:     sig.Symbol,
		Direction:  sig.Direction,
		Confidence: sig.Confidence,
		Regime:     string(sig.Regime),
		Reasons:    sig.Reasons(),
		Degraded:   rc.Degraded,
	}
	now := time.Now().UTC()
	for _, rec := range rc.Records {
		data.Playbook = append(data.Playbook, PlaybookEntry{
			Action:     rec.Action,
			Outcome:    rec.Outcome.Label,
			PnL:        rec.Outcome.PnL,
			Similarity: rec.Similarity,
			Age:        now.Sub(rec.CreatedAt),
		})
	}
	return data
}

// Render produces the sectioned prompt text with the strict JSON response
// contract the parser expects.
func (p PromptData) Render() string {
	var b strings.Builder

	b.WriteString("[CONTEXT]\n")
	b.WriteString("You are the validation layer of an automated trading assistant. ")
	b.WriteString("Your job is to confirm or reject quantitative trade signals using the historical playbook below.\n\n")

	b.WriteString("[MARKET DATA]\n")
	fmt.Fprintf(&b, "Symbol: %s\n", p.Symbol)
	fmt.Fprintf(&b, "Proposed direction: %s\n", p.Direction)
	fmt.Fprintf(&b, "Quant confidence: %d/100\n", p.Confidence)
	fmt.Fprintf(&b, "Market regime: %s\n", p.Regime)
	if len(p.Reasons) > 0 {
		fmt.Fprintf(&b, "Quant reasoning: %s\n", strings.Join(p.Reasons, "; "))
	}

	b.WriteString("\n[STRATEGY PLAYBOOK]\n")
	if len(p.Playbook) == 0 {
		if p.Degraded {
			b.WriteString("Playbook retrieval unavailable this cycle. No historical grounding; be conservative.\n")
		} else {
			b.WriteString("No comparable historical scenarios on file. Priority is capital preservation and trend alignment.\n")
		}
	} else {
		for i, e := range p.Playbook {
			fmt.Fprintf(&b, "%d. similarity %.2f, %s ago: action %s, outcome %s (pnl %+.2f)\n",
				i+1, e.Similarity, formatAge(e.Age), e.Action, e.Outcome, e.PnL)
		}
	}

	b.WriteString("\n[INSTRUCTION]\n")
	b.WriteString("Analyze the setup against the playbook and regime. ")
	b.WriteString("Confirm with BUY or SELL only when the evidence supports the proposed direction; otherwise HOLD.\n")
	b.WriteString("Respond ONLY with JSON:\n")
	b.WriteString(`{"decision": "BUY" | "SELL" | "HOLD", "confidence": 0-100, "reason": "one concise sentence"}`)
	b.WriteString("\n")

	return b.String()
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
