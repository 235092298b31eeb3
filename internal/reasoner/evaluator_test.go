package reasoner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalrun/internal/domain/regime"
	"github.com/sawpanic/signalrun/internal/domain/signal"
	"github.com/sawpanic/signalrun/internal/memory"
)

func testSignal() signal.QuantSignal {
	return signal.QuantSignal{
		Symbol:     "EURUSD",
		Direction:  signal.DirectionBuy,
		Confidence: 70,
		Entry:      1.1000,
		Regime:     regime.TrendingStrong,
		Votes: []signal.RuleVote{
			{Rule: "trend", Score: 2, Note: "strong uptrend (EMA 20 > 50 > 200)"},
		},
	}
}

func grounded() memory.RetrievedContext {
	return memory.RetrievedContext{Records: []memory.Scored{
		{Record: memory.Record{ID: "1", Action: "BUY", Outcome: memory.Outcome{Label: "win", PnL: 42.5}, CreatedAt: time.Now().Add(-2 * time.Hour)}, Similarity: 0.91},
	}}
}

func cfg() EvaluatorConfig {
	return EvaluatorConfig{Timeout: time.Second, DegradedCeiling: 50}
}

func TestParseVerdict_WellFormed(t *testing.T) {
	v := ParseVerdict(`{"decision": "BUY", "confidence": 85, "reason": "trend matches playbook"}`)

	assert.True(t, v.Valid)
	assert.Equal(t, signal.ActionBuy, v.Action)
	assert.Equal(t, 85, v.Confidence)
	assert.Equal(t, "trend matches playbook", v.Rationale)
}

func TestParseVerdict_FractionalConfidenceScale(t *testing.T) {
	v := ParseVerdict(`{"decision": "SELL", "confidence": 0.8, "reason": "ok"}`)

	assert.True(t, v.Valid)
	assert.Equal(t, 80, v.Confidence, "0-1 scale responses normalize to 0-100")
}

func TestParseVerdict_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "I think you should BUY here"},
		{"empty", ""},
		{"missing decision", `{"confidence": 80, "reason": "x"}`},
		{"missing confidence", `{"decision": "BUY", "reason": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ParseVerdict(tt.raw)
			assert.False(t, v.Valid)
			assert.Equal(t, signal.ActionHold, v.Action)
			assert.Equal(t, 0, v.Confidence)
		})
	}
}

func TestParseVerdict_UnknownActionCoercedToHold(t *testing.T) {
	v := ParseVerdict(`{"decision": "SHORT_SQUEEZE", "confidence": 90, "reason": "x"}`)

	assert.False(t, v.Valid)
	assert.Equal(t, signal.ActionHold, v.Action)
}

func TestParseVerdict_ConfidenceClamped(t *testing.T) {
	assert.Equal(t, 100, ParseVerdict(`{"decision": "BUY", "confidence": 450, "reason": "x"}`).Confidence)
	assert.Equal(t, 0, ParseVerdict(`{"decision": "BUY", "confidence": -5, "reason": "x"}`).Confidence)
}

func TestEvaluate_HappyPath(t *testing.T) {
	r := ReasonerFunc(func(ctx context.Context, payload string) (string, error) {
		assert.Contains(t, payload, "EURUSD")
		assert.Contains(t, payload, "[STRATEGY PLAYBOOK]")
		return `{"decision": "BUY", "confidence": 85, "reason": "aligned"}`, nil
	})

	v := NewEvaluator(r).Evaluate(context.Background(), cfg(), testSignal(), grounded())

	require.True(t, v.Valid)
	assert.Equal(t, signal.ActionBuy, v.Action)
	assert.Equal(t, 85, v.Confidence, "grounded retrieval leaves confidence uncapped")
}

func TestEvaluate_TimeoutHolds(t *testing.T) {
	r := ReasonerFunc(func(ctx context.Context, payload string) (string, error) {
		select {
		case <-time.After(time.Second):
			return `{"decision": "BUY", "confidence": 85, "reason": "late"}`, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	c := cfg()
	c.Timeout = 20 * time.Millisecond
	v := NewEvaluator(r).Evaluate(context.Background(), c, testSignal(), grounded())

	assert.False(t, v.Valid)
	assert.Equal(t, signal.ActionHold, v.Action)
}

func TestEvaluate_TransportErrorHolds(t *testing.T) {
	r := ReasonerFunc(func(ctx context.Context, payload string) (string, error) {
		return "", errors.New("connection refused")
	})

	v := NewEvaluator(r).Evaluate(context.Background(), cfg(), testSignal(), grounded())

	assert.False(t, v.Valid)
	assert.Equal(t, signal.ActionHold, v.Action)
}

func TestEvaluate_DegradedRetrievalCapsConfidence(t *testing.T) {
	r := ReasonerFunc(func(ctx context.Context, payload string) (string, error) {
		return `{"decision": "BUY", "confidence": 90, "reason": "very sure"}`, nil
	})

	v := NewEvaluator(r).Evaluate(context.Background(), cfg(), testSignal(), memory.RetrievedContext{Degraded: true})

	assert.True(t, v.Valid, "the cap does not invalidate the verdict")
	assert.Equal(t, 50, v.Confidence, "confidence capped at the degraded ceiling")
}

func TestEvaluate_EmptyRetrievalAlsoCaps(t *testing.T) {
	r := ReasonerFunc(func(ctx context.Context, payload string) (string, error) {
		return `{"decision": "SELL", "confidence": 75, "reason": "sure"}`, nil
	})

	sig := testSignal()
	sig.Direction = signal.DirectionSell
	v := NewEvaluator(r).Evaluate(context.Background(), cfg(), sig, memory.RetrievedContext{})

	assert.Equal(t, 50, v.Confidence)
}

func TestEvaluate_LowConfidenceUnaffectedByCeiling(t *testing.T) {
	r := ReasonerFunc(func(ctx context.Context, payload string) (string, error) {
		return `{"decision": "BUY", "confidence": 30, "reason": "weak"}`, nil
	})

	v := NewEvaluator(r).Evaluate(context.Background(), cfg(), testSignal(), memory.RetrievedContext{Degraded: true})

	assert.Equal(t, 30, v.Confidence, "ceiling is a cap, not a floor")
}

func TestRender_DegradedSectionMentionsCaution(t *testing.T) {
	data := BuildPromptData(testSignal(), memory.RetrievedContext{Degraded: true})
	text := data.Render()

	assert.Contains(t, text, "retrieval unavailable")
	assert.Contains(t, text, `"decision"`)
}
