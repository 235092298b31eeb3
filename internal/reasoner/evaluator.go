package reasoner

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/infra/breakers"
	"github.com/sawpanic/signalrun/internal/domain/signal"
	"github.com/sawpanic/signalrun/internal/memory"
)

// EvaluatorConfig holds the evaluation-time knobs, snapshotted per cycle by
// the pipeline from the live settings.
type EvaluatorConfig struct {
	// Timeout bounds one Infer call; on expiry the call is cancelled and
	// the cycle continues with an invalid HOLD verdict.
	Timeout time.Duration
	// DegradedCeiling caps the verdict confidence when retrieval came back
	// empty or degraded: the model never gets to be maximally confident
	// without historical grounding.
	DegradedCeiling int
}

// Evaluator runs the reasoning step: payload building, inference under a
// breaker and timeout, strict parsing, and the degraded-retrieval cap.
type Evaluator struct {
	r       Reasoner
	breaker *breakers.Breaker
}

// NewEvaluator creates an evaluator over the given reasoning backend.
func NewEvaluator(r Reasoner) *Evaluator {
	return &Evaluator{r: r, breaker: breakers.New("reasoner")}
}

// BreakerState exposes the reasoner breaker for the metrics gauge.
func (e *Evaluator) BreakerState() float64 { return e.breaker.StateValue() }

// Evaluate produces the cycle's verdict. Every failure mode is recoverable:
// timeout, transport error, open breaker and parse failure all return the
// invalid HOLD verdict rather than an error.
func (e *Evaluator) Evaluate(ctx context.Context, cfg EvaluatorConfig, sig signal.QuantSignal, rc memory.RetrievedContext) signal.Verdict {
	payload := BuildPromptData(sig, rc).Render()

	ictx := ctx
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		ictx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	started := time.Now()
	res, err := e.breaker.Execute(func() (any, error) {
		return e.r.Infer(ictx, payload)
	})
	if err != nil {
		log.Warn().Err(err).Str("symbol", sig.Symbol).
			Dur("elapsed", time.Since(started)).Msg("reasoner call failed, holding")
		return signal.HoldVerdict("reasoner unavailable: " + err.Error())
	}

	verdict := ParseVerdict(res.(string))

	// Without grounding the verdict confidence is capped; this is a hard
	// invariant, not a default.
	if (rc.Degraded || rc.Empty()) && verdict.Confidence > cfg.DegradedCeiling {
		log.Debug().Str("symbol", sig.Symbol).Int("confidence", verdict.Confidence).
			Int("ceiling", cfg.DegradedCeiling).Msg("capping verdict confidence: no retrieval grounding")
		verdict.Confidence = cfg.DegradedCeiling
	}

	log.Info().Str("symbol", sig.Symbol).Str("action", string(verdict.Action)).
		Int("confidence", verdict.Confidence).Bool("valid", verdict.Valid).
		Dur("elapsed", time.Since(started)).Msg("reasoner verdict")
	return verdict
}
