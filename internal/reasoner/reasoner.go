// Package reasoner is the AI evaluation layer: it builds the structured
// prompt payload from the quant signal and the retrieved playbooks, invokes
// the external reasoning model, and strictly parses its verdict.
package reasoner

import "context"

// Reasoner is the external language-model inference boundary. The context
// carries the call timeout; implementations return the raw response text.
type Reasoner interface {
	Infer(ctx context.Context, payload string) (string, error)
}

// ReasonerFunc adapts a function to the Reasoner interface, used by test
// doubles.
type ReasonerFunc func(ctx context.Context, payload string) (string, error)

// Infer calls f.
func (f ReasonerFunc) Infer(ctx context.Context, payload string) (string, error) {
	return f(ctx, payload)
}
