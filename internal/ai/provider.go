package ai

import "context"

// Provider is a single-shot text completion backend. The carousel planner
// and the topic classifier both drive it with a system prompt and expect
// raw text (usually JSON) back.
type Provider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}
