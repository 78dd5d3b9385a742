// Package translator converts English headlines into the delivery language.
// It provides OpenAI and Claude backed implementations plus a no-op
// pass-through for running without an AI provider.
package translator

import "context"

// Translator converts a single text fragment into the target language.
// Implementations should handle retries internally; callers fall back to
// the original text on error.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Noop returns the input unchanged. Used when TRANSLATOR_TYPE is unset.
type Noop struct{}

// NewNoop creates a pass-through translator.
func NewNoop() *Noop { return &Noop{} }

func (n *Noop) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}
