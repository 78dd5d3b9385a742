// Package notifier provides abstraction for delivering rendered messages.
// It defines the Messenger interface implemented by the Telegram client and
// by the Governor, which wraps a transport with serialized rate-limited
// sending and bounded retries.
package notifier

import "context"

// Messenger sends one rendered message to the configured channel.
// Implementations must respect context cancellation.
type Messenger interface {
	Send(ctx context.Context, text string) error
}
