// internal/transport/transport.go
package transport

import (
	"context"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
)

// Sender delivers one rendered message to one address. Implementations are
// selected per channel by the dispatcher. A failed send returns a
// TransportError; the caller marks only that recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) (providerMessageID string, err error)
}

// Registry maps a job channel to its sender.
type Registry map[string]Sender

// For returns the sender for a channel, or a TransportError when the channel
// has no adapter configured.
func (r Registry) For(channel string) (Sender, error) {
	s, ok := r[channel]
	if !ok {
		return nil, appErrors.NewTransport("no adapter for channel "+channel, nil)
	}
	return s, nil
}
