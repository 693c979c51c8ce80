package session

import (
	"context"
	"fmt"
)

// Channel is an open conduit to the realtime provider for one session.
// Implementations must be safe for concurrent use.
type Channel interface {
	// SendAudio forwards a decoded audio chunk to the provider.
	SendAudio(ctx context.Context, audio []byte, timestamp, sequence int64) error
	// SendText forwards a text input to the provider.
	SendText(ctx context.Context, text string, timestamp, sequence int64) error
	// Close tears the channel down. Safe to call more than once.
	Close(ctx context.Context) error
}

// Registry tracks the currently-open provider channels by session ID. It is
// process-local and volatile; the Store remains the durable record. A session
// absent from the registry has no open channel even if its row still exists.
type Registry interface {
	Register(sessionID string, ch Channel)
	Lookup(sessionID string) (Channel, bool)
	// Deregister removes and returns the channel, if any.
	Deregister(sessionID string) (Channel, bool)
	Len() int
}

// ChannelOpener dials a new provider channel for a session.
type ChannelOpener interface {
	Open(ctx context.Context, sessionID, model string) (Channel, error)
}

// CredentialIssuer requests a fresh single-use, model-scoped credential from
// the provider. One credential per negotiation; never cached.
type CredentialIssuer interface {
	Issue(ctx context.Context, model string) (*ClientSecret, error)
}

// Negotiator forwards an SDP offer to the provider and returns its answer.
type Negotiator interface {
	Negotiate(ctx context.Context, offerSDP, model, clientSecret string) (*NegotiationResult, error)
}

// UpstreamError carries a provider non-2xx response through to the caller
// unmodified. Status and Body are the provider's own; the relay never
// synthesizes a different error.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.Status)
}
