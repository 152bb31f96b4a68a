// Package agent defines the boundary to remote agents: fetching an agent's
// capability card and invoking one of its entrypoints. The scheduler runtime
// depends only on the interfaces here; the HTTP client is one implementation.
package agent

import (
	"context"
	"encoding/json"
	"net/http"
)

// Entrypoint is one invocable capability advertised on an agent's card.
type Entrypoint struct {
	Description string `json:"description"`
	Streaming   bool   `json:"streaming,omitempty"`
}

// Card is an agent's self-described set of entrypoints, fetched from its
// card URL.
type Card struct {
	Name        string                `json:"name"`
	Endpoint    string                `json:"endpoint"`
	Entrypoints map[string]Entrypoint `json:"entrypoints"`
}

// HasEntrypoint reports whether the card advertises the given key.
func (c *Card) HasEntrypoint(key string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Entrypoints[key]
	return ok
}

// InvokeResult is the remote side's answer to an invocation. Status carries
// the agent-level outcome ("completed", "rejected", ...); it is a result
// value, not a transport failure.
type InvokeResult struct {
	Output json.RawMessage `json:"output"`
	Status string          `json:"status"`
}

// CardClient fetches capability cards.
type CardClient interface {
	FetchCard(ctx context.Context, cardURL string) (*Card, error)
}

// Invoker calls an entrypoint on an agent described by a card. A non-nil
// transport overrides the client's default (used to attach payment headers).
// A returned error means the invocation did not reach a usable response and
// is retryable.
type Invoker interface {
	Invoke(ctx context.Context, card *Card, entrypointKey string, input json.RawMessage, transport http.RoundTripper) (*InvokeResult, error)
}

// PaymentProvider supplies a payment-authorizing transport for invocations
// made on behalf of a wallet. Returning (nil, nil) means no payment transport
// is available and the invocation proceeds unauthenticated.
type PaymentProvider interface {
	TransportWithPayment(ctx context.Context, walletID, network string) (http.RoundTripper, error)
}
