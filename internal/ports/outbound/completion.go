// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"

	"github.com/sommekat/sommelier/internal/domain/pairing"
)

// Completer sends one single-turn request to a language model.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CompletionRequest is a system prompt plus ordered user content.
// Source material comes first and the instruction text last.
type CompletionRequest struct {
	System    string
	Parts     []pairing.ContentPart
	MaxTokens int

	// CacheSystem marks the system prompt as eligible for provider-side prompt caching.
	CacheSystem bool
}

// Completion is the model's reply.
type Completion struct {
	Text string

	// Truncated is true when generation stopped at the output token budget.
	Truncated bool

	StopReason   string
	Model        string
	InputTokens  int
	OutputTokens int
}
