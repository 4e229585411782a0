package llm

import (
	"context"
	"errors"
)

// Role tags a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn in a completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the normalized completion request sent to the model provider.
type Request struct {
	// Model overrides the client default when set.
	Model       string
	System      string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// DeltaFunc receives streaming text fragments.
type DeltaFunc func(delta string) error

// ErrMalformedResponse marks a structured reply that failed schema decoding.
// It is never retried: the provider answered, just not in the shape we asked for.
var ErrMalformedResponse = errors.New("malformed structured response")

// Client bridges the engine with a completion provider.
//
// Complete and CompleteStream are single-shot: transient provider failures
// surface directly so the turn can fail at the calling node. CompleteStructured
// retries transient failures up to the configured bound before giving up,
// because router and evaluator verdicts gate the whole turn.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	CompleteStream(ctx context.Context, req Request, onDelta DeltaFunc) (string, error)
	CompleteStructured(ctx context.Context, req Request, out any) error
}
