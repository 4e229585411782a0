package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no provider is
// configured. Structured calls answer with StructuredJSON, which defaults to a
// verdict that keeps the engine on the plain conversation path.
type MockClient struct {
	StructuredJSON string
}

func NewMock() *MockClient {
	return &MockClient{
		StructuredJSON: `{"requires_rag": false, "is_sufficient": true, "is_important": false, "corrected_query": "", "formatted_memory": ""}`,
	}
}

func (c *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return buildMockReply(req), nil
}

func (c *MockClient) CompleteStream(ctx context.Context, req Request, onDelta DeltaFunc) (string, error) {
	text, err := c.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if onDelta != nil && text != "" {
		if err := onDelta(text); err != nil {
			return "", err
		}
	}
	return text, nil
}

func (c *MockClient) CompleteStructured(ctx context.Context, req Request, out any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := json.Unmarshal([]byte(c.StructuredJSON), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func buildMockReply(req Request) string {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			last = strings.TrimSpace(req.Messages[i].Content)
			break
		}
	}
	if last == "" {
		return "I am listening."
	}
	return fmt.Sprintf("I heard you: %s", last)
}
