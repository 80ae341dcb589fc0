package ports

import (
	"context"
	"net/http"

	"github.com/aretw0/botflow/pkg/domain"
)

// HTTPDoer sends the outbound request of an http_request node.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CompletionRequest is one single-turn chat completion.
type CompletionRequest struct {
	Model        string
	Temperature  *float32
	MaxTokens    int
	SystemPrompt string
	UserPrompt   string
}

// CompletionProvider answers ai_response nodes.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// DepartmentDirectory lists the departments an AI router may transfer to.
type DepartmentDirectory interface {
	ListDepartments(ctx context.Context) ([]domain.Department, error)
}

// Notifier delivers a message to the user outside the response of the current chain.
// Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, msg domain.MessageContext, text string) error
}
