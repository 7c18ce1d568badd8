package ports

import (
	"context"

	"github.com/aretw0/quill/pkg/domain"
)

// ChatRequest is the input of a single model invocation.
type ChatRequest struct {
	// Messages is the conversation so far, in causal order.
	Messages []domain.Message

	// Instructions, when set, is sent as a trailing system message after the
	// conversation. It is not part of the run's log.
	Instructions string

	// Tools are advertised to the model; it may answer with tool-call requests.
	Tools []domain.Tool

	Temperature float64
}

// ChatModel is the compute boundary behind a stage.
// It returns the model's reply as a stage output message.
type ChatModel interface {
	Chat(ctx context.Context, req ChatRequest) (domain.Message, error)
}
