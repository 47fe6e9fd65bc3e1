package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// defaultInvokeTimeout bounds an agent call when the invocation does not
// carry its own timeout.
const defaultInvokeTimeout = 5 * time.Minute

const defaultMaxTokens = 8192

// APIRunner runs agents as single Anthropic API calls. Builders and
// validators receive their whole task in one prompt and answer in one
// message; there is no tool loop.
type APIRunner struct {
	client    *Client
	maxTokens int64
}

// NewAPIRunner creates a runner backed by the given client.
func NewAPIRunner(client *Client) *APIRunner {
	return &APIRunner{client: client, maxTokens: defaultMaxTokens}
}

// Invoke sends the invocation's prompt to the resolved model and returns
// the concatenated text output.
func (r *APIRunner) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = defaultInvokeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     r.client.ResolveModel(inv.ModelClass),
		MaxTokens: r.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(inv.Prompt)),
		},
	}
	if inv.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: inv.SystemPrompt}}
	}

	resp, err := r.client.sdk().Messages.New(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("invoking %s: %w", inv.AgentID, err)
	}

	r.client.Tracker().Add(inv.AgentID, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}

	return Result{
		Output:       sb.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
