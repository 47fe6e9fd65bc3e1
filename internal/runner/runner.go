// Package runner invokes builder and validator agents and returns their
// raw text output. Implementations cover the direct Anthropic API (with
// optional AWS Bedrock) and a file bridge for externally hosted agents.
package runner

import (
	"context"
	"time"

	"github.com/crucible-dev/crucible/pkg/models"
)

// Invocation describes a single agent call.
type Invocation struct {
	// AgentID identifies the agent persona (e.g. "builder", "validator-security").
	AgentID string
	// TaskID is the task the call belongs to.
	TaskID string
	// SystemPrompt frames the agent's role. Optional.
	SystemPrompt string
	// Prompt is the user-facing task or validation prompt.
	Prompt string
	// ModelClass selects the capability tier for the call.
	ModelClass models.ModelClass
	// Timeout bounds the call. Zero means the runner's default.
	Timeout time.Duration
}

// Result is an agent's raw response plus usage accounting.
type Result struct {
	// Output is the agent's full text output.
	Output string
	// InputTokens and OutputTokens are the usage reported for the call,
	// zero when the transport does not report usage.
	InputTokens  int64
	OutputTokens int64
}

// AgentRunner executes agent invocations. Implementations must honor
// context cancellation and the invocation timeout.
type AgentRunner interface {
	Invoke(ctx context.Context, inv Invocation) (Result, error)
}
