package runner

import "sync"

// TokenTracker accumulates token usage across agent invocations, broken
// down per agent so cycle reports can attribute cost.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
	perAgent  map[string]AgentUsage
}

// AgentUsage is the usage accumulated for a single agent ID.
type AgentUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	Calls        int   `json:"calls"`
}

// NewTokenTracker creates an empty tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{perAgent: make(map[string]AgentUsage)}
}

// Add records usage from one invocation.
func (t *TokenTracker) Add(agentID string, input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++

	usage := t.perAgent[agentID]
	usage.InputTokens += input
	usage.OutputTokens += output
	usage.Calls++
	t.perAgent[agentID] = usage
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of invocations recorded.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// ByAgent returns a copy of the per-agent usage breakdown.
func (t *TokenTracker) ByAgent() map[string]AgentUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]AgentUsage, len(t.perAgent))
	for id, usage := range t.perAgent {
		out[id] = usage
	}
	return out
}

// Reset clears all tracked usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok = 0
	t.outputTok = 0
	t.calls = 0
	t.perAgent = make(map[string]AgentUsage)
}

// Cost estimates the cost in USD using approximate Sonnet-class pricing:
// $3 per 1M input tokens, $15 per 1M output tokens.
func (t *TokenTracker) Cost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	inputCost := float64(t.inputTok) / 1_000_000 * 3.0
	outputCost := float64(t.outputTok) / 1_000_000 * 15.0
	return inputCost + outputCost
}
