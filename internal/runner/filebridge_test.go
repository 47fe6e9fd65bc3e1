package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crucible-dev/crucible/pkg/models"
)

func newTestBridge(t *testing.T) *FileBridgeRunner {
	t.Helper()
	bridge, err := NewFileBridgeRunner(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBridgeRunner: %v", err)
	}
	bridge.pollInterval = 20 * time.Millisecond
	return bridge
}

func TestFileBridgeRoundTrip(t *testing.T) {
	bridge := newTestBridge(t)

	inv := Invocation{
		AgentID:    "validator-syntax",
		TaskID:     "task-42",
		Prompt:     "validate the diff",
		ModelClass: models.ModelClassLow,
		Timeout:    5 * time.Second,
	}

	responsePath := filepath.Join(bridge.dir, "responses", "task-42-validator-syntax.md")
	go func() {
		// Wait for the request file before answering, like a real harness.
		requestPath := filepath.Join(bridge.dir, "requests", "task-42-validator-syntax.md")
		for i := 0; i < 100; i++ {
			if _, err := os.Stat(requestPath); err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		os.WriteFile(responsePath, []byte("VERDICT: APPROVED"), 0644)
	}()

	result, err := bridge.Invoke(context.Background(), inv)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.Output != "VERDICT: APPROVED" {
		t.Errorf("Output = %q", result.Output)
	}
}

func TestFileBridgeWritesRequest(t *testing.T) {
	bridge := newTestBridge(t)

	inv := Invocation{
		AgentID:      "builder",
		TaskID:       "task-1",
		SystemPrompt: "You implement tasks.",
		Prompt:       "add the endpoint",
		Timeout:      200 * time.Millisecond,
	}

	// The call times out; we only care about the request file content.
	_, err := bridge.Invoke(context.Background(), inv)
	if err == nil {
		t.Fatal("Invoke succeeded without a response file")
	}

	content, readErr := os.ReadFile(filepath.Join(bridge.dir, "requests", "task-1-builder.md"))
	if readErr != nil {
		t.Fatalf("reading request: %v", readErr)
	}
	text := string(content)
	if !strings.Contains(text, "You implement tasks.") || !strings.Contains(text, "add the endpoint") {
		t.Errorf("request content = %q", text)
	}
}

func TestFileBridgeTimeout(t *testing.T) {
	bridge := newTestBridge(t)

	_, err := bridge.Invoke(context.Background(), Invocation{
		AgentID: "builder",
		TaskID:  "task-1",
		Prompt:  "noop",
		Timeout: 100 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("Invoke returned nil error, want timeout")
	}
	if !strings.Contains(err.Error(), "deadline") && !strings.Contains(err.Error(), "context") {
		t.Errorf("err = %v, want a context deadline error", err)
	}
}

func TestFileBridgeRemovesStaleResponse(t *testing.T) {
	bridge := newTestBridge(t)

	stale := filepath.Join(bridge.dir, "responses", "task-1-builder.md")
	if err := os.WriteFile(stale, []byte("old answer"), 0644); err != nil {
		t.Fatal(err)
	}

	// No fresh response arrives, so the stale file must not be returned.
	_, err := bridge.Invoke(context.Background(), Invocation{
		AgentID: "builder",
		TaskID:  "task-1",
		Prompt:  "noop",
		Timeout: 150 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("Invoke returned the stale response")
	}
}

func TestFileBridgeCancellation(t *testing.T) {
	bridge := newTestBridge(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := bridge.Invoke(ctx, Invocation{
		AgentID: "builder",
		TaskID:  "task-1",
		Prompt:  "noop",
		Timeout: 10 * time.Second,
	})
	if err == nil {
		t.Fatal("Invoke returned nil error after cancellation")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Invoke did not return promptly after cancellation")
	}
}
