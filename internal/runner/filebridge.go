package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileBridgeRunner drives agents hosted outside this process through a
// shared directory. A request is written to requests/<task>-<agent>.md;
// the external harness answers by writing responses/<task>-<agent>.md.
// A watcher picks the response up immediately, with a polling fallback
// for filesystems that do not deliver events.
type FileBridgeRunner struct {
	dir          string
	pollInterval time.Duration
}

// NewFileBridgeRunner creates the bridge directories under dir.
func NewFileBridgeRunner(dir string) (*FileBridgeRunner, error) {
	for _, sub := range []string{"requests", "responses"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("creating bridge directory: %w", err)
		}
	}
	return &FileBridgeRunner{dir: dir, pollInterval: time.Second}, nil
}

// Invoke writes the request file and blocks until the response file
// appears, the context is cancelled, or the timeout elapses.
func (r *FileBridgeRunner) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = defaultInvokeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := fmt.Sprintf("%s-%s.md", inv.TaskID, inv.AgentID)
	responsePath := filepath.Join(r.dir, "responses", name)

	// Drop any stale response from a previous run before requesting.
	os.Remove(responsePath)

	request := inv.Prompt
	if inv.SystemPrompt != "" {
		request = inv.SystemPrompt + "\n\n---\n\n" + inv.Prompt
	}
	requestPath := filepath.Join(r.dir, "requests", name)
	if err := os.WriteFile(requestPath, []byte(request), 0644); err != nil {
		return Result{}, fmt.Errorf("writing request for %s: %w", inv.AgentID, err)
	}

	// Watcher failures are not fatal; the poll ticker covers the gap.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		watcher = nil
	} else {
		defer watcher.Close()
		if err := watcher.Add(filepath.Join(r.dir, "responses")); err != nil {
			watcher = nil
		}
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		if content, ok := r.readResponse(responsePath); ok {
			return Result{Output: content}, nil
		}

		var events chan fsnotify.Event
		if watcher != nil {
			events = watcher.Events
		}

		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("waiting for %s response: %w", inv.AgentID, ctx.Err())
		case event := <-events:
			if event.Name != responsePath {
				continue
			}
		case <-ticker.C:
		}
	}
}

// readResponse returns the response content once the file exists and is
// non-empty. An empty file means the writer has not finished.
func (r *FileBridgeRunner) readResponse(path string) (string, bool) {
	content, err := os.ReadFile(path)
	if err != nil || len(content) == 0 {
		return "", false
	}
	return string(content), true
}
