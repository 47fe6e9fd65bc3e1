package retry

import (
	"testing"

	"github.com/crucible-dev/crucible/pkg/models"
)

func TestNewState(t *testing.T) {
	s := NewState("t1", 3)

	if s.TaskID != "t1" {
		t.Errorf("TaskID = %q, want t1", s.TaskID)
	}
	if s.CurrentAttempt != 0 {
		t.Errorf("CurrentAttempt = %d, want 0", s.CurrentAttempt)
	}
	if s.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", s.MaxAttempts)
	}
	if s.Status != StatusInProgress {
		t.Errorf("Status = %q, want in_progress", s.Status)
	}
	if len(s.History) != 0 {
		t.Errorf("History should start empty, got %d entries", len(s.History))
	}
}

func TestNewState_NegativeMaxAttemptsClamped(t *testing.T) {
	s := NewState("t1", -4)
	if s.MaxAttempts != 0 {
		t.Errorf("MaxAttempts = %d, want 0", s.MaxAttempts)
	}
}

func TestRecordAttempt_IncrementsExactlyOnce(t *testing.T) {
	for _, action := range []Action{ActionRetry, ActionEscalate, ActionSuccess, ActionFail} {
		t.Run(string(action), func(t *testing.T) {
			s := NewState("t1", 3)
			next := s.RecordAttempt(nil, nil, []string{"issue"}, action)

			if next.CurrentAttempt != s.CurrentAttempt+1 {
				t.Errorf("CurrentAttempt = %d, want %d", next.CurrentAttempt, s.CurrentAttempt+1)
			}
			if len(next.History) != 1 {
				t.Fatalf("len(History) = %d, want 1", len(next.History))
			}
			if next.History[0].Action != action {
				t.Errorf("recorded action = %q, want %q", next.History[0].Action, action)
			}
		})
	}
}

func TestRecordAttempt_StatusTransitions(t *testing.T) {
	tests := []struct {
		action Action
		want   CycleStatus
	}{
		{ActionRetry, StatusInProgress},
		{ActionSuccess, StatusSuccess},
		{ActionEscalate, StatusEscalated},
		{ActionFail, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			s := NewState("t1", 3)
			next := s.RecordAttempt(nil, nil, nil, tt.action)
			if next.Status != tt.want {
				t.Errorf("Status = %q, want %q", next.Status, tt.want)
			}
			if tt.want != StatusInProgress && !next.Status.Terminal() {
				t.Errorf("Status %q should be terminal", next.Status)
			}
		})
	}
}

func TestRecordAttempt_DoesNotMutateReceiver(t *testing.T) {
	s := NewState("t1", 3)
	first := s.RecordAttempt(nil, nil, []string{"a"}, ActionRetry)

	// Recording onto the first state must not change it or the original.
	second := first.RecordAttempt(nil, nil, []string{"b"}, ActionRetry)

	if s.CurrentAttempt != 0 || len(s.History) != 0 {
		t.Errorf("original state mutated: attempts=%d history=%d", s.CurrentAttempt, len(s.History))
	}
	if first.CurrentAttempt != 1 || len(first.History) != 1 {
		t.Errorf("intermediate state mutated: attempts=%d history=%d", first.CurrentAttempt, len(first.History))
	}
	if second.CurrentAttempt != 2 || len(second.History) != 2 {
		t.Errorf("second state wrong: attempts=%d history=%d", second.CurrentAttempt, len(second.History))
	}
}

func TestRecordAttempt_HistoryEntriesAreStable(t *testing.T) {
	issues := []string{"issue one"}
	s := NewState("t1", 3).RecordAttempt(nil, nil, issues, ActionRetry)

	// Mutating the caller's slice after recording must not leak into the
	// recorded snapshot.
	issues[0] = "rewritten"

	if s.History[0].Issues[0] != "issue one" {
		t.Errorf("history issue = %q, want the snapshot taken at record time", s.History[0].Issues[0])
	}
}

func TestRecordAttempt_CapturesResults(t *testing.T) {
	builder := &models.BuilderOutput{AgentID: "b1", TaskID: "t1", Status: models.BuilderSuccess, Evidence: []models.Evidence{}}
	agg := &models.AggregatedVerdict{OverallStatus: models.VerdictRejected, CriticalIssues: []string{"x"}}

	s := NewState("t1", 3).RecordAttempt(builder, agg, []string{"x"}, ActionRetry)

	if s.History[0].Builder != builder {
		t.Error("builder output not captured in the attempt record")
	}
	if s.History[0].Verdict != agg {
		t.Error("aggregated verdict not captured in the attempt record")
	}
	if s.History[0].Number != 0 {
		t.Errorf("attempt number = %d, want 0", s.History[0].Number)
	}
}

func TestAllIssues(t *testing.T) {
	s := NewState("t1", 5).
		RecordAttempt(nil, nil, []string{"a", "b"}, ActionRetry).
		RecordAttempt(nil, nil, []string{"c"}, ActionRetry)

	got := s.AllIssues()
	if len(got) != 3 {
		t.Fatalf("AllIssues() = %v, want 3 entries", got)
	}
	if got[0] != "a" || got[2] != "c" {
		t.Errorf("AllIssues() order wrong: %v", got)
	}
}

func TestCycleStatus_Terminal(t *testing.T) {
	tests := []struct {
		status CycleStatus
		want   bool
	}{
		{StatusInProgress, false},
		{StatusSuccess, true},
		{StatusFailed, true},
		{StatusEscalated, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}
