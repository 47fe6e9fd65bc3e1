package runner

import "testing"

func TestTokenTrackerTotals(t *testing.T) {
	tracker := NewTokenTracker()
	tracker.Add("builder", 1000, 500)
	tracker.Add("validator-syntax", 200, 100)
	tracker.Add("builder", 300, 0)

	input, output := tracker.Total()
	if input != 1500 || output != 600 {
		t.Errorf("Total() = (%d, %d), want (1500, 600)", input, output)
	}
	if tracker.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", tracker.Calls())
	}
}

func TestTokenTrackerByAgent(t *testing.T) {
	tracker := NewTokenTracker()
	tracker.Add("builder", 1000, 500)
	tracker.Add("builder", 500, 250)
	tracker.Add("validator-logic", 100, 50)

	byAgent := tracker.ByAgent()

	builder := byAgent["builder"]
	if builder.InputTokens != 1500 || builder.OutputTokens != 750 || builder.Calls != 2 {
		t.Errorf("builder usage = %+v", builder)
	}
	if byAgent["validator-logic"].Calls != 1 {
		t.Errorf("validator usage = %+v", byAgent["validator-logic"])
	}

	// The returned map is a copy; mutating it must not affect the tracker.
	byAgent["builder"] = AgentUsage{}
	if tracker.ByAgent()["builder"].Calls != 2 {
		t.Error("ByAgent() returned a live reference")
	}
}

func TestTokenTrackerReset(t *testing.T) {
	tracker := NewTokenTracker()
	tracker.Add("builder", 1000, 500)
	tracker.Reset()

	input, output := tracker.Total()
	if input != 0 || output != 0 || tracker.Calls() != 0 {
		t.Errorf("after Reset: input=%d output=%d calls=%d", input, output, tracker.Calls())
	}
	if len(tracker.ByAgent()) != 0 {
		t.Error("after Reset: per-agent usage not cleared")
	}
}

func TestTokenTrackerCost(t *testing.T) {
	tracker := NewTokenTracker()
	tracker.Add("builder", 1_000_000, 1_000_000)

	cost := tracker.Cost()
	if cost < 17.99 || cost > 18.01 {
		t.Errorf("Cost() = %f, want ~18.00", cost)
	}
}
