package verdict

import (
	"testing"

	"github.com/crucible-dev/crucible/pkg/models"
)

func approved(kind string) models.ValidatorVerdict {
	return models.ValidatorVerdict{ValidatorKind: kind, TaskID: "t1", Status: models.VerdictApproved}
}

func rejected(kind string, issues ...string) models.ValidatorVerdict {
	return models.ValidatorVerdict{ValidatorKind: kind, TaskID: "t1", Status: models.VerdictRejected, Issues: issues}
}

func needsReview(kind string) models.ValidatorVerdict {
	return models.ValidatorVerdict{ValidatorKind: kind, TaskID: "t1", Status: models.VerdictNeedsReview}
}

func TestAggregate_WorstCaseWins(t *testing.T) {
	tests := []struct {
		name     string
		verdicts []models.ValidatorVerdict
		want     models.VerdictStatus
	}{
		{"all approved", []models.ValidatorVerdict{approved("syntax"), approved("logic")}, models.VerdictApproved},
		{"one rejected", []models.ValidatorVerdict{approved("syntax"), rejected("security", "SQL injection risk")}, models.VerdictRejected},
		{"rejected first", []models.ValidatorVerdict{rejected("security", "x"), approved("syntax")}, models.VerdictRejected},
		{"needs review beats approved", []models.ValidatorVerdict{approved("syntax"), needsReview("logic")}, models.VerdictNeedsReview},
		{"rejected beats needs review", []models.ValidatorVerdict{needsReview("logic"), rejected("security", "x")}, models.VerdictRejected},
		{"rejected beats needs review either order", []models.ValidatorVerdict{rejected("security", "x"), needsReview("logic")}, models.VerdictRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.verdicts)
			if got.OverallStatus != tt.want {
				t.Errorf("OverallStatus = %q, want %q", got.OverallStatus, tt.want)
			}
		})
	}
}

func TestAggregate_EmptyInputIsApproved(t *testing.T) {
	got := Aggregate(nil)
	if got.OverallStatus != models.VerdictApproved {
		t.Errorf("OverallStatus = %q, want APPROVED for empty input", got.OverallStatus)
	}
	if len(got.CriticalIssues) != 0 {
		t.Errorf("CriticalIssues = %v, want empty", got.CriticalIssues)
	}
}

func TestAggregate_CollectsRejectedIssues(t *testing.T) {
	got := Aggregate([]models.ValidatorVerdict{
		approved("syntax"),
		rejected("security", "SQL injection risk"),
	})

	if got.OverallStatus != models.VerdictRejected {
		t.Fatalf("OverallStatus = %q, want REJECTED", got.OverallStatus)
	}
	if !containsString(got.CriticalIssues, "SQL injection risk") {
		t.Errorf("CriticalIssues = %v, want it to contain the SQL injection issue", got.CriticalIssues)
	}
}

func TestAggregate_FailedCriticalChecksSurfaceFromAnyVerdict(t *testing.T) {
	// A failed critical check surfaces even when its verdict is approved
	// overall.
	v := approved("security")
	v.Checks = []models.ValidationCheck{
		{Name: "secrets_scan", Passed: false, Evidence: "token in config", Severity: models.SeverityCritical},
		{Name: "deps_pinned", Passed: false, Evidence: "loose version", Severity: models.SeverityMinor},
	}

	got := Aggregate([]models.ValidatorVerdict{v})

	want := "[security] secrets_scan: token in config"
	if !containsString(got.CriticalIssues, want) {
		t.Errorf("CriticalIssues = %v, want it to contain %q", got.CriticalIssues, want)
	}
	// Minor failures do not surface as critical issues.
	if len(got.CriticalIssues) != 1 {
		t.Errorf("len(CriticalIssues) = %d, want 1", len(got.CriticalIssues))
	}
}

func TestAggregate_FlattensCheckEvidence(t *testing.T) {
	v1 := approved("syntax")
	v1.Checks = []models.ValidationCheck{{Name: "parse", Passed: true, Evidence: "clean parse", Severity: models.SeverityMinor}}
	v2 := rejected("logic", "broken branch")
	v2.Checks = []models.ValidationCheck{{Name: "paths", Passed: false, Evidence: "unreachable return", Severity: models.SeverityMajor}}

	got := Aggregate([]models.ValidatorVerdict{v1, v2})

	if len(got.AllEvidence) != 2 {
		t.Fatalf("len(AllEvidence) = %d, want 2: %v", len(got.AllEvidence), got.AllEvidence)
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
