package verdict

import (
	"fmt"

	"github.com/crucible-dev/crucible/pkg/models"
)

// Aggregate combines verdicts from every validator that ran against one
// builder attempt into a single overall verdict.
//
// The overall status is worst-case-wins: any REJECTED input rejects the
// attempt, otherwise any NEEDS_REVIEW input demands review, otherwise the
// attempt is approved. An empty input list aggregates to APPROVED: no
// validators were requested, so there is nothing to fail.
func Aggregate(verdicts []models.ValidatorVerdict) models.AggregatedVerdict {
	agg := models.AggregatedVerdict{
		OverallStatus:  models.VerdictApproved,
		CriticalIssues: []string{},
		AllEvidence:    []string{},
	}

	for _, v := range verdicts {
		switch v.Status {
		case models.VerdictRejected:
			agg.OverallStatus = models.VerdictRejected
			agg.CriticalIssues = append(agg.CriticalIssues, v.Issues...)
		case models.VerdictNeedsReview:
			if agg.OverallStatus != models.VerdictRejected {
				agg.OverallStatus = models.VerdictNeedsReview
			}
		}

		for _, c := range v.Checks {
			if c.Evidence != "" {
				agg.AllEvidence = append(agg.AllEvidence, c.Evidence)
			}
			// Failed critical checks surface regardless of the verdict's
			// own overall status.
			if !c.Passed && c.Severity == models.SeverityCritical {
				agg.CriticalIssues = append(agg.CriticalIssues,
					fmt.Sprintf("[%s] %s: %s", v.ValidatorKind, c.Name, c.Evidence))
			}
		}
	}

	return agg
}
