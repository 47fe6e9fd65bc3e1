// Package verdict turns raw validator agent output into structured verdicts
// and combines verdicts from multiple validators into one overall result.
package verdict

import (
	"encoding/json"
	"strings"

	"github.com/crucible-dev/crucible/pkg/models"
)

// wireVerdict is the JSON shape validators are prompted to emit.
type wireVerdict struct {
	ValidatorType   string      `json:"validatorType"`
	TaskID          string      `json:"taskId"`
	Status          string      `json:"status"`
	Checks          []wireCheck `json:"checks"`
	Issues          []string    `json:"issues"`
	Recommendations []string    `json:"recommendations"`
}

type wireCheck struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Evidence string `json:"evidence"`
	Severity string `json:"severity"`
}

// Parse converts a validator's raw text output into a structured verdict.
// It never fails: when no structured signal is found the verdict degrades
// to NEEDS_REVIEW with an issue recording that the output was unparseable.
//
// The stages are tried in priority order, first match wins:
//  1. A fenced code block containing a JSON object with a recognizable status.
//  2. A raw JSON object span anywhere in the text.
//  3. Marker lines (VERDICT:/STATUS:/RESULT:, ISSUE:, RECOMMENDATION:, [✓]/[✗]).
func Parse(raw, validatorKind, taskID string) models.ValidatorVerdict {
	if v, ok := parseFenced(raw, validatorKind, taskID); ok {
		return v
	}
	if v, ok := parseRawObject(raw, validatorKind, taskID); ok {
		return v
	}
	if v, ok := parseMarkers(raw, validatorKind, taskID); ok {
		return v
	}

	return models.ValidatorVerdict{
		ValidatorKind: validatorKind,
		TaskID:        taskID,
		Status:        models.VerdictNeedsReview,
		Issues:        []string{"could not parse validator output"},
	}
}

// parseFenced extracts the first fenced code block and tries to parse it
// as a wire verdict.
func parseFenced(raw, validatorKind, taskID string) (models.ValidatorVerdict, bool) {
	body, ok := extractFencedBlock(raw)
	if !ok {
		return models.ValidatorVerdict{}, false
	}
	return parseJSONSpan(body, validatorKind, taskID)
}

// extractFencedBlock returns the contents of the first ``` fenced block.
// A language tag after the opening fence is skipped.
func extractFencedBlock(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start == -1 {
		return "", false
	}
	rest := raw[start+3:]

	// Drop the language tag line, if any.
	if nl := strings.Index(rest, "\n"); nl != -1 {
		tag := strings.TrimSpace(rest[:nl])
		if tag != "" && !strings.HasPrefix(tag, "{") {
			rest = rest[nl+1:]
		}
	}

	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// parseRawObject scans for a bare JSON object span mentioning a status or
// validator-kind field and tries to parse it.
func parseRawObject(raw, validatorKind, taskID string) (models.ValidatorVerdict, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return models.ValidatorVerdict{}, false
	}
	span := raw[start : end+1]
	if !strings.Contains(span, "\"status\"") && !strings.Contains(span, "\"validatorType\"") {
		return models.ValidatorVerdict{}, false
	}
	return parseJSONSpan(span, validatorKind, taskID)
}

// parseJSONSpan unmarshals a candidate JSON object and validates that it
// carries a recognizable status. An unrecognized status is treated as a
// parse failure rather than coerced.
func parseJSONSpan(span, validatorKind, taskID string) (models.ValidatorVerdict, bool) {
	var wire wireVerdict
	if err := json.Unmarshal([]byte(span), &wire); err != nil {
		return models.ValidatorVerdict{}, false
	}

	status, ok := normalizeStatus(wire.Status)
	if !ok {
		return models.ValidatorVerdict{}, false
	}

	v := models.ValidatorVerdict{
		ValidatorKind:   validatorKind,
		TaskID:          taskID,
		Status:          status,
		Issues:          wire.Issues,
		Recommendations: wire.Recommendations,
	}
	if v.Issues == nil {
		v.Issues = []string{}
	}
	if v.Recommendations == nil {
		v.Recommendations = []string{}
	}
	for _, c := range wire.Checks {
		v.Checks = append(v.Checks, models.ValidationCheck{
			Name:     c.Name,
			Passed:   c.Passed,
			Evidence: c.Evidence,
			Severity: normalizeSeverity(c.Severity),
		})
	}
	return v, true
}

// statusMarkers are line prefixes that introduce an overall verdict.
var statusMarkers = []string{"VERDICT:", "STATUS:", "RESULT:"}

// issueMarkers are line prefixes that introduce an issue.
var issueMarkers = []string{"ISSUE:", "ERROR:", "PROBLEM:"}

// recommendationMarkers are line prefixes that introduce a recommendation.
var recommendationMarkers = []string{"RECOMMENDATION:", "SUGGESTION:", "FIX:"}

// parseMarkers falls back to line-oriented marker scanning.
// It succeeds only when a status marker with a recognizable status is found;
// a status marker carrying an unrecognized status makes the whole output
// unparseable so the caller degrades to NEEDS_REVIEW.
func parseMarkers(raw, validatorKind, taskID string) (models.ValidatorVerdict, bool) {
	v := models.ValidatorVerdict{
		ValidatorKind:   validatorKind,
		TaskID:          taskID,
		Issues:          []string{},
		Recommendations: []string{},
	}

	foundStatus := false
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)

		if text, ok := matchMarker(line, statusMarkers); ok {
			status, recognized := normalizeStatus(text)
			if !recognized {
				return models.ValidatorVerdict{}, false
			}
			v.Status = status
			foundStatus = true
			continue
		}
		if text, ok := matchMarker(line, issueMarkers); ok && text != "" {
			v.Issues = append(v.Issues, text)
			continue
		}
		if text, ok := matchMarker(line, recommendationMarkers); ok && text != "" {
			v.Recommendations = append(v.Recommendations, text)
			continue
		}
		if check, ok := parseCheckLine(line); ok {
			v.Checks = append(v.Checks, check)
		}
	}

	if !foundStatus {
		return models.ValidatorVerdict{}, false
	}
	return v, true
}

// matchMarker returns the text after the first matching prefix.
func matchMarker(line string, markers []string) (string, bool) {
	upper := strings.ToUpper(line)
	for _, m := range markers {
		if strings.HasPrefix(upper, m) {
			return strings.TrimSpace(line[len(m):]), true
		}
	}
	return "", false
}

// parseCheckLine parses bracketed check-mark lines such as
// "[✓] imports resolve" or "[✗] null check missing".
// Severity defaults to major since marker output carries no severity signal.
func parseCheckLine(line string) (models.ValidationCheck, bool) {
	var passed bool
	var rest string

	switch {
	case strings.HasPrefix(line, "[✓]"):
		passed = true
		rest = line[len("[✓]"):]
	case strings.HasPrefix(line, "[✗]"):
		rest = line[len("[✗]"):]
	case strings.HasPrefix(line, "[X]"), strings.HasPrefix(line, "[x]"):
		rest = line[len("[X]"):]
	default:
		return models.ValidationCheck{}, false
	}

	name := strings.TrimSpace(rest)
	if name == "" {
		return models.ValidationCheck{}, false
	}
	return models.ValidationCheck{
		Name:     name,
		Passed:   passed,
		Severity: models.SeverityMajor,
	}, true
}

// normalizeStatus maps free-form status strings onto the three canonical
// verdict values. Unrecognized strings are reported rather than coerced.
func normalizeStatus(s string) (models.VerdictStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "APPROVED", "APPROVE", "PASS", "PASSED", "SUCCESS", "OK":
		return models.VerdictApproved, true
	case "REJECTED", "REJECT", "FAIL", "FAILED", "FAILURE":
		return models.VerdictRejected, true
	case "NEEDS_REVIEW", "NEEDS REVIEW", "NEEDS-REVIEW", "PENDING", "UNKNOWN", "UNSURE":
		return models.VerdictNeedsReview, true
	default:
		return "", false
	}
}

// normalizeSeverity maps free-form severity strings onto the canonical
// values. Unrecognized severities default to major: never dropped, never
// escalated to critical without an explicit signal.
func normalizeSeverity(s string) models.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return models.SeverityCritical
	case "major":
		return models.SeverityMajor
	case "minor":
		return models.SeverityMinor
	default:
		return models.SeverityMajor
	}
}
