package cycle

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/crucible-dev/crucible/pkg/models"
)

// wireBuilderOutput is the JSON shape builders are asked to emit.
type wireBuilderOutput struct {
	AgentID        string              `json:"agentId"`
	TaskID         string              `json:"taskId"`
	Status         string              `json:"status"`
	Summary        string              `json:"summary"`
	Evidence       []models.Evidence   `json:"evidence"`
	FilesModified  []models.FileChange `json:"files_modified"`
	SelfValidation *models.SelfValidation `json:"self_validation"`
}

// parseBuilderOutput interprets a builder's raw response. Structured JSON
// (fenced or bare) is decoded; anything else is treated as a free-form
// completed submission with no self-validation claim, left for the
// validators to judge.
func parseBuilderOutput(raw, agentID, taskID string) *models.BuilderOutput {
	for _, candidate := range []string{extractFencedJSON(raw), extractObjectSpan(raw)} {
		if candidate == "" {
			continue
		}
		var wire wireBuilderOutput
		if err := json.Unmarshal([]byte(candidate), &wire); err != nil {
			continue
		}
		status := models.BuilderStatus(strings.ToLower(strings.TrimSpace(wire.Status)))
		if status != models.BuilderSuccess && status != models.BuilderPartial &&
			status != models.BuilderFailed && status != models.BuilderBlocked {
			continue
		}
		evidence := wire.Evidence
		if evidence == nil {
			evidence = []models.Evidence{}
		}
		out := &models.BuilderOutput{
			AgentID:        agentID,
			TaskID:         taskID,
			Status:         status,
			Summary:        wire.Summary,
			Evidence:       evidence,
			FilesModified:  wire.FilesModified,
			SelfValidation: wire.SelfValidation,
			Timestamp:      time.Now(),
		}
		if wire.AgentID != "" {
			out.AgentID = wire.AgentID
		}
		return out
	}

	return &models.BuilderOutput{
		AgentID:   agentID,
		TaskID:    taskID,
		Status:    models.BuilderSuccess,
		Summary:   strings.TrimSpace(raw),
		Evidence:  []models.Evidence{},
		Timestamp: time.Now(),
	}
}

// extractFencedJSON returns the contents of the first ```json fenced block,
// or empty when none closes properly.
func extractFencedJSON(raw string) string {
	start := strings.Index(raw, "```json")
	if start < 0 {
		start = strings.Index(raw, "```")
		if start < 0 {
			return ""
		}
	}
	rest := raw[start+3:]
	if newline := strings.IndexByte(rest, '\n'); newline >= 0 {
		rest = rest[newline+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// extractObjectSpan returns the first top-level {...} span in the text.
func extractObjectSpan(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}
