package casestore

import "time"

// DefaultCase builds the deficiency case blob used by the standard packs.
func DefaultCase(caseID string, now time.Time) map[string]any {
	stamp := now.UTC().Format(time.RFC3339Nano)
	return map[string]any{
		"schema_version": "1.0",
		"case_id":        caseID,
		"case_status":    "IN_PROGRESS",
		"timestamps": map[string]any{
			"created_utc":       stamp,
			"last_modified_utc": stamp,
		},
		"test_context": map[string]any{
			"test_date":     now.UTC().Format(time.DateOnly),
			"test_location": "TBD",
			"test_item":     "SUT",
			"test_type":     "OT",
			"event_id":      "",
		},
		"deficiency_observation": map[string]any{
			"title":                  "Observed Issue",
			"statement":              "Describe the observed behavior and context.",
			"conditions":             "",
			"steps_to_reproduce":     []any{},
			"evidence_references":    []any{},
			"requirement_references": []any{},
		},
		"analysis_state": map[string]any{
			"stage": "FIGURE1_CLASSIFICATION",
			"unlocked": map[string]any{
				"figure1": true,
				"figure2": false,
				"figure3": false,
				"figure4": false,
				"rollup":  false,
				"figure5": false,
			},
		},
		"results": map[string]any{
			"classification":      "UNDETERMINED",
			"failure_type":        "UNDETERMINED",
			"blue_sheet_required": false,
			"blue_sheet_status":   "NOT_APPLICABLE",
			"analysis_method":     "UNDETERMINED",
		},
		"reporting": map[string]any{
			"required_sections":   []any{"DEFICIENCY_DESCRIPTION", "RESULTS_PARAGRAPH"},
			"generated_artifacts": []any{},
			"template_versions":   map[string]any{},
		},
		"attachments": []any{},
	}
}
