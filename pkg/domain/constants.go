package domain

// Reserved case state paths used by the built-in effects and the case template.
const (
	PathUnlocked         = "analysis_state.unlocked"
	PathAnalysisStage    = "analysis_state.stage"
	PathRequiredSections = "reporting.required_sections"
	PathTags             = "tags"
	PathLastModified     = "timestamps.last_modified_utc"
)

// DefaultPackVersion is assigned to packs that do not declare a version.
const DefaultPackVersion = "1.0.0"
