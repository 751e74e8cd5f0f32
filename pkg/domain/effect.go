package domain

// Effect is a declarative side-effect applied to the case state on node entry.
// Unknown types are ignored by the applicator so packs can carry descriptors
// newer than the interpreter.
type Effect struct {
	Type  string `json:"type" yaml:"type" mapstructure:"type"`
	Path  string `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
}

// Effect types understood by the applicator.
const (
	EffectSet                = "SET"
	EffectSetResult          = "SET_RESULT"
	EffectAppendTags         = "APPEND_TAGS"
	EffectUnlock             = "UNLOCK"
	EffectAddRequiredSection = "ADD_REQUIRED_SECTION"
	EffectSetAnalysisStage   = "SET_ANALYSIS_STAGE"

	// Recognized but handled outside the applicator.
	EffectMarkPackComplete = "MARK_PACK_COMPLETE"
	EffectRouteToPack      = "ROUTE_TO_PACK"
	EffectAction           = "ACTION"
)
