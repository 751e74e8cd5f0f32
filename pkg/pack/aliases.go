package pack

import "github.com/ddt-tool/ddt/pkg/domain"

// Field aliases accepted in pack documents, in lookup order. The first alias
// present with a non-null value wins. Dotted entries are gjson paths.
var (
	packIDKeys      = []string{"packId", "id"}
	packTitleKeys   = []string{"title", "name"}
	packVersionKeys = []string{"version"}
	packEntryKeys   = []string{"entryNodeId", "start", "startNode", "entry"}
	packNodesKeys   = []string{"nodes", "steps", "tree", "meta.nodes"}
	packSourceKeys  = []string{"source"}

	nodeIDKeys      = []string{"id", "key"}
	nodeTypeKeys    = []string{"type", "kind"}
	nodeTitleKeys   = []string{"title", "name"}
	nodeBodyKeys    = []string{"body", "description"}
	nodeTextKeys    = []string{"text", "question", "prompt", "questionText"}
	nodeChoicesKeys = []string{"choices", "options", "answers"}
	nodeNextKeys    = []string{"next", "to", "goto"}
	nodeEffectsKeys = []string{"effects", "actions"}

	handoffTargetKeys = []string{"handoff.targetPackId", "handoff.target", "handoff.packId", "targetPackId", "toPack"}
	handoffReasonKeys = []string{"handoff.reason", "reason"}

	choiceLabelKeys  = []string{"label", "text", "name"}
	choiceKeyKeys    = []string{"value", "key"}
	choiceTargetKeys = []string{"next", "to", "goto", "target"}

	noteTitleKeys = []string{"title", "term", "name"}
	noteBodyKeys  = []string{"body", "text", "definition"}
)

// typeAliases maps lower-cased type values onto canonical node types.
var typeAliases = map[string]domain.NodeType{
	"info":        domain.NodeTypeInfo,
	"action":      domain.NodeTypeInfo,
	"instruction": domain.NodeTypeInfo,
	"text":        domain.NodeTypeInfo,

	"decision": domain.NodeTypeDecision,
	"question": domain.NodeTypeDecision,

	"outcome":  domain.NodeTypeOutcome,
	"end":      domain.NodeTypeOutcome,
	"terminal": domain.NodeTypeOutcome,
	"result":   domain.NodeTypeOutcome,

	"handoff": domain.NodeTypeHandoff,

	"connector": domain.NodeTypeConnector,
	"jump":      domain.NodeTypeConnector,
	"link":      domain.NodeTypeConnector,
}
