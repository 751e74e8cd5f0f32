package runner_test

import (
	"testing"

	"github.com/ddt-tool/ddt"
	"github.com/ddt-tool/ddt/pkg/adapters/memory"
	"github.com/stretchr/testify/require"
)

const triagePack = `{
  "packId": "triage",
  "title": "Triage",
  "start": "observable",
  "nodes": {
    "observable": {
      "type": "decision",
      "title": "Observation",
      "text": "Was the deficiency observed during the test?",
      "choices": [
        {"label": "No", "value": "no", "next": "dismiss"},
        {"label": "Yes", "value": "yes", "next": "record"}
      ]
    },
    "record": {"type": "outcome", "title": "Recorded"},
    "dismiss": {"type": "outcome", "title": "Dismissed"}
  }
}`

func newEngine(t *testing.T) *ddt.Engine {
	t.Helper()
	eng, err := ddt.New("", ddt.WithSource(memory.NewSource(map[string]string{"triage": triagePack})))
	require.NoError(t, err)
	return eng
}
