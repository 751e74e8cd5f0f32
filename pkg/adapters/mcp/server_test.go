package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ddt-tool/ddt"
	"github.com/ddt-tool/ddt/internal/testutils"
	"github.com/ddt-tool/ddt/pkg/adapters/memory"
	"github.com/ddt-tool/ddt/pkg/casestore"
	"github.com/ddt-tool/ddt/pkg/pack"
	"github.com/ddt-tool/ddt/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	src := testutils.Source(map[string]string{"broken": testutils.Broken})
	loader := pack.NewLoader(src)
	mgr := session.NewManager(func() (*ddt.Engine, error) {
		return ddt.New("", ddt.WithLoader(loader), ddt.WithCaseTemplate(casestore.DefaultCase))
	}, memory.NewExportStore())
	return NewServer(mgr, loader, WithLister(src))
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestServer_CaseTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	started, err := s.handleStartCase(ctx, call(nil), packArgs{PackID: "figure1"})
	require.NoError(t, err)
	require.NotEmpty(t, started.CaseID)
	assert.Equal(t, "start", started.View.NodeID)

	answered, err := s.handleAnswer(ctx, call(nil), answerArgs{CaseID: started.CaseID, Key: " yes "})
	require.NoError(t, err)
	assert.Equal(t, "to2", answered.View.NodeID)

	handoff := s.caseTool("handoff", s.sessions.Handoff)
	moved, err := handoff(ctx, call(nil), caseArgs{CaseID: started.CaseID})
	require.NoError(t, err)
	assert.Equal(t, "figure2", moved.View.PackID)

	back := s.caseTool("back", s.sessions.Back)
	moved, err = back(ctx, call(nil), caseArgs{CaseID: started.CaseID})
	require.NoError(t, err)
	assert.Equal(t, "figure1", moved.View.PackID)
	assert.Equal(t, "to2", moved.View.NodeID)

	_, err = s.handleAnswer(ctx, call(nil), answerArgs{CaseID: started.CaseID, Key: "maybe"})
	assert.Error(t, err)

	_, err = back(ctx, call(nil), caseArgs{})
	assert.ErrorContains(t, err, "case_id is required")

	res, err := s.handleExportCase(ctx, call(map[string]any{"case_id": started.CaseID}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	var export map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &export))
	assert.Equal(t, started.CaseID, export["caseId"])

	res, err = s.handleExportCase(ctx, call(map[string]any{"case_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_PackTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleListPacks(ctx, call(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `["broken","figure1","figure2"]`, resultText(t, res))

	valid, err := s.handleValidatePack(ctx, call(nil), packArgs{PackID: "figure1"})
	require.NoError(t, err)
	assert.True(t, valid.Valid)

	invalid, err := s.handleValidatePack(ctx, call(nil), packArgs{PackID: "broken"})
	require.NoError(t, err)
	assert.False(t, invalid.Valid)
	assert.NotEmpty(t, invalid.Error)

	res, err = s.handleGraph(ctx, call(map[string]any{"pack_id": "figure1"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "graph TD")

	var read mcp.ReadResourceRequest
	read.Params.URI = packURIPrefix + "figure2"
	contents, err := s.readPack(ctx, read)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Contains(t, text.Text, `"entryNodeId":"intro"`)
}

func TestServer_ListsTools(t *testing.T) {
	s := newTestServer(t)

	resp := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"start_case", "answer", "continue", "handoff", "back", "restart", "view_case", "export_case", "graph", "list_packs", "validate_pack"} {
		assert.Contains(t, string(data), `"name":"`+name+`"`)
	}
}
