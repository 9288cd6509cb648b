package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/qreplay/examples/bell"
	"github.com/wilhg/qreplay/pkg/hardware"
	"github.com/wilhg/qreplay/pkg/registry"
	"github.com/wilhg/qreplay/pkg/replay"
	"github.com/wilhg/qreplay/pkg/sampling"
)

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	dev := hardware.V2("bell")
	doc, err := bell.Corpus(ctx, dev, 10, 1)
	require.NoError(t, err)
	b, err := replay.New(doc, dev)
	require.NoError(t, err)
	reg := registry.New()
	require.NoError(t, reg.Register("bell", b))

	srv, err := New(reg, "test")
	require.NoError(t, err)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := srv.MCP().Connect(ctx, st, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func decode(t *testing.T, res *mcp.CallToolResult, out any) {
	t.Helper()
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func bellArgs(t *testing.T, shots int) map[string]any {
	t.Helper()
	raw, err := json.Marshal(SampleInput{Backend: "bell", Circuit: bell.Circuit(), Shots: shots})
	require.NoError(t, err)
	var args map[string]any
	require.NoError(t, json.Unmarshal(raw, &args))
	return args
}

func TestListTools(t *testing.T) {
	cs := connect(t)
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"sample", "export_corpus", "list_backends"}, names)
}

func TestSampleTool(t *testing.T) {
	ctx := context.Background()
	cs := connect(t)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "sample", Arguments: bellArgs(t, 10)})
	require.NoError(t, err)
	require.False(t, res.IsError, "first replay should succeed: %+v", res.Content)
	var out SampleOutput
	decode(t, res, &out)
	assert.NotEmpty(t, out.JobID)
	assert.Equal(t, sampling.Counts{"00": 5, "11": 5}, out.Counts)

	// The corpus holds one record; the second call is a tool error.
	res, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "sample", Arguments: bellArgs(t, 10)})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(text.Text, "replay/replay_exhausted: "), text.Text)

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "sample", Arguments: map[string]any{
		"backend": "nope", "circuit": map[string]any{"qubit_count": 1}, "shots": 1,
	}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestExportAndListTools(t *testing.T) {
	ctx := context.Background()
	cs := connect(t)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "export_corpus", Arguments: map[string]any{"backend": "bell"}})
	require.NoError(t, err)
	require.False(t, res.IsError)
	var exp ExportOutput
	decode(t, res, &exp)
	records, err := replay.Decode([]byte(exp.Corpus))
	require.NoError(t, err)
	assert.Len(t, records, 1)

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "list_backends", Arguments: map[string]any{}})
	require.NoError(t, err)
	var list ListOutput
	decode(t, res, &list)
	require.Len(t, list.Backends, 1)
	assert.Equal(t, "bell", list.Backends[0].Name)
	assert.Equal(t, hardware.APIV2, list.Backends[0].Device.API)
}
