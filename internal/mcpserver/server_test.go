// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/p2kb/internal/knowledge"
	"github.com/pdiddy/p2kb/internal/lookup"
	"github.com/pdiddy/p2kb/pkg/types"
)

type fakeSearcher struct {
	got     knowledge.QueryOptions
	results []knowledge.QueryResult
	err     error
}

func (f *fakeSearcher) Retrieve(_ context.Context, opts knowledge.QueryOptions) ([]knowledge.QueryResult, error) {
	f.got = opts
	return f.results, f.err
}

func newKB(t *testing.T) *lookup.KB {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"instructions/pasm2/math/pasm2_add.yaml":         "mnemonic: ADD\nsyntax: 'ADD D,{#}S'\ntiming:\n  8: 2\n  16: 4\n",
		"manifests/pasm2-manifest.yaml":                  "categories:\n  - name: Math\n    path: math\n    description: Arithmetic\n    instructions: [ADD]\n",
		"hardware/smart-pins/modes/00010_dac_noise.yaml": "description: DAC noise\n",
		"language/spin2/methods/waitms.yaml":             "name: WAITMS\n",
		"external-projects/demo/pwm-notes.md":            "# PWM\nduty cycle\nPWM via smart pins\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return lookup.New(types.DefaultKnowledgeBaseConfig(root))
}

func call(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	require.NotNil(t, tool, "tool %s not registered", name)
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestToolsRegistered(t *testing.T) {
	s := New(newKB(t), nil, "test")
	for _, name := range []string{
		"p2_instruction", "p2_instruction_list", "smart_pin_mode",
		"smart_pin_list", "spin2_method", "search_patterns",
	} {
		assert.NotNil(t, s.GetTool(name), name)
	}
	assert.Nil(t, s.GetTool("kb_search"))

	s = New(newKB(t), &fakeSearcher{}, "test")
	assert.NotNil(t, s.GetTool("kb_search"))
}

func TestInstructionTool(t *testing.T) {
	s := New(newKB(t), nil, "test")

	res := call(t, s, "p2_instruction", map[string]any{"mnemonic": "add"})
	assert.False(t, res.IsError)
	out := text(t, res)
	assert.Contains(t, out, "\n  \"mnemonic\": \"ADD\"")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "ADD D,{#}S", rec["syntax"])
	assert.Equal(t, map[string]any{"8": float64(2), "16": float64(4)}, rec["timing"])

	res = call(t, s, "p2_instruction", map[string]any{"mnemonic": "NOPE"})
	assert.False(t, res.IsError)
	assert.Equal(t, "Instruction 'NOPE' not found", text(t, res))

	res = call(t, s, "p2_instruction", map[string]any{})
	assert.True(t, res.IsError)
}

func TestInstructionListTool(t *testing.T) {
	s := New(newKB(t), nil, "test")

	out := text(t, call(t, s, "p2_instruction_list", map[string]any{"category": "MATH"}))
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Math", got["category"])
	assert.Equal(t, "Arithmetic", got["description"])
	assert.Equal(t, []any{"ADD"}, got["instructions"])

	res := call(t, s, "p2_instruction_list", map[string]any{"category": "video"})
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "available categories: Math")
}

func TestSmartPinTools(t *testing.T) {
	s := New(newKB(t), nil, "test")

	out := text(t, call(t, s, "smart_pin_mode", map[string]any{"mode": "2"}))
	assert.Contains(t, out, "DAC noise")

	assert.Equal(t, "Smart Pin mode 'usb' not found",
		text(t, call(t, s, "smart_pin_mode", map[string]any{"mode": "usb"})))

	var modes []lookup.PinMode
	require.NoError(t, json.Unmarshal([]byte(text(t, call(t, s, "smart_pin_list", nil))), &modes))
	assert.Equal(t, []lookup.PinMode{
		{Binary: "00010", Decimal: 2, Name: "dac_noise", Description: "DAC noise"},
	}, modes)
}

func TestSpin2MethodTool(t *testing.T) {
	s := New(newKB(t), nil, "test")

	assert.Contains(t, text(t, call(t, s, "spin2_method", map[string]any{"method": "WAITMS"})), "WAITMS")
	assert.Equal(t, "Spin2 method 'cogspin' not found",
		text(t, call(t, s, "spin2_method", map[string]any{"method": "cogspin"})))
}

func TestSearchPatternsTool(t *testing.T) {
	s := New(newKB(t), nil, "test")

	var results []lookup.PatternMatch
	out := text(t, call(t, s, "search_patterns", map[string]any{"pattern": "pwm"}))
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "external-projects/demo/pwm-notes.md", results[0].File)
	assert.Equal(t, []string{"# PWM", "PWM via smart pins"}, results[0].Matches)

	assert.Equal(t, "No patterns found matching 'spi'",
		text(t, call(t, s, "search_patterns", map[string]any{"pattern": "spi"})))
}

func TestKBSearchTool(t *testing.T) {
	search := &fakeSearcher{results: []knowledge.QueryResult{{
		Entry: types.Entry{ID: "instructions/pasm2/incmod.yaml", Kind: types.KindInstruction, Name: "INCMOD"},
		Rank:  -1.5,
	}}}
	s := New(newKB(t), search, "test")

	out := text(t, call(t, s, "kb_search", map[string]any{
		"query": "modulo", "kind": "instruction", "max_results": float64(3),
	}))
	assert.Contains(t, out, "\"name\": \"INCMOD\"")
	assert.Equal(t, knowledge.QueryOptions{
		Query: "modulo", Kind: types.KindInstruction, MaxResults: 3,
	}, search.got)

	search.results = nil
	assert.Equal(t, "No entries match 'nothing'",
		text(t, call(t, s, "kb_search", map[string]any{"query": "nothing"})))

	search.err = errors.New("fts5: syntax error")
	res := call(t, s, "kb_search", map[string]any{"query": "\"unbalanced"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "syntax error")
}

func TestServeStdio(t *testing.T) {
	s := New(newKB(t), nil, "1.2.3")

	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	}, "\n") + "\n")
	var out bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, Serve(ctx, s, in, &out))

	got := out.String()
	assert.Contains(t, got, `"name":"p2-knowledge-base"`)
	assert.Contains(t, got, `"version":"1.2.3"`)
	assert.Contains(t, got, `"p2_instruction"`)
}
