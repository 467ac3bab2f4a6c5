// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lookup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/p2kb/pkg/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func seedKB(t *testing.T) *KB {
	t.Helper()
	root := t.TempDir()
	cfg := types.DefaultKnowledgeBaseConfig(root)

	writeFile(t, root, "instructions/pasm2/pasm2_add.yaml", "mnemonic: ADD\ncategory: math\n")
	writeFile(t, root, "instructions/pasm2/math/incmod.yaml", "mnemonic: INCMOD\ncategory: math\n")
	writeFile(t, root, "instructions/pasm2/branch/incmod.yaml", "mnemonic: INCMOD\ncategory: branch\n")

	writeFile(t, root, "manifests/pasm2-manifest.yaml", `categories:
  - name: Math
    path: math
    description: Arithmetic
    instructions: [ADD, INCMOD]
  - name: Branch
    path: branch-flow
    description: Jumps and calls
    instructions: [JMP]
`)

	writeFile(t, root, "hardware/smart-pins/modes/00010_dac_noise.yaml", "description: DAC noise\n")
	writeFile(t, root, "hardware/smart-pins/modes/11100_sync_tx.yaml", "description: Synchronous serial transmit\n")
	writeFile(t, root, "hardware/smart-pins/modes/00001_repository.yaml", "mode: 1\n")
	writeFile(t, root, "hardware/smart-pins/modes/README.yaml", "title: modes\n")

	writeFile(t, root, "language/spin2/methods/waitms.yaml", "name: WAITMS\n")
	writeFile(t, root, "language/spin2/spin2_cogid.yaml", "name: COGID\n")

	writeFile(t, root, "external-projects/flexprop/multi-cog-startup.md",
		"# Multi-Cog startup\nplain line\nlaunch with COGINIT for MULTI-COG use\n")
	writeFile(t, root, "external-projects/other/pwm.md", "multi-cog mentioned but file name does not match\n")
	writeFile(t, root, "external-projects/other/multi-cog-empty.md", "nothing relevant\n")

	return New(cfg)
}

func TestInstruction(t *testing.T) {
	kb := seedKB(t)

	tests := []struct {
		name         string
		mnemonic     string
		category     string
		wantCategory string
	}{
		{name: "prefixed file", mnemonic: "ADD", wantCategory: "math"},
		{name: "lowercase query", mnemonic: "add", wantCategory: "math"},
		{name: "category first", mnemonic: "INCMOD", category: "math", wantCategory: "math"},
		{name: "other category", mnemonic: "incmod", category: "branch", wantCategory: "branch"},
		{name: "tree walk order", mnemonic: "INCMOD", wantCategory: "branch"},
		{name: "unknown category falls back", mnemonic: "ADD", category: "nope", wantCategory: "math"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := kb.Instruction(tt.mnemonic, tt.category)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCategory, rec["category"])
		})
	}

	t.Run("not found", func(t *testing.T) {
		_, err := kb.Instruction("NOPE", "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := kb.Instruction("  ", "")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestInstructionIntegerKeys(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "instructions/pasm2/pasm2_add.yaml",
		"mnemonic: ADD\ntiming:\n  8: 2\n  16: 4\nforms:\n  - {1: wc}\n")

	rec, err := New(types.DefaultKnowledgeBaseConfig(root)).Instruction("ADD", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"8": 2, "16": 4}, rec["timing"])
	assert.Equal(t, []any{map[string]any{"1": "wc"}}, rec["forms"])
}

func TestInstructionList(t *testing.T) {
	kb := seedKB(t)

	t.Run("by name", func(t *testing.T) {
		c, err := kb.InstructionList("math")
		require.NoError(t, err)
		assert.Equal(t, "Math", c.Name)
		assert.Equal(t, "Arithmetic", c.Description)
		assert.Equal(t, []string{"ADD", "INCMOD"}, c.Instructions)
	})
	t.Run("by path", func(t *testing.T) {
		c, err := kb.InstructionList("branch-flow")
		require.NoError(t, err)
		assert.Equal(t, "Branch", c.Name)
	})
	t.Run("unknown", func(t *testing.T) {
		_, err := kb.InstructionList("video")
		require.ErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "Math, Branch")
	})
	t.Run("missing manifest", func(t *testing.T) {
		empty := New(types.DefaultKnowledgeBaseConfig(t.TempDir()))
		_, err := empty.InstructionList("math")
		assert.Error(t, err)
	})
}

func TestSmartPinMode(t *testing.T) {
	kb := seedKB(t)

	tests := []struct {
		mode string
		want string
	}{
		{mode: "00010", want: "DAC noise"},
		{mode: "2", want: "DAC noise"},
		{mode: "28", want: "Synchronous serial transmit"},
		{mode: "sync_tx", want: "Synchronous serial transmit"},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			rec, err := kb.SmartPinMode(tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec["description"])
		})
	}

	for _, mode := range []string{"00011", "40", "uart"} {
		t.Run("missing "+mode, func(t *testing.T) {
			_, err := kb.SmartPinMode(mode)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSmartPinPattern(t *testing.T) {
	tests := map[string]string{
		"00010":   "00010_*.yaml",
		"3":       "00011_*.yaml",
		"31":      "11111_*.yaml",
		"sync_tx": "*_sync_tx.yaml",
	}
	for mode, want := range tests {
		got, err := smartPinPattern(mode)
		require.NoError(t, err, mode)
		assert.Equal(t, want, got, mode)
	}
}

func TestSmartPinModes(t *testing.T) {
	kb := seedKB(t)

	modes, err := kb.SmartPinModes()
	require.NoError(t, err)
	assert.Equal(t, []PinMode{
		{Binary: "00001", Decimal: 1, Name: "repository"},
		{Binary: "00010", Decimal: 2, Name: "dac_noise", Description: "DAC noise"},
		{Binary: "11100", Decimal: 28, Name: "sync_tx", Description: "Synchronous serial transmit"},
	}, modes)
}

func TestSpin2Method(t *testing.T) {
	kb := seedKB(t)

	rec, err := kb.Spin2Method("WaitMS")
	require.NoError(t, err)
	assert.Equal(t, "WAITMS", rec["name"])

	rec, err = kb.Spin2Method("cogid")
	require.NoError(t, err)
	assert.Equal(t, "COGID", rec["name"])

	_, err = kb.Spin2Method("pinwrite")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchPatterns(t *testing.T) {
	kb := seedKB(t)

	results, err := kb.SearchPatterns("multi-cog")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "external-projects/flexprop/multi-cog-startup.md", results[0].File)
	assert.Equal(t, []string{
		"# Multi-Cog startup",
		"launch with COGINIT for MULTI-COG use",
	}, results[0].Matches)

	results, err = kb.SearchPatterns("spi")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchPatternsLimit(t *testing.T) {
	root := t.TempDir()
	var content string
	for i := 0; i < 8; i++ {
		content += "pwm line\n"
	}
	writeFile(t, root, "external-projects/p/pwm.md", content)

	results, err := New(types.DefaultKnowledgeBaseConfig(root)).SearchPatterns("PWM")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Matches, maxPatternMatches)
}
