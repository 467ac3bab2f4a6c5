// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package layers

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/p2kb/internal/kbfile"
	"github.com/pdiddy/p2kb/pkg/types"
)

func ip(n int) *int { return &n }

func fixedClock(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })
}

func writeRecord(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseTiming(t *testing.T) {
	tests := []struct {
		raw  string
		want types.Timing
	}{
		{"2", types.Timing{Raw: "2", BaseCycles: ip(2), Type: types.TimingFixed}},
		{"13...20", types.Timing{Raw: "13...20", MinCycles: ip(13), MaxCycles: ip(20), Type: types.TimingVariable,
			Notes: []string{"Hub window alignment affects timing"}}},
		{"2 or 4", types.Timing{Raw: "2 or 4", MinCycles: ip(2), MaxCycles: ip(4), Type: types.TimingConditional}},
		{"4 or 13...20 branch", types.Timing{Raw: "4 or 13...20 branch", MinCycles: ip(13), MaxCycles: ip(20), Type: types.TimingVariable,
			Notes: []string{"Hub window alignment affects timing"}}},
		{"2 / 4 or 6", types.Timing{Raw: "2 / 4 or 6", MinCycles: ip(2), MaxCycles: ip(6), Type: types.TimingConditional,
			Notes: []string{"Branch taken/not taken affects timing"}}},
		{"4 / 13...20 x", types.Timing{Raw: "4 / 13...20 x", MinCycles: ip(13), MaxCycles: ip(20), Type: types.TimingVariable,
			Notes: []string{"Hub window alignment affects timing"}}},
		{"4 / hub", types.Timing{Raw: "4 / hub", CogLUTTiming: "4", HubTiming: "hub", Type: types.TimingModeDependent}},
		{"2 + wait", types.Timing{Raw: "2 + wait", Type: types.TimingVariable,
			Notes: []string{"Additional cycles based on wait condition"}}},
		{"varies", types.Timing{Raw: "varies", Type: types.TimingSpecial}},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, ParseTiming(tc.raw)); diff != "" {
				t.Errorf("ParseTiming(%q) mismatch (-want +got):\n%s", tc.raw, diff)
			}
		})
	}
}

const datasheet = `# Instructions

## Math and Logic Instructions

All Math and Logic instructions execute in 2 clock cycles.

| Instruction | Description |
|---|---|
| **ADD** | Add S into D |
| **SUB** | Subtract S from D |

## Branch Instructions

| **JMP** | Jump |

| **CALL** | Call subroutine | 4 / 13...20 |
| **RET** | Return | Clock |

## Hub Instructions

| Instruction | Description | Clock Cycles |
|---|---|---|
| **RDLONG** | Read long | 9...16 |
| **SUB** | Subtract override | 3 |
`

func TestParseDatasheet(t *testing.T) {
	got := ParseDatasheet(datasheet)

	want := map[string]TimingSource{
		"ADD":    {Raw: "2", Source: "group_math_and_logic"},
		"SUB":    {Raw: "3", Source: SourceExplicit},
		"CALL":   {Raw: "4 / 13...20", Source: SourceExplicit},
		"RDLONG": {Raw: "9...16", Source: SourceExplicit},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseDatasheet mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got["ADD"].FromGroup())
}

func TestApplyTiming(t *testing.T) {
	fixedClock(t)
	dir := t.TempDir()
	writeRecord(t, dir, "pasm2_add.yaml", "metadata:\n  id: pasm2_add\nlayer1_csv:\n  mnemonic: ADD\n")
	writeRecord(t, dir, "pasm2_sub.yaml", "layer1_csv:\n  mnemonic: SUB\nlayer2_datasheet:\n  source: manual\nlayer3_silicon_doc:\n  note: keep\n")
	writeRecord(t, dir, "pasm2_mov.yaml", "layer1_csv:\n  mnemonic: MOV\nlayer2_datasheet:\n  timing:\n    raw: \"2\"\n")

	timings := map[string]TimingSource{
		"ADD":  {Raw: "2", Source: "group_math_and_logic"},
		"SUB":  {Raw: "2 or 4", Source: SourceExplicit},
		"MOV":  {Raw: "2", Source: SourceExplicit},
		"NOPE": {Raw: "2", Source: SourceExplicit},
	}

	var out bytes.Buffer
	s, err := ApplyTiming(dir, timings, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, ApplySummary{Updated: 2, Present: 1, NotFound: 1}, s)
	assert.Equal(t, 4, s.Total())

	t.Run("new layer2 block", func(t *testing.T) {
		doc, err := kbfile.ReadDocument(filepath.Join(dir, "pasm2_add.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "2026-04-02T09:30:00Z", doc.String(types.LayerDatasheet, "extraction_date"))
		assert.Equal(t, "P2 Datasheet v35", doc.String(types.LayerDatasheet, "source"))
		assert.Equal(t, "fixed", doc.String(types.LayerDatasheet, "timing", "type"))
		assert.Equal(t, "2", doc.String(types.LayerDatasheet, "timing", "base_cycles"))
		assert.Equal(t, "From group declaration - all math and logic instructions",
			doc.String(types.LayerDatasheet, "timing", "source_note"))
		assert.Equal(t, "pasm2_add", doc.String("metadata", "id"))
	})

	t.Run("existing layer2 keeps its keys and order", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, "pasm2_sub.yaml"))
		require.NoError(t, err)
		var m yaml.Node
		require.NoError(t, yaml.Unmarshal(data, &m))
		top := m.Content[0]
		var keys []string
		for i := 0; i < len(top.Content); i += 2 {
			keys = append(keys, top.Content[i].Value)
		}
		assert.Equal(t, []string{"layer1_csv", "layer2_datasheet", "layer3_silicon_doc"}, keys)

		doc, err := kbfile.ParseDocument(data)
		require.NoError(t, err)
		assert.Equal(t, "manual", doc.String(types.LayerDatasheet, "source"))
		assert.Equal(t, "conditional", doc.String(types.LayerDatasheet, "timing", "type"))
		assert.Equal(t, "keep", doc.String(types.LayerSiliconDoc, "note"))
	})

	t.Run("present timing untouched", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, "pasm2_mov.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "layer1_csv:\n  mnemonic: MOV\nlayer2_datasheet:\n  timing:\n    raw: \"2\"\n", string(data))
	})
}

const clarifications = `---
source: Chip Gracey Clarifications
---
# Instruction clarifications

### 1. INCMOD - Increment with Modulo
**Syntax**: ` + "`INCMOD D,{#}S {WC/WZ/WCZ}`" + `
**Function**: Increments D.
If D equals S, D becomes zero.
- C is set on wrap
**Use Cases**:
- Circular buffers
- Ring counters
---

### 2. DECMOD - Decrement with Modulo
**Syntax**: ` + "`DECMOD D,{#}S`" + `
**Function**: Decrements D.
**Notes**: ignored line
not part of function

### 3. not a header line
`

func TestParseClarifications(t *testing.T) {
	items, err := ParseClarifications("/src/chip-instruction-clarifications-2025-08-18.md", []byte(clarifications))
	require.NoError(t, err)
	require.Len(t, items, 2)

	inc := items[0]
	assert.Equal(t, "INCMOD", inc.Mnemonic)
	assert.Equal(t, "Increment with Modulo", inc.Title)
	assert.Equal(t, "INCMOD D,{#}S {WC/WZ/WCZ}", inc.Syntax)
	assert.Equal(t, "Increments D. If D equals S, D becomes zero.\n- C is set on wrap", inc.Function)
	assert.Equal(t, "- Circular buffers\n- Ring counters", inc.UseCases)
	assert.Equal(t, "2025-08-18", inc.Date)
	assert.Equal(t, "Chip Gracey Clarifications", inc.Source)

	dec := items[1]
	assert.Equal(t, "Decrements D.", dec.Function)
	assert.Empty(t, dec.UseCases)
}

func TestParseClarificationsFrontMatterDate(t *testing.T) {
	doc := "---\ndate: \"2025-09-02\"\n---\n### 1. ADD - Add\n**Syntax**: `ADD D,S`\n"
	items, err := ParseClarifications("notes.md", []byte(doc))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2025-09-02", items[0].Date)
	assert.Equal(t, clarificationSource, items[0].Source)
}

func TestParseClarificationFilesFirstWins(t *testing.T) {
	dir := t.TempDir()
	a := writeRecord(t, dir, "chip-instruction-clarifications-2025-08-18.md", "### 1. ADD - First\n")
	b := writeRecord(t, dir, "chip-instruction-clarifications-2025-09-02.md", "### 1. ADD - Second\n### 2. SUB - Sub\n")

	items := ParseClarificationFiles([]string{a, filepath.Join(dir, "missing.md"), b}, &bytes.Buffer{})
	require.Len(t, items, 2)
	assert.Equal(t, "First", items[0].Title)
	assert.Equal(t, "SUB", items[1].Mnemonic)
}

func TestParseClarificationFilesSkipsBadFrontMatter(t *testing.T) {
	dir := t.TempDir()
	bad := writeRecord(t, dir, "chip-instruction-clarifications-2025-08-18.md", "---\ndate: [\n---\n### 1. ADD - Add\n")
	good := writeRecord(t, dir, "chip-instruction-clarifications-2025-09-02.md", "### 1. SUB - Subtract\n")

	var out bytes.Buffer
	items := ParseClarificationFiles([]string{bad, good}, &out)
	require.Len(t, items, 1)
	assert.Equal(t, "SUB", items[0].Mnemonic)
	assert.Contains(t, out.String(), "skipped "+bad)
}

func TestApplyClarifications(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "pasm2_incmod.yaml", "layer1_csv:\n  mnemonic: INCMOD\n")
	writeRecord(t, dir, "pasm2_decmod.yaml", "layer1_csv:\n  mnemonic: DECMOD\nlayer4_chip:\n  title: old\n")

	items := []ClarificationItem{
		{Mnemonic: "INCMOD", Clarification: types.Clarification{Source: clarificationSource, Title: "Increment with Modulo", Function: "says \"hi\"", Date: "2025-08-18"}},
		{Mnemonic: "DECMOD", Clarification: types.Clarification{Title: "Decrement"}},
		{Mnemonic: "XYZ"},
	}

	var out bytes.Buffer
	s, err := ApplyClarifications(dir, items, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, ApplySummary{Updated: 1, Present: 1, NotFound: 1}, s)

	doc, err := kbfile.ReadDocument(filepath.Join(dir, "pasm2_incmod.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "says \"hi\"", doc.String(types.LayerClarifications, "function"))
	assert.Equal(t, "2025-08-18", doc.String(types.LayerClarifications, "date"))
	assert.True(t, strings.Contains(out.String(), "no file for XYZ"))
}

func TestAudit(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "pasm2_add.yaml", "layer1_csv:\n  mnemonic: ADD\n")
	writeRecord(t, dir, "pasm2_sub.yaml", "layer1_csv:\n  mnemonic: SUB\nlayer2_datasheet:\n  source: x\n")
	writeRecord(t, dir, "pasm2_mov.yaml", "layer1_csv:\n  mnemonic: MOV\nlayer2_datasheet:\n  source: x\nlayer3_silicon_doc:\n  a: 1\nlayer4_chip_clarifications:\n  title: t\n")
	writeRecord(t, dir, "pasm2_jmp_1a2b3c4d.yaml", "layer2_datasheet:\n  source: x\n")
	writeRecord(t, dir, "pasm2_nop.yaml", "")
	writeRecord(t, dir, "pasm2_ret.yaml", "layer1_csv:\n  mnemonic: RET\nlayer2_datasheet: {}\nlayer3_silicon_doc:\n  a: 1\n")

	r, err := Audit(dir, 0)
	require.NoError(t, err)

	assert.Equal(t, 6, r.Total)
	assert.Equal(t, DefaultExpectedInstructions, r.Expected)
	assert.Equal(t, 1, r.HashSuffixed)
	assert.Equal(t, [4]int{4, 3, 2, 1}, r.Coverage)
	assert.Equal(t, map[string]int{
		CategoryEmpty:         1,
		CategoryMissingLayer1: 1,
		CategoryLayer1Only:    1,
		CategoryLayer12:       1,
		CategoryLayer1234:     1,
		CategoryPartial:       1,
	}, r.Categories)

	var out bytes.Buffer
	r.WriteText(&out)
	assert.Contains(t, out.String(), "Coverage: 6/491 = 1.2%")
}
