// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package instructions

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/p2kb/pkg/types"
)

var testHeader = []string{
	colSyntax, colGroup, colEncoding, colAlias, colDescription, colShield,
	colCogExec8, colHubExec8, colCogExec16, colHubExec16,
}

func writeCSV(t *testing.T, dir string, rows [][]string) string {
	t.Helper()
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	require.NoError(t, cw.Write(testHeader))
	require.NoError(t, cw.WriteAll(rows))
	path := filepath.Join(dir, "instructions.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func fixedClock(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })
}

func TestMnemonic(t *testing.T) {
	tests := []struct {
		syntax string
		want   string
	}{
		{"ADD     D,{#}S   {WC/WZ/WCZ}", "ADD"},
		{"  jmp   #{\\}A", "JMP"},
		{"_RET_ NOP", "_RET_"},
		{"GETBYTE D,{#}S,#N", "GETBYTE"},
		{"{#}", ""},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.syntax, func(t *testing.T) {
			assert.Equal(t, tc.want, Mnemonic(tc.syntax))
		})
	}
}

func TestRecordID(t *testing.T) {
	id := RecordID("ADD", "ADD D,{#}S")
	assert.Regexp(t, `^pasm2_add_[0-9a-f]{8}$`, id)
	assert.Equal(t, id, RecordID("ADD", "ADD D,{#}S"))
	assert.NotEqual(t, id, RecordID("ADD", "ADD D,#S"))
}

func TestExtract(t *testing.T) {
	fixedClock(t)
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, [][]string{
		{"ADD D,{#}S {WC/WZ/WCZ}", "Math and Logic", "EEEE 0001000 CZI DDDDDDDDD SSSSSSSSS", "-", "Add S into D.", "", "2", "2", "2", "2"},
		{"---", "", "", "", "", "", "", "", "", ""},
		{"", "", "", "", "", "", "", "", "", ""},
		{"MOV D,{#}S {WC/WZ/WCZ}", "Math and Logic", "", "", "Move S into D.", "Yes", "2", "2 *", "", "n/a"},
		{"{#}", "", "", "", "", "", "", "", "", ""},
		{"ADD D,#S", "Math and Logic", "", "", "", "", "2", "", "", ""},
	})
	outDir := filepath.Join(dir, "kb")

	var out bytes.Buffer
	res, err := Extract(csvPath, outDir, nil, &out)
	require.NoError(t, err)

	require.Len(t, res.Records, 3)
	assert.False(t, res.HasFailures())
	assert.Equal(t, "complete", res.Report.Status)

	first := res.Records[0]
	assert.Equal(t, 2, first.Metadata.Source.Row)
	assert.Equal(t, "2026-03-01T12:00:00Z", first.Metadata.ExtractionDate)

	t.Run("record file", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(outDir, "instructions", "pasm2", first.Metadata.ID+".yaml"))
		require.NoError(t, err)
		var rec types.InstructionRecord
		require.NoError(t, yaml.Unmarshal(data, &rec))
		assert.Equal(t, "ADD", rec.Layer1CSV.Mnemonic)
		assert.Nil(t, rec.Layer1CSV.Alias)
		require.NotNil(t, rec.Layer1CSV.Group)
		assert.Equal(t, "Math and Logic", *rec.Layer1CSV.Group)
		require.NotNil(t, rec.Layer1CSV.Timing.CogExec8Cogs)
		assert.Equal(t, 2, *rec.Layer1CSV.Timing.CogExec8Cogs)
		assert.False(t, rec.Layer1CSV.InterruptShield)
	})

	t.Run("timing cells", func(t *testing.T) {
		mov := res.Records[1].Layer1CSV
		assert.True(t, mov.InterruptShield)
		require.NotNil(t, mov.Timing.HubExec8Cogs)
		assert.Equal(t, 2, *mov.Timing.HubExec8Cogs)
		assert.Nil(t, mov.Timing.CogExec16Cogs)
		assert.Nil(t, mov.Timing.HubExec16Cogs)
		assert.Nil(t, mov.Encoding)
	})

	t.Run("side files", func(t *testing.T) {
		assert.FileExists(t, filepath.Join(outDir, mappingFile))
		assert.FileExists(t, filepath.Join(outDir, auditFile))
	})

	t.Run("unparseable row is logged", func(t *testing.T) {
		var found bool
		for _, e := range res.Log {
			if e.Issue != "" {
				found = true
				assert.Equal(t, 6, e.Row)
			}
		}
		assert.True(t, found)
	})

	t.Run("validation checks", func(t *testing.T) {
		require.Len(t, res.Report.Checks, 2)
		dup := res.Report.Checks[0]
		assert.Equal(t, "duplicate_mnemonic", dup.Type)
		assert.Equal(t, "ADD", dup.Mnemonic)
		assert.Equal(t, 2, dup.Variants)

		missing := res.Report.Checks[1]
		assert.Equal(t, "missing_core_instructions", missing.Type)
		assert.Equal(t, []string{"SUB", "JMP", "CALL", "RET", "AND", "OR", "XOR"}, missing.Missing)
	})

	assert.Contains(t, out.String(), "extracted 3 instructions")
}

func TestExtractMissingCSV(t *testing.T) {
	_, err := Extract(filepath.Join(t.TempDir(), "nope.csv"), t.TempDir(), nil, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestValidateRecord(t *testing.T) {
	valid := types.InstructionRecord{
		Metadata: types.RecordMetadata{
			ID:      RecordID("ADD", "ADD D,S"),
			Version: "1.0",
			Source:  types.RecordSource{Document: "P2 Instructions v35", Type: "csv", Row: 2},
		},
		Layer1CSV: types.Layer1CSV{Mnemonic: "ADD", Syntax: "ADD D,S"},
	}
	assert.NoError(t, ValidateRecord(valid))

	bad := valid
	bad.Layer1CSV.Mnemonic = "add"
	bad.Metadata.ID = ""
	err := ValidateRecord(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mnemonic")
	assert.Contains(t, err.Error(), "id")
}

func TestValidateAgainstCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, [][]string{
		{"ADD D,{#}S", "", "", "", "", "", "", "", "", ""},
		{"MOV D,{#}S", "", "", "", "", "", "", "", "", ""},
		{"JMP #A", "", "", "", "", "", "", "", "", ""},
		{"IF_C ADD D,S", "", "", "", "", "", "", "", "", ""},
		{"C", "", "", "", "", "", "", "", "", ""},
	})
	records := filepath.Join(dir, "pasm2")
	require.NoError(t, os.MkdirAll(records, 0o755))
	for _, name := range []string{"pasm2_add.yaml", "pasm2_if_c_add.yaml", "pasm2_nz.yaml", "pasm2_foo.yaml", "notes.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(records, name), []byte("x: 1\n"), 0o644))
	}

	var out bytes.Buffer
	check, err := ValidateAgainstCSV(csvPath, records, &out)
	require.NoError(t, err)

	assert.Equal(t, []string{"add", "jmp", "mov"}, check.Real)
	assert.Equal(t, []string{"if_c_add"}, check.Conditionals)
	assert.Equal(t, []string{"nz"}, check.Pseudo)
	assert.Equal(t, []string{"foo"}, check.Unknown)
	assert.Equal(t, []string{"jmp", "mov"}, check.Missing)
	assert.True(t, check.HasFailures())

	script, err := os.ReadFile(filepath.Join(records, RemovalScript))
	require.NoError(t, err)
	assert.Contains(t, string(script), "rm -f pasm2_foo.yaml\n")
	assert.Contains(t, string(script), "rm -f pasm2_if_c_add.yaml\n")
	assert.Contains(t, string(script), "Remaining valid instruction files: 3")

	info, err := os.Stat(filepath.Join(records, RemovalScript))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100, "script should be executable")
	assert.Contains(t, out.String(), "MOV")
}

func TestValidateAgainstCSVClean(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, [][]string{{"NOP", "", "", "", "", "", "", "", "", ""}})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pasm2_nop.yaml"), []byte("x: 1\n"), 0o644))

	check, err := ValidateAgainstCSV(csvPath, dir, &bytes.Buffer{})
	require.NoError(t, err)
	assert.False(t, check.HasFailures())
	assert.NoFileExists(t, filepath.Join(dir, RemovalScript))
}
