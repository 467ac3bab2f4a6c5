// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package spin2

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/p2kb/pkg/types"
)

const reference = `# Spin2 Methods

WAITMS(milliseconds)
' Wait a number of milliseconds

### Pin Methods

PINWRITE(PinField, Data)
' Drive pins to data
PINREAD(PinField) : PinStates

` + "```" + `
GETCT() : Count
` + "```" + `
Some prose (with parentheses) here.
`

func TestExtractMethods(t *testing.T) {
	got := ExtractMethods(reference)

	want := []types.Spin2Method{
		{Name: "WAITMS", Type: "method", Category: "General", Signature: "WAITMS(milliseconds)",
			Description: "Wait a number of milliseconds", Source: methodSource},
		{Name: "PINWRITE", Type: "method", Category: "Pin Methods", Signature: "PINWRITE(PinField, Data)",
			Description: "Drive pins to data", Source: methodSource},
		{Name: "PINREAD", Type: "method", Category: "Pin Methods", Signature: "PINREAD(PinField) : PinStates",
			Source: methodSource},
		{Name: "GETCT", Type: "method", Category: "Pin Methods", Signature: "GETCT() : Count",
			Source: methodSource},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExtractMethods mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		method  types.Spin2Method
		wantErr bool
	}{
		{"valid", types.Spin2Method{Name: "ABS", Type: "method", Signature: "ABS(x)"}, false},
		{"missing signature", types.Spin2Method{Name: "ABS", Type: "method"}, true},
		{"bad name", types.Spin2Method{Name: "A B", Type: "method", Signature: "x"}, true},
		{"wrong type", types.Spin2Method{Name: "ABS", Type: "operator", Signature: "ABS(x)"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.method)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWriteMethods(t *testing.T) {
	dir := t.TempDir()
	methods := ExtractMethods(reference)
	methods = append(methods, types.Spin2Method{Name: "BROKEN", Type: "method"})

	var out bytes.Buffer
	s, err := WriteMethods(methods, dir, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, WriteSummary{Created: 4, Invalid: 1}, s)
	assert.True(t, s.HasFailures())

	data, err := os.ReadFile(filepath.Join(dir, "spin2_pinwrite.yaml"))
	require.NoError(t, err)
	var m types.Spin2Method
	require.NoError(t, yaml.Unmarshal(data, &m))
	assert.Equal(t, "PINWRITE(PinField, Data)", m.Signature)
	assert.Equal(t, "Pin Methods", m.Category)
	assert.NoFileExists(t, filepath.Join(dir, "spin2_broken.yaml"))
}
