// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/p2kb/internal/kbfile"
)

//go:embed schema/instruction.schema.json
var instructionSchema []byte

const instructionSchemaURL = "instruction.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func recordSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(instructionSchemaURL, bytes.NewReader(instructionSchema)); err != nil {
			compileErr = fmt.Errorf("loading record schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(instructionSchemaURL)
	})
	return compiled, compileErr
}

// Issue is one schema violation.
type Issue struct {
	Location string
	Message  string
}

// FileIssues groups the violations found in one file.
type FileIssues struct {
	File   string
	Issues []Issue
}

// SchemaReport is the result of Schema.
type SchemaReport struct {
	Checked int
	Invalid []FileIssues
}

// HasFailures reports whether any file failed validation.
func (r SchemaReport) HasFailures() bool { return len(r.Invalid) > 0 }

// Schema validates every instruction record directly under dir against the
// embedded record schema.
func Schema(dir string) (SchemaReport, error) {
	sch, err := recordSchema()
	if err != nil {
		return SchemaReport{}, err
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return SchemaReport{}, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(paths)

	var rep SchemaReport
	for _, p := range paths {
		name := filepath.Base(p)
		if strings.HasSuffix(name, "_manifest.yaml") {
			continue
		}
		rep.Checked++
		issues, err := validateFile(sch, p)
		if err != nil {
			issues = []Issue{{Location: "/", Message: err.Error()}}
		}
		if len(issues) > 0 {
			rep.Invalid = append(rep.Invalid, FileIssues{File: name, Issues: issues})
		}
	}
	return rep, nil
}

func validateFile(sch *jsonschema.Schema, path string) ([]Issue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := yamlToJSON(data)
	if err != nil {
		return nil, err
	}
	err = sch.Validate(v)
	if err == nil {
		return nil, nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, err
	}
	return collectIssues(ve), nil
}

// yamlToJSON converts a YAML document into the plain JSON value the
// validator expects.
func yamlToJSON(data []byte) (any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	encoded, err := json.Marshal(kbfile.Plain(raw))
	if err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}
	return v, nil
}

func collectIssues(err *jsonschema.ValidationError) []Issue {
	var issues []Issue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if len(node.Causes) == 0 {
			loc := strings.TrimSpace(node.InstanceLocation)
			if loc == "" {
				loc = "/"
			}
			issues = append(issues, Issue{Location: loc, Message: strings.TrimSpace(node.Message)})
			return
		}
		for _, c := range node.Causes {
			walk(c)
		}
	}
	walk(err)
	return issues
}

// WriteText prints the report.
func (r SchemaReport) WriteText(w io.Writer) {
	for _, f := range r.Invalid {
		fmt.Fprintf(w, "invalid %s\n", f.File)
		for _, i := range f.Issues {
			fmt.Fprintf(w, "  %s: %s\n", i.Location, i.Message)
		}
	}
	fmt.Fprintf(w, "\nChecked %d records, %d invalid\n", r.Checked, len(r.Invalid))
}
