// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package spin2 extracts built-in Spin2 method records from the language
// reference.
package spin2

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/pdiddy/p2kb/internal/kbfile"
	"github.com/pdiddy/p2kb/pkg/types"
)

const (
	methodType     = "method"
	methodSource   = "Spin2 Documentation v51"
	defaultSection = "General"
)

var (
	signaturePattern = regexp.MustCompile(`^(\w+)(\([^)]*\))(.*)$`)
	namePattern      = regexp.MustCompile(`^\w+$`)
)

// ExtractMethods scans the reference line by line. A "### " heading sets
// the category for the methods below it. Any other line shaped like
// NAME(params) rest is a method signature, and an immediately following
// line that starts with ' is its description.
func ExtractMethods(markdown string) []types.Spin2Method {
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")

	var (
		methods  []types.Spin2Method
		category string
	)
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(line, "### ") {
			category = strings.TrimSpace(strings.TrimPrefix(line, "###"))
			continue
		}
		if trimmed == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "```") {
			continue
		}

		m := signaturePattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}

		var desc string
		if i+1 < len(lines) {
			if next := strings.TrimSpace(lines[i+1]); strings.HasPrefix(next, "'") {
				desc = strings.TrimSpace(strings.TrimLeft(next, "'"))
				i++
			}
		}

		cat := category
		if cat == "" {
			cat = defaultSection
		}
		methods = append(methods, types.Spin2Method{
			Name:        m[1],
			Type:        methodType,
			Category:    cat,
			Signature:   trimmed,
			Description: desc,
			Source:      methodSource,
		})
	}
	return methods
}

// Validate checks that a method record has a usable name and signature.
func Validate(m types.Spin2Method) error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Match(namePattern)),
		validation.Field(&m.Signature, validation.Required),
		validation.Field(&m.Type, validation.In(methodType)),
	)
}

// FileName is the record file name for a method.
func FileName(name string) string {
	return "spin2_" + strings.ToLower(name) + ".yaml"
}

// WriteSummary counts the outcome of WriteMethods.
type WriteSummary struct {
	Created int
	Invalid int
	Failed  int
}

// HasFailures reports whether any method was rejected or not written.
func (s WriteSummary) HasFailures() bool {
	return s.Invalid+s.Failed > 0
}

// WriteMethods writes each valid method to dir/spin2_<name>.yaml.
func WriteMethods(methods []types.Spin2Method, dir string, snap kbfile.Snapshotter, w io.Writer) (WriteSummary, error) {
	var s WriteSummary
	for _, m := range methods {
		if err := Validate(m); err != nil {
			fmt.Fprintf(w, "skipped %s: %v\n", m.Name, err)
			s.Invalid++
			continue
		}
		if err := kbfile.WriteYAML(filepath.Join(dir, FileName(m.Name)), m, snap, "spin2 extract"); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", m.Name, err)
			s.Failed++
			continue
		}
		fmt.Fprintf(w, "created %s\n", m.Name)
		s.Created++
	}
	fmt.Fprintf(w, "created %d method files\n", s.Created)
	return s, nil
}
