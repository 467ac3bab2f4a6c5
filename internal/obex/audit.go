// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package obex

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/pdiddy/p2kb/pkg/types"
)

var (
	pageIDRe     = regexp.MustCompile(`/obex/[^/]*?(\d{4,5})`)
	downloadIDRe = regexp.MustCompile(`obuid=OB(\d{4,5})`)
	objectIDRe   = regexp.MustCompile(`^\d+$`)
)

// SuggestedID extracts an object ID from the record's URLs. The OBEX page
// URL is preferred over the download link.
func SuggestedID(urls types.ObexURLs) string {
	if m := pageIDRe.FindStringSubmatch(urls.ObexPage); m != nil {
		return m[1]
	}
	if m := downloadIDRe.FindStringSubmatch(urls.DownloadDirect); m != nil {
		return m[1]
	}
	return ""
}

// IDMismatch is a record whose file name and object_id disagree.
type IDMismatch struct {
	File      string
	ObjectID  string
	Title     string
	Suggested string
}

// IDAudit is the result of AuditObjectIDs.
type IDAudit struct {
	Total      int
	Mismatches []IDMismatch
	Unreadable []string
}

// Integrity is the percentage of records whose file name matches their ID.
func (a IDAudit) Integrity() float64 {
	if a.Total == 0 {
		return 100
	}
	return float64(a.Total-len(a.Mismatches)-len(a.Unreadable)) / float64(a.Total) * 100
}

// HasFailures reports whether any record failed the audit.
func (a IDAudit) HasFailures() bool { return len(a.Mismatches) > 0 || len(a.Unreadable) > 0 }

// AuditObjectIDs checks that each record's file stem equals its object_id
// and suggests the ID embedded in its URLs when it does not.
func AuditObjectIDs(dir string) (IDAudit, error) {
	paths, err := objectFiles(dir)
	if err != nil {
		return IDAudit{}, err
	}
	var a IDAudit
	for _, p := range paths {
		a.Total++
		r, err := readRecord(p)
		if err != nil {
			a.Unreadable = append(a.Unreadable, filepath.Base(p))
			continue
		}
		meta := r.Obj.ObjectMetadata
		if r.Stem() == meta.ObjectID {
			continue
		}
		a.Mismatches = append(a.Mismatches, IDMismatch{
			File:      filepath.Base(p),
			ObjectID:  meta.ObjectID,
			Title:     meta.Title,
			Suggested: SuggestedID(meta.URLs),
		})
	}
	return a, nil
}

// WriteText prints the audit.
func (a IDAudit) WriteText(w io.Writer) {
	for _, m := range a.Mismatches {
		fmt.Fprintf(w, "mismatch %s: object_id %q", m.File, m.ObjectID)
		if m.Suggested != "" {
			fmt.Fprintf(w, ", URLs suggest %s", m.Suggested)
		}
		fmt.Fprintf(w, " (%s)\n", m.Title)
	}
	for _, f := range a.Unreadable {
		fmt.Fprintf(w, "failed  %s\n", f)
	}
	fmt.Fprintf(w, "\nTotal objects: %d\n", a.Total)
	fmt.Fprintf(w, "Mismatches: %d\n", len(a.Mismatches))
	fmt.Fprintf(w, "Integrity: %.1f%%\n", a.Integrity())
}

// ValidateObject checks the required fields of an object record.
func ValidateObject(o types.ObexObject) error {
	m := o.ObjectMetadata
	return validation.ValidateStruct(&m,
		validation.Field(&m.ObjectID, validation.Required, validation.Match(objectIDRe).Error("must contain digits only")),
		validation.Field(&m.Title, validation.Required),
	)
}

// Invalid is a record that failed validation.
type Invalid struct {
	File string
	Err  error
}

// Validate checks every record in dir and returns those that fail.
func Validate(dir string) ([]Invalid, int, error) {
	paths, err := objectFiles(dir)
	if err != nil {
		return nil, 0, err
	}
	var bad []Invalid
	for _, p := range paths {
		r, err := readRecord(p)
		if err == nil {
			err = ValidateObject(r.Obj)
		}
		if err != nil {
			bad = append(bad, Invalid{File: filepath.Base(p), Err: err})
		}
	}
	return bad, len(paths), nil
}
