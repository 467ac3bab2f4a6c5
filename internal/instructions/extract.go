// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package instructions turns the PASM2 instruction spreadsheet into one
// Layer 1 YAML record per instruction variant and cross-checks existing
// record files against the spreadsheet.
package instructions

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/p2kb/internal/kbfile"
	kblog "github.com/pdiddy/p2kb/internal/log"
	"github.com/pdiddy/p2kb/pkg/types"
)

const (
	sourceDocument = "P2 Instructions v35"
	recordVersion  = "1.0"

	mappingFile = "csv-to-yaml-mapping.yaml"
	auditFile   = "extraction-audit.yaml"
)

// coreMnemonics must all appear in a complete extraction.
var coreMnemonics = []string{"ADD", "SUB", "MOV", "JMP", "CALL", "RET", "AND", "OR", "XOR"}

var (
	braceGroup = regexp.MustCompile(`\{[^}]+\}`)
	nonWord    = regexp.MustCompile(`\W`)
	firstInt   = regexp.MustCompile(`\d+`)
)

// now is replaced in tests.
var now = time.Now

// MappingEntry ties a record ID back to its spreadsheet row.
type MappingEntry struct {
	CSVRow   int    `yaml:"csv_row"`
	Mnemonic string `yaml:"mnemonic"`
	Syntax   string `yaml:"syntax"`
}

// LogEntry is one line of the extraction audit log.
type LogEntry struct {
	Row         int    `yaml:"row,omitempty"`
	Issue       string `yaml:"issue,omitempty"`
	Error       string `yaml:"error,omitempty"`
	Severity    string `yaml:"severity,omitempty"`
	Syntax      string `yaml:"syntax,omitempty"`
	Action      string `yaml:"action,omitempty"`
	File        string `yaml:"file,omitempty"`
	Instruction string `yaml:"instruction,omitempty"`
	Timestamp   string `yaml:"timestamp,omitempty"`
}

// Check is one finding of the post-extraction validation.
type Check struct {
	Type     string   `yaml:"type"`
	Mnemonic string   `yaml:"mnemonic,omitempty"`
	Variants int      `yaml:"variants,omitempty"`
	IDs      []string `yaml:"ids,omitempty"`
	Missing  []string `yaml:"missing,omitempty"`
	Severity string   `yaml:"severity,omitempty"`
}

// ValidationReport summarises an extraction run.
type ValidationReport struct {
	Timestamp      string  `yaml:"timestamp"`
	TotalExtracted int     `yaml:"total_extracted"`
	TotalErrors    int     `yaml:"total_errors"`
	Checks         []Check `yaml:"checks"`
	Status         string  `yaml:"status"`
}

// ExtractResult holds what one extraction run produced.
type ExtractResult struct {
	Records []types.InstructionRecord
	Log     []LogEntry
	Errors  int
	Report  ValidationReport
}

// HasFailures reports whether any row or write failed.
func (r ExtractResult) HasFailures() bool {
	return r.Errors > 0
}

// Mnemonic derives the instruction mnemonic from an assembly syntax cell:
// condition and effect groups in braces are dropped, and the first word is
// uppercased with punctuation removed.
func Mnemonic(syntax string) string {
	cleaned := braceGroup.ReplaceAllString(strings.TrimSpace(syntax), "")
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return ""
	}
	return nonWord.ReplaceAllString(strings.ToUpper(fields[0]), "")
}

// RecordID returns pasm2_<mnemonic>_<first 8 hex of md5(syntax)>.
func RecordID(mnemonic, syntax string) string {
	sum := md5.Sum([]byte(syntax))
	return fmt.Sprintf("pasm2_%s_%s", strings.ToLower(mnemonic), hex.EncodeToString(sum[:])[:8])
}

func parseCycles(cell string) *int {
	m := firstInt.FindString(cell)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isInstructionRow(r row) bool {
	syntax := r.Get(colSyntax)
	return syntax != "" && !strings.Contains(syntax, "Assembly Syntax") && !strings.Contains(syntax, "---")
}

// buildRecord converts one spreadsheet row. It returns false when no
// mnemonic can be derived.
func buildRecord(r row, stamp string) (types.InstructionRecord, bool) {
	syntax := r.Get(colSyntax)
	mnemonic := Mnemonic(syntax)
	if mnemonic == "" {
		return types.InstructionRecord{}, false
	}

	var alias *string
	if a := r.Get(colAlias); a != "-" {
		alias = optional(a)
	}

	return types.InstructionRecord{
		Metadata: types.RecordMetadata{
			ID:             RecordID(mnemonic, syntax),
			Version:        recordVersion,
			ExtractionDate: stamp,
			Source: types.RecordSource{
				Document: sourceDocument,
				Type:     "csv",
				Row:      r.Line,
			},
		},
		Layer1CSV: types.Layer1CSV{
			Mnemonic:        mnemonic,
			Syntax:          syntax,
			Group:           optional(r.Get(colGroup)),
			Encoding:        optional(r.Get(colEncoding)),
			Alias:           alias,
			Description:     optional(r.Get(colDescription)),
			InterruptShield: r.Get(colShield) == "Yes",
			Timing: types.CSVTiming{
				CogExec8Cogs:  parseCycles(r.Get(colCogExec8)),
				HubExec8Cogs:  parseCycles(r.Get(colHubExec8)),
				CogExec16Cogs: parseCycles(r.Get(colCogExec16)),
				HubExec16Cogs: parseCycles(r.Get(colHubExec16)),
			},
		},
	}, true
}

// Extract reads the instruction spreadsheet at csvPath and writes one
// record per row to outDir/instructions/pasm2/<id>.yaml, followed by the
// row mapping and the audit log in outDir. A row that cannot be converted
// is logged and skipped. A failure to read the spreadsheet at all is
// returned as an error.
func Extract(csvPath, outDir string, snap kbfile.Snapshotter, w io.Writer) (ExtractResult, error) {
	lg := kblog.WithComponent("instructions")

	rows, err := readRows(csvPath)
	if err != nil {
		return ExtractResult{}, err
	}

	recordsDir := filepath.Join(outDir, "instructions", "pasm2")
	if err := os.MkdirAll(recordsDir, 0o755); err != nil {
		return ExtractResult{}, fmt.Errorf("creating output directory: %w", err)
	}

	var res ExtractResult
	mapping := map[string]MappingEntry{}
	stamp := now().Format(time.RFC3339)

	for _, r := range rows {
		if !isInstructionRow(r) {
			continue
		}
		rec, ok := buildRecord(r, stamp)
		if !ok {
			lg.Warn().Int("row", r.Line).Msg("no mnemonic in syntax cell")
			res.Log = append(res.Log, LogEntry{Row: r.Line, Issue: "Could not extract mnemonic", Syntax: r.Get(colSyntax)})
			continue
		}
		res.Records = append(res.Records, rec)
		mapping[rec.Metadata.ID] = MappingEntry{
			CSVRow:   r.Line,
			Mnemonic: rec.Layer1CSV.Mnemonic,
			Syntax:   rec.Layer1CSV.Syntax,
		}
	}

	for _, rec := range res.Records {
		path := filepath.Join(recordsDir, rec.Metadata.ID+".yaml")
		if err := ValidateRecord(rec); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rec.Metadata.ID, err)
			res.Errors++
			res.Log = append(res.Log, LogEntry{Row: rec.Metadata.Source.Row, Error: err.Error(), Severity: "error"})
			continue
		}
		if err := kbfile.WriteYAML(path, rec, snap, "instructions extract"); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rec.Metadata.ID, err)
			res.Errors++
			res.Log = append(res.Log, LogEntry{Instruction: rec.Metadata.ID, Error: err.Error(), Severity: "error"})
			continue
		}
		res.Log = append(res.Log, LogEntry{Timestamp: stamp, Action: "created", File: path, Instruction: rec.Metadata.ID})
	}

	mappingDoc := struct {
		Metadata struct {
			Generated         string `yaml:"generated"`
			SourceCSV         string `yaml:"source_csv"`
			TotalInstructions int    `yaml:"total_instructions"`
		} `yaml:"metadata"`
		Mappings map[string]MappingEntry `yaml:"mappings"`
	}{Mappings: mapping}
	mappingDoc.Metadata.Generated = stamp
	mappingDoc.Metadata.SourceCSV = csvPath
	mappingDoc.Metadata.TotalInstructions = len(res.Records)
	if err := kbfile.WriteYAML(filepath.Join(outDir, mappingFile), mappingDoc, snap, "instructions extract"); err != nil {
		return res, fmt.Errorf("writing mapping file: %w", err)
	}

	res.Report = validateExtraction(res.Records, res.Errors, stamp)

	auditDoc := struct {
		Metadata struct {
			ExtractionDate string `yaml:"extraction_date"`
			SourceCSV      string `yaml:"source_csv"`
			TotalProcessed int    `yaml:"total_processed"`
			TotalErrors    int    `yaml:"total_errors"`
		} `yaml:"metadata"`
		LogEntries []LogEntry `yaml:"log_entries"`
	}{LogEntries: res.Log}
	auditDoc.Metadata.ExtractionDate = stamp
	auditDoc.Metadata.SourceCSV = csvPath
	auditDoc.Metadata.TotalProcessed = len(res.Records)
	auditDoc.Metadata.TotalErrors = res.Errors
	if err := kbfile.WriteYAML(filepath.Join(outDir, auditFile), auditDoc, snap, "instructions extract"); err != nil {
		return res, fmt.Errorf("writing audit log: %w", err)
	}

	fmt.Fprintf(w, "extracted %d instructions, %d errors, status %s\n",
		len(res.Records), res.Errors, res.Report.Status)
	if n := len(res.Report.Checks); n > 0 {
		fmt.Fprintf(w, "validation notes: %d items\n", n)
	}
	return res, nil
}

// validateExtraction reports mnemonics with several syntax variants and
// any core instruction that never appeared.
func validateExtraction(records []types.InstructionRecord, errCount int, stamp string) ValidationReport {
	report := ValidationReport{
		Timestamp:      stamp,
		TotalExtracted: len(records),
		TotalErrors:    errCount,
		Checks:         []Check{},
	}

	byMnemonic := map[string][]string{}
	var order []string
	for _, rec := range records {
		m := rec.Layer1CSV.Mnemonic
		if _, seen := byMnemonic[m]; !seen {
			order = append(order, m)
		}
		byMnemonic[m] = append(byMnemonic[m], rec.Metadata.ID)
	}

	for _, m := range order {
		if ids := byMnemonic[m]; len(ids) > 1 {
			report.Checks = append(report.Checks, Check{
				Type:     "duplicate_mnemonic",
				Mnemonic: m,
				Variants: len(ids),
				IDs:      ids,
			})
		}
	}

	var missing []string
	for _, m := range coreMnemonics {
		if _, ok := byMnemonic[m]; !ok {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		report.Checks = append(report.Checks, Check{
			Type:     "missing_core_instructions",
			Missing:  missing,
			Severity: "warning",
		})
	}

	report.Status = "complete"
	if errCount > 0 {
		report.Status = "completed_with_errors"
	}
	return report
}

// sortedKeys returns the keys of a set in order.
func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
