// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package layers adds the datasheet timing (Layer 2) and designer
// clarification (Layer 4) tiers to instruction records and audits how
// complete each record's tiers are.
package layers

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/p2kb/pkg/types"
)

var (
	rangePattern = regexp.MustCompile(`(\d+)\.\.\.(\d+)`)
	intPattern   = regexp.MustCompile(`\d+`)
	rowMnemonic  = regexp.MustCompile(`^\| \*\*([A-Z][A-Z0-9_]*)`)
	cellMnemonic = regexp.MustCompile(`^\*\*([A-Z][A-Z0-9_]*)`)
)

// groupCycles lists the instruction groups the datasheet times with one
// declaration instead of a per-row column.
var groupCycles = []struct {
	name   string
	cycles int
}{
	{"Math and Logic", 2},
	{"Pin & Smart Pin", 2},
	{"Interrupt", 2},
	{"Register Indirection", 2},
	{"Color Space Converter", 2},
}

// SourceExplicit marks timing read from a table's clock column.
const SourceExplicit = "explicit"

// TimingSource is one mnemonic's raw timing cell and where it came from:
// SourceExplicit or group_<snake group name>.
type TimingSource struct {
	Raw    string
	Source string
}

// FromGroup reports whether the timing came from a group declaration.
func (s TimingSource) FromGroup() bool {
	return strings.HasPrefix(s.Source, "group_")
}

func intp(n int) *int { return &n }

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseTiming classifies a datasheet clock-cycle cell. The first matching
// rule wins: plain number, a...b range, "x or y", cog/hub split on "/",
// "+" wait cycles, and anything else is special.
func ParseTiming(raw string) types.Timing {
	t := types.Timing{Raw: raw}

	if isDigits(raw) {
		t.BaseCycles = intp(atoi(raw))
		t.Type = types.TimingFixed
		return t
	}

	if strings.Contains(raw, "...") {
		if m := rangePattern.FindStringSubmatch(raw); m != nil {
			t.MinCycles = intp(atoi(m[1]))
			t.MaxCycles = intp(atoi(m[2]))
			t.Type = types.TimingVariable
			t.Notes = []string{"Hub window alignment affects timing"}
			return t
		}
	}

	if strings.Contains(raw, " or ") {
		if nums := intPattern.FindAllString(raw, -1); len(nums) >= 2 {
			t.MinCycles = intp(atoi(nums[0]))
			t.MaxCycles = intp(atoi(nums[len(nums)-1]))
			t.Type = types.TimingConditional
			if strings.Contains(strings.ToLower(raw), "branch") || strings.Contains(raw, "/") {
				t.Notes = []string{"Branch taken/not taken affects timing"}
			}
			return t
		}
	}

	if cog, hub, ok := strings.Cut(raw, "/"); ok {
		t.CogLUTTiming = strings.TrimSpace(cog)
		t.HubTiming = strings.TrimSpace(hub)
		t.Type = types.TimingModeDependent
		return t
	}

	if strings.Contains(raw, "+") {
		t.Type = types.TimingVariable
		t.Notes = []string{"Additional cycles based on wait condition"}
		return t
	}

	t.Type = types.TimingSpecial
	return t
}

func groupSource(name string) string {
	return "group_" + strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// ParseDatasheet collects per-mnemonic timing from the datasheet's
// instruction tables. Rows of a three-column table carry their own clock
// cell. Rows of a two-column table inherit the cycles of the group
// declaration above them. Rows of a table headed "| Instruction | ... |
// Clock" override anything taken from a group declaration.
func ParseDatasheet(markdown string) map[string]TimingSource {
	out := map[string]TimingSource{}

	var (
		group   string
		cycles  int
		inTable bool
		table   []string
	)

	flushTable := func() {
		for _, line := range table {
			parts := strings.Split(line, "|")
			if len(parts) < 4 {
				continue
			}
			m := cellMnemonic.FindStringSubmatch(strings.TrimSpace(parts[1]))
			timing := strings.TrimSpace(parts[3])
			if m == nil || timing == "" {
				continue
			}
			if prev, ok := out[m[1]]; !ok || prev.FromGroup() {
				out[m[1]] = TimingSource{Raw: timing, Source: SourceExplicit}
			}
		}
		inTable, table = false, nil
	}

	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")

	for _, line := range lines {
		for _, g := range groupCycles {
			if strings.Contains(line, "All "+g.name+" instructions execute in "+strconv.Itoa(g.cycles)+" clock cycles") {
				group, cycles = g.name, g.cycles
				break
			}
		}

		if strings.HasPrefix(line, "##") && strings.Contains(line, "Instructions") {
			named := false
			for _, g := range groupCycles {
				if strings.Contains(line, g.name) {
					named = true
					break
				}
			}
			if !named {
				group, cycles = "", 0
			}
		}

		if !strings.HasPrefix(line, "| **") {
			continue
		}
		m := rowMnemonic.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		parts := strings.Split(line, "|")
		switch {
		case len(parts) >= 5:
			timing := strings.TrimSpace(parts[3])
			if timing != "" && !strings.HasPrefix(timing, "Clock") {
				out[m[1]] = TimingSource{Raw: timing, Source: SourceExplicit}
			}
		case len(parts) == 4 && group != "":
			out[m[1]] = TimingSource{Raw: strconv.Itoa(cycles), Source: groupSource(group)}
		}
	}

	for _, line := range lines {
		switch {
		case strings.Contains(line, "| Instruction |") && strings.Contains(line, "| Clock"):
			inTable, table = true, nil
		case inTable && strings.HasPrefix(line, "|"):
			if !strings.HasPrefix(line, "|---") {
				table = append(table, line)
			}
		case inTable:
			flushTable()
		}
	}
	if inTable {
		flushTable()
	}

	return out
}
