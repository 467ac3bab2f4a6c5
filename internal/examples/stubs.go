// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package examples

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

const stubHeader = `'==============================================================================
' Helper Method Stubs
' Generated minimal implementations for example compilation
'==============================================================================
'
' These one-line stubs let every example compile and run without external
' hardware. They return simulated data.
'
'==============================================================================

CON
  ' Stub configuration constants
  STUB_VERSION = 1

VAR
  ' Shared simulation variables
  long demo_tick          ' Global counter for simulated data
  long ev_count           ' Event counter
  long demo_buffer[256]   ' Shared buffer for capture simulations
  long demo_var           ' General purpose variable

'------------------------------------------------------------------------------
' STUB IMPLEMENTATIONS
'------------------------------------------------------------------------------
`

// stubGroups orders methods by prefix. The last entry catches the rest.
var stubGroups = []struct {
	prefix string
	title  string
}{
	{"read_", "Sensor/Input Reading Methods"},
	{"get_", "Data Getter Methods"},
	{"draw_", "Drawing/Display Methods"},
	{"render_", "Drawing/Display Methods"},
	{"display_", "Drawing/Display Methods"},
	{"update_", "Update/Setter Methods"},
	{"set_", "Update/Setter Methods"},
	{"process_", "Processing/Computation Methods"},
	{"compute_", "Processing/Computation Methods"},
	{"calculate_", "Processing/Computation Methods"},
	{"analyze_", "Processing/Computation Methods"},
	{"handle_", "Event Handler Methods"},
	{"init", "Initialization Methods"},
	{"", "Miscellaneous Methods"},
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// stubBody picks the signature tail and comment for a method by name.
func stubBody(name string) (sig, comment string) {
	n := strings.ToLower(name)
	switch {
	case hasAnyPrefix(n, "read_", "get_"):
		switch {
		case strings.Contains(n, "adc"):
			return "() : v = demo_tick++ // 4096", "12-bit ADC simulation"
		case containsAny(n, "temperature", "temp"):
			return "() : v = 20 + demo_tick++ // 100", "Temperature simulation"
		case strings.Contains(n, "sensor"):
			return "() : v = demo_tick++ // 100", "Sensor range 0-99"
		case containsAny(n, "button", "key"):
			return "() : v = demo_tick & 1", "Button state 0/1"
		case strings.Contains(n, "analog"):
			return "() : v = demo_tick & $FF", "8-bit analog value"
		case containsAny(n, "value", "data"):
			return "() : v = demo_tick++", "Incrementing value"
		case containsAny(n, "position", "pos"):
			return "() : v = demo_tick & $1FF", "Position value"
		case containsAny(n, "state", "status"):
			return "() : v = (demo_tick >> 4) & $F", "State machine 0-15"
		}
		return "() : v = demo_tick++ & $FFFF", "Generic read"

	case hasAnyPrefix(n, "draw_", "render_", "display_"):
		switch {
		case strings.Contains(n, "line"):
			return "(x1, y1, x2, y2, c)", "Draw line"
		case containsAny(n, "box", "rect"):
			return "(x, y, w, h, c)", "Draw box"
		case strings.Contains(n, "circle"):
			return "(x, y, r, c)", "Draw circle"
		case containsAny(n, "text", "string"):
			return "(x, y, str)", "Draw text"
		case containsAny(n, "gauge", "meter"):
			return "(x, y, v)", "Draw gauge"
		case strings.Contains(n, "grid"):
			return "(x, y, w, h, s)", "Draw grid"
		case containsAny(n, "graph", "plot"):
			return "(x, y, data)", "Draw graph"
		}
		return "(x, y)", "Generic draw"

	case hasAnyPrefix(n, "update_", "set_"):
		switch {
		case containsAny(n, "display", "screen"):
			return "()", "Update display"
		case containsAny(n, "value", "data", "param"):
			return "(v) : r = v", "Set and return value"
		}
		return "(v)", "Set value"

	case containsAny(n, "process_", "compute_", "calculate_", "analyze_"):
		switch {
		case strings.Contains(n, "fft"):
			return "() : v = demo_tick * 42", "FFT simulation"
		case containsAny(n, "average", "mean"):
			return "() : v = demo_tick // 10", "Average calculation"
		case strings.Contains(n, "filter"):
			return "(v) : r = (v * 3) >> 2", "Simple filter"
		}
		return "() : v = demo_tick++", "Process simulation"

	case hasAnyPrefix(n, "handle_", "on_"):
		return "() = ev_count++", "Event handler"
	case hasAnyPrefix(n, "init", "setup", "start"):
		return "() = demo_tick := 0", "Initialize"
	case containsAny(n, "reset", "clear"):
		return "() = demo_tick := 0", "Reset state"
	case containsAny(n, "capture", "record", "sample"):
		return "() : ptr = @demo_buffer", "Return buffer"
	case hasAnyPrefix(n, "is_", "has_", "check_"):
		return "() : v = demo_tick & 1", "Boolean check"
	case strings.HasPrefix(n, "wait_"):
		return "() = waitms(1)", "Brief wait"
	case hasAnyPrefix(n, "send_", "transmit_", "tx_"):
		return "(v)", "Send data"
	case hasAnyPrefix(n, "receive_", "rx_"):
		return "() : v = demo_tick & $FF", "Receive simulation"
	case strings.Contains(n, "config"):
		return "(v)", "Configure"
	case containsAny(n, "enable", "disable"):
		return "() = demo_tick := demo_tick ^ 1", "Toggle enable"
	case containsAny(n, "get", "read", "check", "is", "has", "measure", "find"):
		return "() : v = demo_tick++", "Returns value"
	}
	return "()", "Action stub"
}

// Stub returns the one-line PRI stub for a method.
func Stub(name string) string {
	sig, comment := stubBody(name)
	return fmt.Sprintf("%-58s ' %s", "PRI "+name+sig, comment)
}

// GenerateStubs builds a Spin2 source file with a stub for every name,
// grouped by name prefix after a shared CON/VAR header.
func GenerateStubs(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	grouped := make([][]string, len(stubGroups))
	for _, name := range sorted {
		for i, g := range stubGroups {
			if g.prefix == "" || strings.HasPrefix(name, g.prefix) {
				grouped[i] = append(grouped[i], name)
				break
			}
		}
	}

	var b strings.Builder
	b.WriteString(stubHeader)
	for i, g := range stubGroups {
		if len(grouped[i]) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n' %s\n", g.title)
		for _, name := range grouped[i] {
			b.WriteString(Stub(name) + "\n")
		}
	}
	return b.String()
}

// ReadMethodList reads one method name per line, keeping the text before
// the first comma and skipping blank lines.
func ReadMethodList(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		name, _, _ := strings.Cut(line, ",")
		names = append(names, strings.TrimSpace(name))
	}
	return names, sc.Err()
}
