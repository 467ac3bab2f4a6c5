// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package instructions

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Column headers of the instruction spreadsheet export. Several span
// multiple lines inside one quoted cell.
const (
	colSyntax      = "#S = immediate (I=1). S = register.\n#D = immediate (L=1). D = register.\n\n- Assembly Syntax -"
	colGroup       = "- Group -"
	colEncoding    = "- Encoding -"
	colAlias       = "- Alias -"
	colDescription = "* Z = (result == 0).\n** If #S and cogex, PC += signed(S). If #S and hubex, PC += signed(S*4). If S, PC = register S.\n\n- Description -"
	colShield      = "Next Inst\nShielded\nfrom\nInterrupt"
	colCogExec8    = "Clock Cycles (8 cogs)\n\n- Cog Exec Mode -\n- LUT Exec Mode -"
	colHubExec8    = "Clock Cycles (8 cogs)\n* +1 if crosses hub long\n\n- Hub Exec Mode -"
	colCogExec16   = "Clock Cycles (16 cogs)\n\n- Cog Exec Mode -\n- LUT Exec Mode -"
	colHubExec16   = "Clock Cyles (16 cogs)\n* +1 if crosses hub long"
)

// row is one data row keyed by header. Line is the 1-based row number
// counting the header as row 1.
type row struct {
	Line   int
	fields map[string]string
}

// Get returns the trimmed cell under header, or "" when absent.
func (r row) Get(header string) string {
	return strings.TrimSpace(r.fields[header])
}

// readRows reads a CSV file with a header row. Short rows are padded with
// empty cells, and the spreadsheet export's line endings are normalised
// so multi-line header cells match the column constants.
func readRows(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()

	return parseRows(f)
}

func parseRows(r io.Reader) ([]row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.ReplaceAll(header[i], "\r\n", "\n")
	}

	var rows []row
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return rows, fmt.Errorf("reading csv row %d: %w", line, err)
		}

		fields := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				fields[h] = rec[i]
			}
		}
		rows = append(rows, row{Line: line, fields: fields})
	}
	return rows, nil
}
