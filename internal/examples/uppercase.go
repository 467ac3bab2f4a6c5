// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package examples

import (
	"path/filepath"
	"strings"

	"github.com/pdiddy/p2kb/internal/dedupe"
)

// commonInstructions are the mnemonics, flag effects, and condition
// prefixes highlighted by Uppercase when no other set is given.
var commonInstructions = strings.Fields(`
org drvh drvl waitx jmp mov add sub and or xor shl shr sar rol ror cmp test
rdlong wrlong rdbyte wrbyte rdword wrword coginit cogstop hubset wxpin wypin
mul div abs neg not incmod decmod testp testpn djnz tjnz tjz call ret push pop
getct waitct locknew lockret locktry lockrel lockset lockclr setq setq2 getqx
getqy cordic qrotate qvector qdiv qsqrt qlog qexp wrpin rdpin rqpin akpin
wrfast rdfast wflong wfword wfbyte rflong rfword rfbyte getbyte setbyte
getword setword alti altd altr alts altb setcz modcz modc modz wc wz wcz
if_z if_nz if_c if_nc if_c_and_z if_c_and_nz if_nc_and_z if_nc_and_nz
nop augd augs bitc bitnc bitz bitnz bitrnd bitnot loc pollct pollse pollpat
pollfbw pollxmt pollxfi pollxro pollxrl waitse waitpat waitfbw waitxmt
waitxfi waitxro waitxrl allowi stalli trgint nixint setint setse pollint
waitint encod ones bmask cogatn pollatn waitatn wrlut rdlut addct mulpix
blnpix mixpix fitaccs movbyts splitb mergeb splitw mergew seussf seussr
rgbsqz rgbexp xoro32 rczr rczl rep skip skipf execf getptr getint setbrk
cogbrk brk setluts setcy setci setcq setcfrq setcmod setpiv setpix testn
cmpx cmpsub subr subx addx addsx subsx cmpsx cmpr cmpm mins maxs min max
fge fle fges fles sumc sumnc sumz sumnz muls scl sca scas addpix ptrs ptra
ptrb dirl dirh dirc dirnc dirz dirnz dirrnd dirnot outl outh outc outnc
outz outnz outrnd outnot fltl flth fltc fltnc fltz fltnz fltrnd fltnot
wrz wrnz wrc wrnc modn zerox signx topone botone getmull getmulh divs
div64d divs64d sqrt32 sqrt64 qmul qfrac
`)

// InstructionSet is a case-insensitive set of words to highlight.
type InstructionSet map[string]bool

// DefaultInstructionSet returns the built-in highlight set.
func DefaultInstructionSet() InstructionSet {
	set := InstructionSet{}
	for _, w := range commonInstructions {
		set[w] = true
	}
	return set
}

// AddRecords adds the mnemonic of every pasm2_<name>.yaml record in dir.
func (s InstructionSet) AddRecords(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "pasm2_*.yaml"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		stem := strings.TrimSuffix(filepath.Base(m), ".yaml")
		s[strings.ToLower(dedupe.BaseName(stem))] = true
	}
	return nil
}

// Uppercase rewrites every fenced code block in markdown so the first
// known instruction on each code line reads **WORD**. The code part of a
// rewritten line is re-joined with single spaces, and any ' comment is
// kept as written. Lines outside code blocks are untouched.
func Uppercase(markdown string, set InstructionSet) string {
	lines := strings.SplitAfter(markdown, "\n")
	inCode := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCode = !inCode
			continue
		}
		if inCode {
			lines[i] = highlightLine(line, set)
		}
	}
	return strings.Join(lines, "")
}

func highlightLine(line string, set InstructionSet) string {
	body := strings.TrimRight(line, "\r\n")
	eol := line[len(body):]

	trimmed := strings.TrimSpace(body)
	if trimmed == "" || strings.HasPrefix(trimmed, "'") {
		return line
	}

	code, comment, hasComment := strings.Cut(body, "'")
	words := strings.Fields(code)
	for i, w := range words {
		if set[strings.ToLower(w)] {
			words[i] = "**" + strings.ToUpper(w) + "**"
			break
		}
	}

	out := strings.Join(words, " ")
	if hasComment {
		out += " '" + comment
	}
	return out + eol
}
