package vm

import (
	"iter"
)

// Link is a code word that is patched with the address of a label.
type Link struct {
	Index int    // Index into Statement.Codes.
	Label string // Label to link.
}

// Statement represents a line of assembled code with its source location
// and generated words.
type Statement struct {
	LineNo int
	Addr   int
	Words  []string
	Codes  []uint16
	Links  []Link
}

type Program struct {
	Statements []Statement
}

type Debug struct {
	*Statement
	Index int
}

func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, st := range prog.Statements {
		if int(addr) >= st.Addr && int(addr) < st.Addr+len(st.Codes) {
			dbg = Debug{
				Statement: &prog.Statements[n],
				Index:     int(addr) - st.Addr,
			}
			break
		}
	}

	return
}

// LineNo returns the source line of the statement at addr, or 0.
func (prog *Program) LineNo(addr uint16) int {
	dbg := prog.Debug(addr)
	if dbg.Statement == nil {
		return 0
	}

	return dbg.LineNo
}

// Binary returns the program image. Gaps left by .org are zero filled.
func (prog *Program) Binary() (bins []uint16) {
	for addr, code := range prog.Codes() {
		for len(bins) < int(addr) {
			bins = append(bins, 0)
		}
		bins = append(bins, code)
	}

	return
}

func (prog *Program) Codes() iter.Seq2[uint16, uint16] {
	return func(yield func(addr uint16, code uint16) bool) {
		for _, st := range prog.Statements {
			addr := uint16(st.Addr)
			for n, code := range st.Codes {
				if !yield(addr+uint16(n), code) {
					return
				}
			}
		}
	}
}
