// Package disasm renders memory views of the synvm engine as readable
// listings.
package disasm

import (
	"fmt"
	"iter"
	"strings"

	"github.com/ezrec/synvm/translate"
	"github.com/ezrec/synvm/vm"
)

var f = translate.From

// Line is a single entry of a listing: a decoded instruction, or a data
// word that could not be decoded.
type Line struct {
	Addr        uint16
	Words       []uint16
	Instruction vm.Instruction
	Err         error
}

// String returns the listing form of the line.
func (ln Line) String() string {
	if ln.Err != nil {
		return fmt.Sprintf("%d: data %d", ln.Addr, ln.Words[0])
	}

	return fmt.Sprintf("%d: %v", ln.Addr, Format(ln.Instruction))
}

// Listing walks mem from address 'from' up to, but not including, 'to'.
// Words that do not decode are listed as single data words.
func Listing(mem []uint16, from uint16, to int) iter.Seq[Line] {
	return func(yield func(Line) bool) {
		end := min(to, len(mem))
		for addr := int(from); addr < end; {
			ins, err := vm.Decode(mem, uint16(addr))
			ln := Line{Addr: uint16(addr)}
			if err != nil {
				ln.Err = err
				ln.Words = []uint16{mem[addr]}
				addr++
			} else {
				ln.Instruction = ins
				ln.Words = ins.Words()
				addr = ins.Next()
			}
			if !yield(ln) {
				return
			}
		}
	}
}

// At lists the single line at addr of a live engine, without copying its
// memory. ok is false when addr is outside of memory.
func At(engine *vm.VM, addr uint16) (ln Line, ok bool) {
	word, err := engine.Peek(addr)
	if err != nil {
		return
	}

	ln.Addr = addr
	ln.Instruction, ln.Err = engine.Decode(addr)
	if ln.Err != nil {
		ln.Instruction = vm.Instruction{}
		ln.Words = []uint16{word}
	} else {
		ln.Words = ln.Instruction.Words()
	}

	ok = true
	return
}

// Count returns up to n lines of listing starting at addr.
func Count(mem []uint16, addr uint16, n int) (lines []Line) {
	for ln := range Listing(mem, addr, vm.MEMORY_SIZE) {
		if len(lines) == n {
			break
		}
		lines = append(lines, ln)
	}

	return
}

// Format renders an instruction as pseudo-code.
func Format(ins vm.Instruction) string {
	a := ins.Args
	switch ins.Op {
	case vm.OP_HALT:
		return "halt"
	case vm.OP_SET:
		return fmt.Sprintf("%v = %v", a[0], a[1])
	case vm.OP_PUSH:
		return fmt.Sprintf("push %v", a[0])
	case vm.OP_POP:
		return fmt.Sprintf("pop into %v", a[0])
	case vm.OP_EQ:
		return fmt.Sprintf("%v = %v == %v", a[0], a[1], a[2])
	case vm.OP_GT:
		return fmt.Sprintf("%v = %v > %v", a[0], a[1], a[2])
	case vm.OP_JMP:
		return fmt.Sprintf("jmp %v", a[0])
	case vm.OP_JT:
		return fmt.Sprintf("jmp %v if %v", a[1], a[0])
	case vm.OP_JF:
		return fmt.Sprintf("jmp %v if not %v", a[1], a[0])
	case vm.OP_ADD:
		return fmt.Sprintf("%v = %v + %v", a[0], a[1], a[2])
	case vm.OP_MULT:
		return fmt.Sprintf("%v = %v * %v", a[0], a[1], a[2])
	case vm.OP_MOD:
		return fmt.Sprintf("%v = %v %% %v", a[0], a[1], a[2])
	case vm.OP_AND:
		return fmt.Sprintf("%v = %v & %v", a[0], a[1], a[2])
	case vm.OP_OR:
		return fmt.Sprintf("%v = %v | %v", a[0], a[1], a[2])
	case vm.OP_NOT:
		return fmt.Sprintf("%v = not %v", a[0], a[1])
	case vm.OP_RMEM:
		return fmt.Sprintf("%v = m[%v]", a[0], a[1])
	case vm.OP_WMEM:
		return fmt.Sprintf("m[%v] = %v", a[0], a[1])
	case vm.OP_CALL:
		return fmt.Sprintf("call %v", a[0])
	case vm.OP_RET:
		return "ret"
	case vm.OP_OUT:
		return fmt.Sprintf("write %v", printable(a[0]))
	case vm.OP_IN:
		return fmt.Sprintf("read into %v", a[0])
	case vm.OP_NOOP:
		return "noop"
	}

	return fmt.Sprintf("unknown opcode %d", ins.Raw)
}

// printable annotates literal character operands.
func printable(num vm.Number) string {
	if num.IsRegister() {
		return num.String()
	}

	c := num.Literal()
	switch {
	case c == '\n':
		return fmt.Sprintf("%d '\\n'", c)
	case c >= ' ' && c < 0x7f:
		return fmt.Sprintf("%d '%c'", c, rune(c))
	}

	return num.String()
}

// String reads the length-prefixed string at addr: a word count, followed
// by that many character words.
func String(mem []uint16, addr uint16) (str string, err error) {
	if int(addr) >= len(mem) {
		err = vm.ErrAddressInvalid
		return
	}

	size := int(mem[addr])
	start := int(addr) + 1
	if start+size > len(mem) {
		err = ErrStringTruncated{Addr: addr, Size: size}
		return
	}

	var b strings.Builder
	for _, c := range mem[start : start+size] {
		b.WriteByte(byte(c))
	}

	str = b.String()
	return
}

// ErrStringTruncated is a string whose length runs past the end of memory.
type ErrStringTruncated struct {
	Addr uint16
	Size int
}

func (err ErrStringTruncated) Error() string {
	return f("string at %d of length %d exceeds memory", err.Addr, err.Size)
}
