package vm

import (
	"fmt"
	"strings"
)

// Op is an instruction opcode.
type Op int

const (
	OP_HALT    = Op(0)  // halt
	OP_SET     = Op(1)  // set
	OP_PUSH    = Op(2)  // push
	OP_POP     = Op(3)  // pop
	OP_EQ      = Op(4)  // eq
	OP_GT      = Op(5)  // gt
	OP_JMP     = Op(6)  // jmp
	OP_JT      = Op(7)  // jt
	OP_JF      = Op(8)  // jf
	OP_ADD     = Op(9)  // add
	OP_MULT    = Op(10) // mult
	OP_MOD     = Op(11) // mod
	OP_AND     = Op(12) // and
	OP_OR      = Op(13) // or
	OP_NOT     = Op(14) // not
	OP_RMEM    = Op(15) // rmem
	OP_WMEM    = Op(16) // wmem
	OP_CALL    = Op(17) // call
	OP_RET     = Op(18) // ret
	OP_OUT     = Op(19) // out
	OP_IN      = Op(20) // in
	OP_NOOP    = Op(21) // noop
	OP_UNKNOWN = Op(-1) // unknown
)

// opInfo describes the encoding of an opcode.
type opInfo struct {
	name  string
	arity int
	dst   bool // First argument is a destination register.
}

var opTable = [...]opInfo{
	OP_HALT: {"halt", 0, false},
	OP_SET:  {"set", 2, true},
	OP_PUSH: {"push", 1, false},
	OP_POP:  {"pop", 1, true},
	OP_EQ:   {"eq", 3, true},
	OP_GT:   {"gt", 3, true},
	OP_JMP:  {"jmp", 1, false},
	OP_JT:   {"jt", 2, false},
	OP_JF:   {"jf", 2, false},
	OP_ADD:  {"add", 3, true},
	OP_MULT: {"mult", 3, true},
	OP_MOD:  {"mod", 3, true},
	OP_AND:  {"and", 3, true},
	OP_OR:   {"or", 3, true},
	OP_NOT:  {"not", 2, true},
	OP_RMEM: {"rmem", 2, true},
	OP_WMEM: {"wmem", 2, false},
	OP_CALL: {"call", 1, false},
	OP_RET:  {"ret", 0, false},
	OP_OUT:  {"out", 1, false},
	OP_IN:   {"in", 1, true},
	OP_NOOP: {"noop", 0, false},
}

// OpOf returns the opcode for a raw opcode word, or OP_UNKNOWN.
func OpOf(word uint16) Op {
	if int(word) < len(opTable) {
		return Op(word)
	}

	return OP_UNKNOWN
}

// OpNamed returns the opcode for a mnemonic.
func OpNamed(name string) (op Op, ok bool) {
	for n, info := range opTable {
		if info.name == name {
			return Op(n), true
		}
	}

	return OP_UNKNOWN, false
}

// Valid is true for the recognized opcodes.
func (op Op) Valid() bool {
	return op >= OP_HALT && int(op) < len(opTable)
}

// Arity is the number of operand words that follow the opcode.
func (op Op) Arity() int {
	if !op.Valid() {
		return 0
	}

	return opTable[op].arity
}

// HasDestination is true if the first operand must name a register.
func (op Op) HasDestination() bool {
	if !op.Valid() {
		return false
	}

	return opTable[op].dst
}

// String returns the mnemonic of the opcode.
func (op Op) String() string {
	if !op.Valid() {
		return "unknown"
	}

	return opTable[op].name
}

// Instruction is a decoded opcode with its operands.
type Instruction struct {
	Addr uint16   // Address of the opcode word.
	Op   Op       // Decoded opcode.
	Raw  uint16   // Raw opcode word.
	Args []Number // Operands, exactly Op.Arity() of them.
}

// Size is the number of words the instruction occupies.
func (ins Instruction) Size() int {
	return 1 + len(ins.Args)
}

// Next is the address following the instruction.
func (ins Instruction) Next() int {
	return int(ins.Addr) + ins.Size()
}

// Words returns the encoding of the instruction.
func (ins Instruction) Words() (words []uint16) {
	words = append(words, ins.Raw)
	for _, arg := range ins.Args {
		words = append(words, arg.Word())
	}

	return
}

// String returns the assembly language representation of this instruction.
func (ins Instruction) String() string {
	if ins.Op == OP_UNKNOWN {
		return fmt.Sprintf(".word %d", ins.Raw)
	}

	if len(ins.Args) == 0 {
		return ins.Op.String()
	}

	args := make([]string, len(ins.Args))
	for n, arg := range ins.Args {
		args[n] = arg.String()
	}

	return ins.Op.String() + " " + strings.Join(args, " ")
}

// Decode decodes the instruction at addr in mem, without side effects.
func Decode(mem []uint16, addr uint16) (ins Instruction, err error) {
	ins.Addr = addr

	if int(addr) >= len(mem) {
		err = ErrAddressInvalid
		return
	}

	ins.Raw = mem[addr]
	ins.Op = OpOf(ins.Raw)

	arity := ins.Op.Arity()
	if arity == 0 {
		return
	}

	ins.Args = make([]Number, arity)
	for n := range arity {
		pos := int(addr) + 1 + n
		if pos >= len(mem) {
			err = ErrAddressInvalid
			return
		}
		ins.Args[n], err = DecodeNumber(mem[pos])
		if err != nil {
			err = ErrOperand{Index: n, Word: mem[pos], Err: err}
			return
		}
		if n == 0 && ins.Op.HasDestination() && !ins.Args[n].IsRegister() {
			err = ErrOperand{Index: n, Word: mem[pos], Err: ErrRegisterInvalid}
			return
		}
	}

	return
}
