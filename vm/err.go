package vm

import (
	"errors"

	"github.com/ezrec/synvm/translate"
)

var f = translate.From

var (
	// Engine faults
	ErrOperandInvalid  = errors.New(f("operand invalid"))
	ErrRegisterInvalid = errors.New(f("register invalid"))
	ErrStackEmpty      = errors.New(f("stack empty"))
	ErrAddressInvalid  = errors.New(f("address invalid"))
	ErrDivideByZero    = errors.New(f("divide by zero"))

	// Image errors
	ErrImageOdd  = errors.New(f("image has odd byte count"))
	ErrImageSize = errors.New(f("image larger than memory"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrMacroSyntax        = errors.New(f(".macro syntax"))
	ErrMacroNesting       = errors.New(f(".macro in .macro prohibited"))
	ErrMacroDuplicate     = errors.New(f(".macro duplicated"))
	ErrMacroLonely        = errors.New(f(".macro without .endm"))
	ErrMacroLonelyEndm    = errors.New(f(".endm without .macro"))
	ErrOrgBackwards       = errors.New(f(".org before current address"))
	ErrOpcodeExtraArgs    = errors.New(f("excessive arguments"))
	ErrOpcodeValueMissing = errors.New(f("value missing"))
	ErrOpcodeInvalid      = errors.New(f("opcode invalid"))
	ErrLiteralRange       = errors.New(f("literal out of range"))
)

// ErrOpcode is an opcode word outside of the instruction set.
type ErrOpcode uint16

func (eo ErrOpcode) Error() string {
	return f("unknown opcode %d", uint16(eo))
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrOpcode)
	return
}

// ErrOperand is a malformed operand word of an instruction.
type ErrOperand struct {
	Index int    // Operand position, from 0.
	Word  uint16 // Raw operand word.
	Err   error
}

func (err ErrOperand) Error() string {
	return f("operand %d word %d %v", err.Index+1, err.Word, err.Err)
}

func (err ErrOperand) Unwrap() error {
	return err.Err
}

// ErrFault is a fatal condition raised while executing an instruction.
// The program counter is left at Addr.
type ErrFault struct {
	Addr        uint16
	Instruction Instruction
	Err         error
}

func (err *ErrFault) Error() string {
	return f("fault at %d: %v", err.Addr, err.Err)
}

func (err *ErrFault) Unwrap() error {
	return err.Err
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseValue string

func (err ErrParseValue) Error() string {
	return f("'%v' is not a value or register", string(err))
}

type ErrParseCharacter string

func (err ErrParseCharacter) Error() string {
	return f("'%v' is not a character", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrMacro struct {
	Macro string
	Line  int
	Err   error
}

func (err ErrMacro) Error() string {
	return f("macro %v line %v %v", err.Macro, err.Line, err.Err.Error())
}

func (err ErrMacro) Unwrap() error {
	return err.Err
}
