package vm

import (
	"fmt"
)

const (
	MEMORY_SIZE    = 32768  // Words of addressable memory.
	REGISTER_COUNT = 8      // Number of registers.
	REGISTER_BASE  = 32768  // Operand encoding of r0.
	REGISTER_LAST  = 32775  // Operand encoding of r7.
	WORD_MASK      = 0x7fff // Mask of a 15-bit word.
	WORD_MODULUS   = 32768  // Arithmetic modulus.
)

// Number is a decoded instruction operand: either a literal word, or a
// reference to a register that is resolved when the instruction executes.
type Number uint16

// DecodeNumber validates a raw operand word.
func DecodeNumber(raw uint16) (num Number, err error) {
	if raw > REGISTER_LAST {
		err = ErrOperandInvalid
		return
	}

	num = Number(raw)
	return
}

// Literal makes a literal operand.
func Literal(value uint16) Number {
	return Number(value & WORD_MASK)
}

// Reg makes a register reference operand.
func Reg(index int) Number {
	return Number(REGISTER_BASE + (index % REGISTER_COUNT))
}

// IsRegister is true if the operand names a register.
func (num Number) IsRegister() bool {
	return num >= REGISTER_BASE
}

// Register is the register index of a register operand.
func (num Number) Register() int {
	return int(num) - REGISTER_BASE
}

// Literal is the value of a literal operand.
func (num Number) Literal() uint16 {
	return uint16(num)
}

// Word is the raw encoding of the operand.
func (num Number) Word() uint16 {
	return uint16(num)
}

// String returns the assembler form of the operand.
func (num Number) String() string {
	if num.IsRegister() {
		return fmt.Sprintf("r%d", num.Register())
	}

	return fmt.Sprintf("%d", uint16(num))
}
