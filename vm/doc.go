// Package vm implements the execution engine and assembler for the synvm
// instruction set.
//
// The machine has a flat address space of 32768 words, eight registers, an
// unbounded call stack, and a program counter. Every value is a 15-bit word;
// operand words 32768..32775 select a register. The engine runs until it
// halts, hits a breakpoint, or starves for input, and reports which.
//
// The assembler provides a small assembly language for the instruction set,
// supporting macros, labels, equates, and compile-time expression evaluation.
package vm
