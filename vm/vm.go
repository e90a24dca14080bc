// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import (
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
	"slices"
	"unicode/utf8"
)

//go:generate go tool stringer -linecomment -type=Reason

// Reason is why the engine returned control to its caller.
type Reason int

const (
	REASON_NONE       = Reason(0) // running
	REASON_HALT       = Reason(1) // halted
	REASON_INPUT      = Reason(2) // awaiting input
	REASON_BREAKPOINT = Reason(3) // breakpoint
)

var _vm_defines = map[string]string{
	"MEMORY_SIZE":    fmt.Sprintf("%d", MEMORY_SIZE),
	"REGISTER_COUNT": fmt.Sprintf("%d", REGISTER_COUNT),
	"WORD_MASK":      fmt.Sprintf("%#x", WORD_MASK),
}

// VM is the execution engine. Each VM owns its memory, registers, stack,
// input queue, and breakpoints; VMs share no state.
type VM struct {
	Verbose bool // Set to enable verbose logging.

	Output io.Writer // Output sink for the out instruction.

	Pc       uint16                 // Program counter.
	Register [REGISTER_COUNT]uint16 // Register file.
	Stack    Stack                  // Call stack.

	Ticks int // Instructions executed since reset.

	memory     [MEMORY_SIZE]uint16
	input      []uint16
	breakpoint map[uint16]struct{}
	silent     bool
	suspended  bool
}

// NewVM creates a new engine with output discarded until a sink is set.
func NewVM() (vm *VM) {
	vm = &VM{
		Output:     io.Discard,
		breakpoint: map[uint16]struct{}{},
	}

	return
}

// Defines for the engine.
func (vm *VM) Defines() iter.Seq2[string, string] {
	return maps.All(_vm_defines)
}

// String returns the current engine state as a string.
func (vm *VM) String() (text string) {
	text += fmt.Sprintf("% 5s: %05d\n", "pc", vm.Pc)
	for n, val := range vm.Register {
		text += fmt.Sprintf("% 5s: %05d\n", fmt.Sprintf("r%d", n), val)
	}

	top, ok := vm.Stack.Peek()
	if ok {
		text += fmt.Sprintf("% 5s: %05d (depth %d)\n", "stack", top, vm.Stack.Len())
	} else {
		text += fmt.Sprintf("% 5s: -----\n", "stack")
	}

	text += fmt.Sprintf("% 5s: %d\n", "input", len(vm.input))

	return
}

// Reset clears memory, registers, stack, program counter, and pending
// input. Breakpoints and output settings are kept.
func (vm *VM) Reset() {
	if vm.Verbose {
		log.Printf("vm: reset")
	}

	clear(vm.memory[:])
	clear(vm.Register[:])
	vm.Stack.Reset()
	vm.Pc = 0
	vm.Ticks = 0
	vm.input = nil
	vm.suspended = false
}

// Load copies a program image into memory, starting at address 0.
func (vm *VM) Load(words []uint16) (err error) {
	if len(words) > MEMORY_SIZE {
		err = ErrImageSize
		return
	}

	copy(vm.memory[:], words)

	if vm.Verbose {
		log.Printf("vm: loaded %d words", len(words))
	}

	return
}

// Memory returns a copy of the whole address space.
func (vm *VM) Memory() []uint16 {
	return slices.Clone(vm.memory[:])
}

// Peek reads a memory cell.
func (vm *VM) Peek(addr uint16) (value uint16, err error) {
	if addr >= MEMORY_SIZE {
		err = ErrAddressInvalid
		return
	}

	value = vm.memory[addr]
	return
}

// Poke writes a memory cell.
func (vm *VM) Poke(addr uint16, value uint16) (err error) {
	if addr >= MEMORY_SIZE {
		err = ErrAddressInvalid
		return
	}

	vm.memory[addr] = value
	return
}

// GetRegister reads a register.
func (vm *VM) GetRegister(index int) (value uint16, err error) {
	if index < 0 || index >= REGISTER_COUNT {
		err = ErrRegisterInvalid
		return
	}

	value = vm.Register[index]
	return
}

// SetRegister overrides a register. Values above WORD_MASK are rejected.
func (vm *VM) SetRegister(index int, value uint16) (err error) {
	if index < 0 || index >= REGISTER_COUNT {
		err = ErrRegisterInvalid
		return
	}

	if value > WORD_MASK {
		err = ErrOperandInvalid
		return
	}

	vm.Register[index] = value
	return
}

// AddBreakpoint suspends Run whenever execution arrives at addr.
func (vm *VM) AddBreakpoint(addr uint16) {
	if vm.breakpoint == nil {
		vm.breakpoint = map[uint16]struct{}{}
	}

	vm.breakpoint[addr] = struct{}{}
}

// RemoveBreakpoint removes a breakpoint, returning false if none was set.
func (vm *VM) RemoveBreakpoint(addr uint16) (ok bool) {
	_, ok = vm.breakpoint[addr]
	delete(vm.breakpoint, addr)
	return
}

// IsBreakpoint is true if addr has a breakpoint.
func (vm *VM) IsBreakpoint(addr uint16) (ok bool) {
	_, ok = vm.breakpoint[addr]
	return
}

// Breakpoints iterates the breakpoint addresses in ascending order.
func (vm *VM) Breakpoints() iter.Seq[uint16] {
	return slices.Values(slices.Sorted(maps.Keys(vm.breakpoint)))
}

// SetOutputEnabled enables or disables the output sink.
func (vm *VM) SetOutputEnabled(enabled bool) {
	vm.silent = !enabled
}

// OutputEnabled is true if out instructions reach the output sink.
func (vm *VM) OutputEnabled() bool {
	return !vm.silent
}

// Input queues text for the in instruction, one word per character.
func (vm *VM) Input(text string) {
	for _, r := range text {
		vm.input = append(vm.input, uint16(r))
	}
}

// Pending returns the number of queued input characters.
func (vm *VM) Pending() int {
	return len(vm.input)
}

// Decode decodes the instruction at addr in place, without copying memory.
func (vm *VM) Decode(addr uint16) (ins Instruction, err error) {
	return Decode(vm.memory[:], addr)
}

// Fetch decodes the instruction at the program counter, and advances the
// program counter past it. On error the program counter is unchanged.
func (vm *VM) Fetch() (ins Instruction, err error) {
	ins, err = vm.Decode(vm.Pc)
	if err != nil {
		return
	}

	vm.Pc = uint16(ins.Next())
	return
}

// Step fetches and executes a single instruction.
func (vm *VM) Step() (reason Reason, err error) {
	addr := vm.Pc

	ins, err := vm.Fetch()
	if err != nil {
		err = &ErrFault{Addr: addr, Instruction: ins, Err: err}
		return
	}

	reason, err = vm.Execute(ins)
	return
}

// Run executes instructions until the program halts, starves for input,
// arrives at a breakpoint, or faults.
func (vm *VM) Run() (reason Reason, err error) {
	vm.suspended = false

	for !vm.suspended {
		reason, err = vm.Step()
		if err != nil {
			vm.suspended = true
			return
		}

		if reason == REASON_NONE && vm.IsBreakpoint(vm.Pc) {
			if vm.Verbose {
				log.Printf("vm: breakpoint at %d", vm.Pc)
			}
			reason = REASON_BREAKPOINT
			vm.suspended = true
		}
	}

	return
}

// Execute executes a single decoded instruction. The program counter is
// expected to already point past the instruction.
func (vm *VM) Execute(ins Instruction) (reason Reason, err error) {
	defer func() {
		if err != nil {
			vm.Pc = ins.Addr
			err = &ErrFault{Addr: ins.Addr, Instruction: ins, Err: err}
		}
	}()

	if vm.Verbose {
		log.Printf("%05d: %v", ins.Addr, ins)
	}

	if ins.Op != OP_UNKNOWN && len(ins.Args) != ins.Op.Arity() {
		err = ErrOperandInvalid
		return
	}

	args := ins.Args
	for _, arg := range args {
		if arg > REGISTER_LAST {
			err = ErrOperandInvalid
			return
		}
	}

	var dst int
	if ins.Op.HasDestination() {
		if !args[0].IsRegister() {
			err = ErrRegisterInvalid
			return
		}
		dst = args[0].Register()
	}

	switch ins.Op {
	case OP_HALT:
		reason = REASON_HALT
		vm.suspended = true
	case OP_SET:
		vm.Register[dst] = vm.resolve(args[1])
	case OP_PUSH:
		vm.Stack.Push(vm.resolve(args[0]))
	case OP_POP:
		value, ok := vm.Stack.Pop()
		if !ok {
			err = ErrStackEmpty
			return
		}
		vm.Register[dst] = value
	case OP_EQ:
		vm.Register[dst] = truth(vm.resolve(args[1]) == vm.resolve(args[2]))
	case OP_GT:
		vm.Register[dst] = truth(vm.resolve(args[1]) > vm.resolve(args[2]))
	case OP_JMP:
		vm.Pc = vm.resolve(args[0])
	case OP_JT:
		if vm.resolve(args[0]) != 0 {
			vm.Pc = vm.resolve(args[1])
		}
	case OP_JF:
		if vm.resolve(args[0]) == 0 {
			vm.Pc = vm.resolve(args[1])
		}
	case OP_ADD:
		sum := uint32(vm.resolve(args[1])) + uint32(vm.resolve(args[2]))
		vm.Register[dst] = uint16(sum % WORD_MODULUS)
	case OP_MULT:
		product := uint32(vm.resolve(args[1])) * uint32(vm.resolve(args[2]))
		vm.Register[dst] = uint16(product % WORD_MODULUS)
	case OP_MOD:
		divisor := vm.resolve(args[2])
		if divisor == 0 {
			err = ErrDivideByZero
			return
		}
		vm.Register[dst] = vm.resolve(args[1]) % divisor
	case OP_AND:
		vm.Register[dst] = vm.resolve(args[1]) & vm.resolve(args[2])
	case OP_OR:
		vm.Register[dst] = vm.resolve(args[1]) | vm.resolve(args[2])
	case OP_NOT:
		vm.Register[dst] = ^vm.resolve(args[1]) & WORD_MASK
	case OP_RMEM:
		var value uint16
		value, err = vm.Peek(vm.resolve(args[1]))
		if err != nil {
			return
		}
		vm.Register[dst] = value
	case OP_WMEM:
		err = vm.Poke(vm.resolve(args[0]), vm.resolve(args[1]))
		if err != nil {
			return
		}
	case OP_CALL:
		vm.Stack.Push(vm.Pc)
		vm.Pc = vm.resolve(args[0])
	case OP_RET:
		value, ok := vm.Stack.Pop()
		if !ok {
			err = ErrStackEmpty
			return
		}
		vm.Pc = value
	case OP_OUT:
		if !vm.silent && vm.Output != nil {
			// The low byte is a character, sent UTF-8 encoded.
			char := rune(byte(vm.resolve(args[0])))
			_, err = vm.Output.Write(utf8.AppendRune(nil, char))
			if err != nil {
				return
			}
		}
	case OP_IN:
		if len(vm.input) == 0 {
			// Present this same instruction again on resume.
			vm.Pc = ins.Addr
			reason = REASON_INPUT
			vm.suspended = true
			return
		}
		vm.Register[dst] = vm.input[0]
		vm.input = vm.input[1:]
	case OP_NOOP:
		// pass
	default:
		err = ErrOpcode(ins.Raw)
		return
	}

	vm.Ticks++

	return
}

// resolve returns the effective value of an operand.
func (vm *VM) resolve(num Number) uint16 {
	if num.IsRegister() {
		return vm.Register[num.Register()]
	}

	return num.Literal()
}

func truth(cond bool) uint16 {
	if cond {
		return 1
	}

	return 0
}
