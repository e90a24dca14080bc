package vm

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Register operand encodings.
const (
	r0 = 32768
	r1 = 32769
	r2 = 32770
	r7 = 32775
)

func newTestVM(t *testing.T, words ...uint16) (engine *VM, out *bytes.Buffer) {
	engine = NewVM()
	out = &bytes.Buffer{}
	engine.Output = out
	require.NoError(t, engine.Load(words))
	return
}

func TestVM(t *testing.T) {
	assert := assert.New(t)

	engine := NewVM()
	assert.False(engine.Verbose)
	assert.True(engine.OutputEnabled())
	assert.Equal(uint16(0), engine.Pc)
	assert.Equal(0, engine.Pending())
	assert.Len(engine.Memory(), MEMORY_SIZE)
	assert.Contains(engine.String(), "pc: 00000")

	defines := map[string]string{}
	for key, value := range engine.Defines() {
		defines[key] = value
	}
	assert.Equal("32768", defines["MEMORY_SIZE"])
	assert.Equal("8", defines["REGISTER_COUNT"])
}

func TestVM_SetRegister(t *testing.T) {
	assert := assert.New(t)

	for reg := range REGISTER_COUNT {
		for _, value := range []uint16{0, 1, 12345, 32767} {
			engine, _ := newTestVM(t, uint16(OP_SET), uint16(r0+reg), value, uint16(OP_HALT))
			reason, err := engine.Run()
			assert.NoError(err)
			assert.Equal(REASON_HALT, reason)
			assert.Equal(value, engine.Register[reg], "r%d", reg)
		}
	}
}

func TestVM_Arithmetic(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		op     Op
		b, c   uint16
		expect uint16
	}){
		{"add", OP_ADD, 3, 4, 7},
		{"add_wrap", OP_ADD, 32767, 2, 1},
		{"add_max", OP_ADD, 32767, 32767, 32766},
		{"mult", OP_MULT, 12, 11, 132},
		{"mult_wrap", OP_MULT, 32767, 32767, 1},
		{"mult_wrap2", OP_MULT, 16384, 2, 0},
		{"mod", OP_MOD, 10, 3, 1},
		{"mod_less", OP_MOD, 2, 7, 2},
		{"and", OP_AND, 0b1100, 0b1010, 0b1000},
		{"or", OP_OR, 0b1100, 0b1010, 0b1110},
		{"eq_true", OP_EQ, 5, 5, 1},
		{"eq_false", OP_EQ, 5, 6, 0},
		{"gt_true", OP_GT, 6, 5, 1},
		{"gt_false", OP_GT, 5, 5, 0},
	}

	for _, entry := range table {
		engine, _ := newTestVM(t, uint16(entry.op), r2, entry.b, entry.c, uint16(OP_HALT))
		reason, err := engine.Run()
		assert.NoError(err, entry.name)
		assert.Equal(REASON_HALT, reason, entry.name)
		assert.Equal(entry.expect, engine.Register[2], entry.name)
		assert.Equal(uint16(5), engine.Pc, entry.name)
	}
}

func TestVM_Not(t *testing.T) {
	assert := assert.New(t)

	engine := NewVM()

	not := func(dst int, src Number) {
		ins := Instruction{Op: OP_NOT, Raw: uint16(OP_NOT), Args: []Number{Reg(dst), src}}
		reason, err := engine.Execute(ins)
		assert.NoError(err)
		assert.Equal(REASON_NONE, reason)
	}

	not(0, Literal(0))
	assert.Equal(uint16(32767), engine.Register[0])

	for value := uint16(0); value < MEMORY_SIZE; value += 7 {
		not(1, Literal(value))
		assert.LessOrEqual(engine.Register[1], uint16(WORD_MASK))
		not(2, Reg(1))
		assert.Equal(value, engine.Register[2])
	}
}

func TestVM_Registers(t *testing.T) {
	assert := assert.New(t)

	// set r1 9; add r0 r1 r1; halt
	engine, _ := newTestVM(t,
		uint16(OP_SET), r1, 9,
		uint16(OP_ADD), r0, r1, r1,
		uint16(OP_HALT))

	reason, err := engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_HALT, reason)
	assert.Equal(uint16(18), engine.Register[0])
	assert.Equal(uint16(8), engine.Pc)
}

func TestVM_Jumps(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		op     Op
		cond   uint16
		expect uint16
	}){
		{"jt_taken", OP_JT, 1, 10},
		{"jt_not_taken", OP_JT, 0, 3},
		{"jf_taken", OP_JF, 0, 10},
		{"jf_not_taken", OP_JF, 7, 3},
	}

	for _, entry := range table {
		engine, _ := newTestVM(t, uint16(entry.op), entry.cond, 10)
		reason, err := engine.Step()
		assert.NoError(err, entry.name)
		assert.Equal(REASON_NONE, reason, entry.name)
		assert.Equal(entry.expect, engine.Pc, entry.name)
	}

	engine, _ := newTestVM(t, uint16(OP_JMP), 1234)
	_, err := engine.Step()
	assert.NoError(err)
	assert.Equal(uint16(1234), engine.Pc)
}

func TestVM_Stack(t *testing.T) {
	assert := assert.New(t)

	// push 5; push r1; pop r0; pop r2; halt
	engine, _ := newTestVM(t,
		uint16(OP_PUSH), 5,
		uint16(OP_PUSH), r1,
		uint16(OP_POP), r0,
		uint16(OP_POP), r2,
		uint16(OP_HALT))
	engine.Register[1] = 77

	reason, err := engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_HALT, reason)
	assert.Equal(uint16(77), engine.Register[0])
	assert.Equal(uint16(5), engine.Register[2])
	assert.True(engine.Stack.Empty())
}

func TestVM_Memory(t *testing.T) {
	assert := assert.New(t)

	// wmem 100 42; rmem r1 100; wmem r1 r1; halt
	engine, _ := newTestVM(t,
		uint16(OP_WMEM), 100, 42,
		uint16(OP_RMEM), r1, 100,
		uint16(OP_WMEM), r1, r1,
		uint16(OP_HALT))

	reason, err := engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_HALT, reason)
	assert.Equal(uint16(42), engine.Register[1])

	value, err := engine.Peek(100)
	assert.NoError(err)
	assert.Equal(uint16(42), value)

	value, err = engine.Peek(42)
	assert.NoError(err)
	assert.Equal(uint16(42), value)
}

func TestVM_CallReturn(t *testing.T) {
	assert := assert.New(t)

	words := make([]uint16, 11)
	copy(words, []uint16{uint16(OP_CALL), 10, uint16(OP_HALT)})
	words[10] = uint16(OP_RET)
	engine, _ := newTestVM(t, words...)

	reason, err := engine.Step()
	assert.NoError(err)
	assert.Equal(REASON_NONE, reason)
	assert.Equal(uint16(10), engine.Pc)
	top, ok := engine.Stack.Peek()
	assert.True(ok)
	assert.Equal(uint16(2), top)

	_, err = engine.Step()
	assert.NoError(err)
	assert.Equal(uint16(2), engine.Pc)
	assert.True(engine.Stack.Empty())

	reason, err = engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_HALT, reason)
}

func TestVM_Output(t *testing.T) {
	assert := assert.New(t)

	// set r0 7; out r0; halt
	engine, out := newTestVM(t,
		uint16(OP_SET), r0, 7,
		uint16(OP_OUT), r0,
		uint16(OP_HALT))

	reason, err := engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_HALT, reason)
	assert.Equal([]byte{7}, out.Bytes())

	// out 'h'; out 'i'; out r0; halt
	engine, out = newTestVM(t,
		uint16(OP_OUT), 'h',
		uint16(OP_OUT), 'i',
		uint16(OP_OUT), r0,
		uint16(OP_HALT))
	engine.Register[0] = '\n'

	_, err = engine.Run()
	assert.NoError(err)
	assert.Equal("hi\n", out.String())

	engine.SetOutputEnabled(false)
	assert.False(engine.OutputEnabled())
	engine.Pc = 0
	out.Reset()
	reason, err = engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_HALT, reason)
	assert.Empty(out.Bytes())

	table := [](struct {
		value  uint16
		expect []byte
	}){
		{'A', []byte("A")},
		{127, []byte{0x7f}},
		{128, []byte{0xc2, 0x80}},
		{233, []byte("é")},
		{255, []byte("ÿ")},
		{0x100 + 'B', []byte("B")},
		{0x1e9, []byte("é")},
	}

	for _, entry := range table {
		engine, out = newTestVM(t, uint16(OP_OUT), entry.value, uint16(OP_HALT))
		reason, err = engine.Run()
		assert.NoError(err, entry.value)
		assert.Equal(REASON_HALT, reason, entry.value)
		assert.Equal(entry.expect, out.Bytes(), entry.value)
	}
}

func TestVM_Input(t *testing.T) {
	assert := assert.New(t)

	// noop; in r0; out r0; in r1; halt
	engine, out := newTestVM(t,
		uint16(OP_NOOP),
		uint16(OP_IN), r0,
		uint16(OP_OUT), r0,
		uint16(OP_IN), r1,
		uint16(OP_HALT))

	reason, err := engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_INPUT, reason)
	assert.Equal(uint16(1), engine.Pc)
	assert.Equal(1, engine.Ticks)

	// Starved again without new input.
	reason, err = engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_INPUT, reason)
	assert.Equal(uint16(1), engine.Pc)

	engine.Input("A")
	assert.Equal(1, engine.Pending())

	reason, err = engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_INPUT, reason)
	assert.Equal(uint16('A'), engine.Register[0])
	assert.Equal("A", out.String())
	assert.Equal(uint16(5), engine.Pc)
	assert.Equal(0, engine.Pending())

	engine.Input("é")
	reason, err = engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_HALT, reason)
	assert.Equal(uint16('é'), engine.Register[1])
}

func TestVM_Breakpoint(t *testing.T) {
	assert := assert.New(t)

	// 0: set r0 0; 3: add r0 r0 1; 7: jmp 3
	engine, _ := newTestVM(t,
		uint16(OP_SET), r0, 0,
		uint16(OP_ADD), r0, r0, 1,
		uint16(OP_JMP), 3)
	engine.AddBreakpoint(3)

	for n := range 5 {
		reason, err := engine.Run()
		assert.NoError(err)
		assert.Equal(REASON_BREAKPOINT, reason)
		assert.Equal(uint16(3), engine.Pc)
		assert.Equal(uint16(n), engine.Register[0])
	}

	engine.AddBreakpoint(7)
	reason, err := engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_BREAKPOINT, reason)
	assert.Equal(uint16(7), engine.Pc)
	assert.Equal(uint16(5), engine.Register[0])

	assert.Equal([]uint16{3, 7}, slices.Collect(engine.Breakpoints()))
	assert.True(engine.RemoveBreakpoint(3))
	assert.False(engine.RemoveBreakpoint(3))
	assert.False(engine.IsBreakpoint(3))
	assert.Equal([]uint16{7}, slices.Collect(engine.Breakpoints()))
}

func TestVM_UnknownOpcode(t *testing.T) {
	assert := assert.New(t)

	engine, _ := newTestVM(t, uint16(OP_NOOP), 22)
	engine.Register[3] = 99

	reason, err := engine.Run()
	assert.Error(err)
	assert.Equal(REASON_NONE, reason)
	assert.ErrorIs(err, ErrOpcode(22))

	var fault *ErrFault
	assert.True(errors.As(err, &fault))
	assert.Equal(uint16(1), fault.Addr)
	assert.Equal(OP_UNKNOWN, fault.Instruction.Op)
	assert.Equal(uint16(1), engine.Pc)
	assert.Equal(uint16(99), engine.Register[3])
	assert.Contains(err.Error(), "unknown opcode 22")
}

func TestVM_Faults(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		words []uint16
		setup func(engine *VM)
		err   error
	}){
		{"pop_empty", []uint16{uint16(OP_POP), r0}, nil, ErrStackEmpty},
		{"ret_empty", []uint16{uint16(OP_RET)}, nil, ErrStackEmpty},
		{"operand", []uint16{uint16(OP_JMP), 32776}, nil, ErrOperandInvalid},
		{"destination", []uint16{uint16(OP_SET), 3, 4}, nil, ErrRegisterInvalid},
		{"mod_zero", []uint16{uint16(OP_MOD), r0, 5, 0}, nil, ErrDivideByZero},
		{"rmem_range", []uint16{uint16(OP_RMEM), r0, r1}, func(engine *VM) { engine.Register[1] = 40000 }, ErrAddressInvalid},
		{"wmem_range", []uint16{uint16(OP_WMEM), r1, 1}, func(engine *VM) { engine.Register[1] = 32768 }, ErrAddressInvalid},
	}

	for _, entry := range table {
		engine, _ := newTestVM(t, entry.words...)
		if entry.setup != nil {
			entry.setup(engine)
		}
		registers := engine.Register

		_, err := engine.Run()
		assert.ErrorIs(err, entry.err, entry.name)

		var fault *ErrFault
		assert.True(errors.As(err, &fault), entry.name)
		assert.Equal(uint16(0), fault.Addr, entry.name)
		assert.Equal(uint16(0), engine.Pc, entry.name)
		assert.Equal(registers, engine.Register, entry.name)
	}
}

func TestVM_JumpOutOfMemory(t *testing.T) {
	assert := assert.New(t)

	engine, _ := newTestVM(t, uint16(OP_JMP), r0)
	engine.Register[0] = 40000

	reason, err := engine.Step()
	assert.NoError(err)
	assert.Equal(REASON_NONE, reason)
	assert.Equal(uint16(40000), engine.Pc)

	_, err = engine.Step()
	assert.ErrorIs(err, ErrAddressInvalid)
	var fault *ErrFault
	assert.True(errors.As(err, &fault))
	assert.Equal(uint16(40000), fault.Addr)
	assert.Equal(uint16(40000), engine.Pc)
}

func TestVM_Execute_Malformed(t *testing.T) {
	assert := assert.New(t)

	engine := NewVM()

	_, err := engine.Execute(Instruction{Op: OP_ADD, Args: []Number{Reg(0)}})
	assert.ErrorIs(err, ErrOperandInvalid)

	_, err = engine.Execute(Instruction{Op: OP_PUSH, Args: []Number{Number(40000)}})
	assert.ErrorIs(err, ErrOperandInvalid)

	_, err = engine.Execute(Instruction{Op: OP_UNKNOWN, Raw: 99})
	assert.ErrorIs(err, ErrOpcode(99))
}

func TestVM_DebugSurface(t *testing.T) {
	assert := assert.New(t)

	engine := NewVM()

	assert.NoError(engine.Poke(32767, 0xffff))
	value, err := engine.Peek(32767)
	assert.NoError(err)
	assert.Equal(uint16(0xffff), value)

	assert.ErrorIs(engine.Poke(32768, 1), ErrAddressInvalid)
	_, err = engine.Peek(50000)
	assert.ErrorIs(err, ErrAddressInvalid)

	assert.NoError(engine.SetRegister(7, 25734))
	value, err = engine.GetRegister(7)
	assert.NoError(err)
	assert.Equal(uint16(25734), value)

	assert.ErrorIs(engine.SetRegister(8, 1), ErrRegisterInvalid)

	table := [](struct {
		value uint16
		err   error
	}){
		{0, nil},
		{WORD_MASK, nil},
		{WORD_MASK + 1, ErrOperandInvalid},
		{40000, ErrOperandInvalid},
		{0xffff, ErrOperandInvalid},
	}

	for _, entry := range table {
		engine.Register[3] = 17
		err = engine.SetRegister(3, entry.value)
		if entry.err == nil {
			assert.NoError(err, entry.value)
			assert.Equal(entry.value, engine.Register[3], entry.value)
		} else {
			assert.ErrorIs(err, entry.err, entry.value)
			assert.Equal(uint16(17), engine.Register[3], entry.value)
		}
	}
	_, err = engine.GetRegister(-1)
	assert.ErrorIs(err, ErrRegisterInvalid)

	mem := engine.Memory()
	mem[0] = 1234
	value, _ = engine.Peek(0)
	assert.Equal(uint16(0), value)

	engine.Input("look\n")
	assert.Equal(5, engine.Pending())

	engine.AddBreakpoint(10)
	engine.Reset()
	assert.Equal(0, engine.Pending())
	assert.Equal(uint16(0), engine.Register[7])
	value, _ = engine.Peek(32767)
	assert.Equal(uint16(0), value)
	assert.True(engine.IsBreakpoint(10))

	assert.ErrorIs(engine.Load(make([]uint16, MEMORY_SIZE+1)), ErrImageSize)
}

func TestVM_ZeroValue(t *testing.T) {
	assert := assert.New(t)

	engine := &VM{}
	engine.AddBreakpoint(2)
	require.NoError(t, engine.Load([]uint16{uint16(OP_OUT), 'x', uint16(OP_HALT)}))

	reason, err := engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_BREAKPOINT, reason)

	reason, err = engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_HALT, reason)
}

func TestVM_Verbose(t *testing.T) {
	assert := assert.New(t)

	engine, _ := newTestVM(t, uint16(OP_NOOP), uint16(OP_HALT))
	engine.Verbose = true

	reason, err := engine.Run()
	assert.NoError(err)
	assert.Equal(REASON_HALT, reason)
	assert.Equal(2, engine.Ticks)
	assert.True(strings.HasPrefix(REASON_INPUT.String(), "awaiting"))
}

func TestReason_String(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		reason Reason
		expect string
	}){
		{REASON_NONE, "running"},
		{REASON_HALT, "halted"},
		{REASON_INPUT, "awaiting input"},
		{REASON_BREAKPOINT, "breakpoint"},
		{Reason(4), "Reason(4)"},
		{Reason(-1), "Reason(-1)"},
	}

	for _, entry := range table {
		assert.Equal(entry.expect, entry.reason.String())
	}
}

func TestVM_Decode(t *testing.T) {
	assert := assert.New(t)

	// noop; out 'a'; halt
	engine, _ := newTestVM(t, uint16(OP_NOOP), uint16(OP_OUT), 'a', uint16(OP_HALT))

	ins, err := engine.Decode(1)
	assert.NoError(err)
	assert.Equal(OP_OUT, ins.Op)
	assert.Equal(uint16(0), engine.Pc)

	// Decoding sees the live memory, not a snapshot.
	assert.NoError(engine.Poke(2, 'b'))
	ins, err = engine.Decode(1)
	assert.NoError(err)
	assert.Equal("out 98", ins.String())

	_, err = engine.Decode(MEMORY_SIZE)
	assert.ErrorIs(err, ErrAddressInvalid)
}
