// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package debugger implements the interactive debug shell for the synvm
// engine. Lines starting with '$' are debugger commands; all other lines
// are queued as program input, and the program is resumed.
package debugger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/ezrec/synvm/config"
	"github.com/ezrec/synvm/disasm"
	"github.com/ezrec/synvm/emulator"
	"github.com/ezrec/synvm/vm"
)

const (
	PREFIX         = "$"
	DISASM_DEFAULT = 10 // Instructions listed by a bare '$ disasm'.
)

// Debugger drives an emulator from debug shell lines.
type Debugger struct {
	Verbose bool // If set, logs each command.

	Emu *emulator.Emulator // Emulator under control.
	Out io.Writer          // Destination of debugger reports.

	Reason vm.Reason // Why the engine last returned control.
}

// NewDebugger creates a debugger for an emulator.
func NewDebugger(emu *emulator.Emulator, out io.Writer) (dbg *Debugger) {
	if out == nil {
		out = io.Discard
	}

	dbg = &Debugger{
		Emu: emu,
		Out: out,
	}

	return
}

// Apply applies a session configuration to the engine, and plays its
// input script.
func (dbg *Debugger) Apply(cfg *config.Config) (err error) {
	engine := dbg.Emu.VM

	regs, err := cfg.RegisterValues()
	if err != nil {
		return
	}
	for index, value := range regs {
		err = engine.SetRegister(index, value)
		if err != nil {
			return
		}
	}

	for _, patch := range cfg.Patches {
		for n, value := range patch.Values {
			err = engine.Poke(patch.Address+uint16(n), value)
			if err != nil {
				return
			}
		}
	}

	for _, addr := range cfg.Breakpoints {
		engine.AddBreakpoint(addr)
	}

	engine.SetOutputEnabled(cfg.OutputEnabled())

	for _, line := range cfg.Script {
		_, err = dbg.Execute(line)
		if err != nil {
			return
		}
	}

	return
}

// Execute runs a single line of debugger input.
func (dbg *Debugger) Execute(line string) (exit bool, err error) {
	if dbg.Verbose {
		log.Printf("debugger: %q", line)
	}

	words := strings.Fields(line)
	if len(words) == 0 || words[0] != PREFIX {
		dbg.Emu.VM.Input(strings.TrimRight(line, "\r\n") + "\n")
		err = dbg.Resume()
		return
	}

	words = words[1:]
	if len(words) == 0 {
		err = &ErrCommand{Command: "", Err: ErrCommandMissing}
		return
	}

	exit, err = dbg.command(words[0], words[1:])
	if err != nil && !errors.As(err, new(*emulator.ErrRuntime)) {
		err = &ErrCommand{Command: words[0], Err: err}
	}

	return
}

// Halted is true when the program has executed a halt, and has not been
// moved since with '$ set_pc'.
func (dbg *Debugger) Halted() bool {
	return dbg.Reason == vm.REASON_HALT
}

// Resume runs the engine until it suspends, and reports why.
func (dbg *Debugger) Resume() (err error) {
	reason, err := dbg.Emu.Run()
	dbg.Reason = reason
	if err != nil {
		return
	}

	dbg.report(reason)
	return
}

// report prints a suspension that needs the user's attention.
func (dbg *Debugger) report(reason vm.Reason) {
	switch reason {
	case vm.REASON_BREAKPOINT:
		fmt.Fprintf(dbg.Out, "breakpoint at %d\n", dbg.Emu.VM.Pc)
	case vm.REASON_HALT:
		fmt.Fprintf(dbg.Out, "halted at %d\n", dbg.Emu.VM.Pc-1)
	}
}

// wantArgs checks the argument count of a command.
func wantArgs(args []string, least, most int) (err error) {
	if len(args) < least || len(args) > most {
		err = ErrArgumentCount
	}
	return
}

// parseWord parses a 16-bit value in any Go integer syntax.
func parseWord(word string) (value uint16, err error) {
	v64, err := strconv.ParseUint(word, 0, 16)
	if err != nil {
		err = errors.Join(ErrArgumentInvalid, err)
		return
	}

	value = uint16(v64)
	return
}

// parseRegister parses a register index, as either '7' or 'r7'.
func parseRegister(word string) (index int, err error) {
	value, err := parseWord(strings.TrimPrefix(word, "r"))
	if err != nil {
		return
	}

	if value >= vm.REGISTER_COUNT {
		err = vm.ErrRegisterInvalid
		return
	}

	index = int(value)
	return
}

// command executes a '$' command.
func (dbg *Debugger) command(name string, args []string) (exit bool, err error) {
	engine := dbg.Emu.VM
	out := dbg.Out

	switch name {
	case "exit", "quit":
		err = wantArgs(args, 0, 0)
		exit = err == nil
	case "continue":
		err = wantArgs(args, 0, 0)
		if err != nil {
			return
		}
		err = dbg.Resume()
	case "add_breakpoint", "remove_breakpoint":
		err = wantArgs(args, 1, 1)
		if err != nil {
			return
		}
		var addr uint16
		addr, err = parseWord(args[0])
		if err != nil {
			return
		}
		if name == "add_breakpoint" {
			engine.AddBreakpoint(addr)
		} else if !engine.RemoveBreakpoint(addr) {
			err = ErrArgumentInvalid
		}
	case "breakpoints":
		err = wantArgs(args, 0, 0)
		if err != nil {
			return
		}
		for addr := range engine.Breakpoints() {
			fmt.Fprintf(out, "%d\n", addr)
		}
	case "set_memory":
		err = wantArgs(args, 2, 2)
		if err != nil {
			return
		}
		var addr, value uint16
		addr, err = parseWord(args[0])
		if err != nil {
			return
		}
		value, err = parseWord(args[1])
		if err != nil {
			return
		}
		err = engine.Poke(addr, value)
	case "get_memory":
		err = wantArgs(args, 1, 1)
		if err != nil {
			return
		}
		var addr, value uint16
		addr, err = parseWord(args[0])
		if err != nil {
			return
		}
		value, err = engine.Peek(addr)
		if err != nil {
			return
		}
		fmt.Fprintf(out, "m[%d] = %d\n", addr, value)
	case "set_register":
		err = wantArgs(args, 2, 2)
		if err != nil {
			return
		}
		var index int
		var value uint16
		index, err = parseRegister(args[0])
		if err != nil {
			return
		}
		value, err = parseWord(args[1])
		if err != nil {
			return
		}
		err = engine.SetRegister(index, value)
	case "registers":
		err = wantArgs(args, 0, 0)
		if err != nil {
			return
		}
		fmt.Fprint(out, engine.String())
	case "set_pc":
		err = wantArgs(args, 1, 1)
		if err != nil {
			return
		}
		var addr uint16
		addr, err = parseWord(args[0])
		if err != nil {
			return
		}
		engine.Pc = addr
		dbg.Reason = vm.REASON_NONE
	case "pc":
		err = wantArgs(args, 0, 0)
		if err != nil {
			return
		}
		fmt.Fprintf(out, "%d\n", engine.Pc)
	case "stack":
		err = wantArgs(args, 0, 0)
		if err != nil {
			return
		}
		for depth, value := range engine.Stack.All() {
			fmt.Fprintf(out, "%d: %d\n", depth, value)
		}
	case "output":
		err = wantArgs(args, 1, 1)
		if err != nil {
			return
		}
		switch args[0] {
		case "on":
			engine.SetOutputEnabled(true)
		case "off":
			engine.SetOutputEnabled(false)
		default:
			err = ErrArgumentInvalid
		}
	case "step":
		err = wantArgs(args, 0, 1)
		if err != nil {
			return
		}
		count := uint16(1)
		if len(args) == 1 {
			count, err = parseWord(args[0])
			if err != nil {
				return
			}
		}
		err = dbg.step(int(count))
	case "disasm":
		err = wantArgs(args, 0, 2)
		if err != nil {
			return
		}
		addr := engine.Pc
		count := uint16(DISASM_DEFAULT)
		if len(args) > 0 {
			addr, err = parseWord(args[0])
			if err != nil {
				return
			}
		}
		if len(args) > 1 {
			count, err = parseWord(args[1])
			if err != nil {
				return
			}
		}
		for _, ln := range disasm.Count(engine.Memory(), addr, int(count)) {
			fmt.Fprintln(out, ln)
		}
	case "string":
		err = wantArgs(args, 1, 1)
		if err != nil {
			return
		}
		var addr uint16
		addr, err = parseWord(args[0])
		if err != nil {
			return
		}
		var str string
		str, err = disasm.String(engine.Memory(), addr)
		if err != nil {
			return
		}
		fmt.Fprintf(out, "%q\n", str)
	default:
		err = ErrCommandUnknown
	}

	return
}

// step executes up to count instructions, listing each before it runs.
func (dbg *Debugger) step(count int) (err error) {
	engine := dbg.Emu.VM

	for range count {
		if ln, ok := disasm.At(engine, engine.Pc); ok {
			fmt.Fprintln(dbg.Out, ln)
		}

		var reason vm.Reason
		reason, err = dbg.Emu.Step()
		dbg.Reason = reason
		if err != nil {
			return
		}
		if reason != vm.REASON_NONE {
			dbg.report(reason)
			return
		}
	}

	return
}
