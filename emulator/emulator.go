// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/synvm/vm"
)

var _emulator_defines = map[string]string{
	"EOL": fmt.Sprintf("%d", '\n'), // Terminates each line fed from the tape.
}

// Emulator state. Engine + program listing + tape.
type Emulator struct {
	Verbose bool        // If set, enables verbose logging.
	*vm.VM              // Reference to the execution engine.
	Program *vm.Program // Reference to the currently loaded program listing.

	Tape Tape // Tape of input lines and output characters.
}

// NewEmulator creates a new emulator.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		VM:      vm.NewVM(),
		Program: &vm.Program{},
	}

	return
}

// Defines returns an iterator over all of the defines.
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	defines := maps.Clone(_emulator_defines)
	maps.Insert(defines, emu.VM.Defines())

	return maps.All(defines)
}

// Reset the engine, and load the assembled program into it.
func (emu *Emulator) Reset() (err error) {
	emu.VM.Verbose = emu.Verbose
	emu.VM.Reset()
	emu.VM.Output = emu.Tape.Writer()

	if emu.Program == nil {
		return
	}

	err = emu.VM.Load(emu.Program.Binary())
	return
}

// LoadImage resets the engine, and loads a binary program image.
// The program listing is cleared.
func (emu *Emulator) LoadImage(r io.Reader) (err error) {
	words, err := vm.ReadImage(r)
	if err != nil {
		return
	}

	emu.Program = &vm.Program{}

	err = emu.Reset()
	if err != nil {
		return
	}

	err = emu.VM.Load(words)
	return
}

// LineNo returns the source line number for the current program counter.
func (emu *Emulator) LineNo() int {
	if emu.Program == nil {
		return 0
	}

	return emu.Program.LineNo(emu.VM.Pc)
}

// wrap annotates engine faults with the source location.
func (emu *Emulator) wrap(err error) error {
	var fault *vm.ErrFault
	if !errors.As(err, &fault) {
		return err
	}

	lineno := 0
	if emu.Program != nil {
		lineno = emu.Program.LineNo(fault.Addr)
	}

	return &ErrRuntime{Addr: fault.Addr, LineNo: lineno, Err: err}
}

// Step executes a single instruction.
func (emu *Emulator) Step() (reason vm.Reason, err error) {
	emu.VM.Verbose = emu.Verbose

	reason, err = emu.VM.Step()
	if err != nil {
		err = emu.wrap(err)
	}

	return
}

// Run runs the engine until it suspends.
func (emu *Emulator) Run() (reason vm.Reason, err error) {
	emu.VM.Verbose = emu.Verbose

	reason, err = emu.VM.Run()
	if err != nil {
		err = emu.wrap(err)
		return
	}

	if emu.Verbose {
		log.Printf("emulator: %v at %d", reason, emu.VM.Pc)
	}

	return
}

// Feed queues the next line of tape input. Returns false when the tape
// input is exhausted.
func (emu *Emulator) Feed() (ok bool, err error) {
	line, err := emu.Tape.ReadLine()
	if len(line) > 0 {
		emu.VM.Input(line)
		ok = true
	}

	if errors.Is(err, io.EOF) {
		err = nil
	}

	return
}

// Play runs the engine, feeding it a line of tape input whenever it is
// starved, until it halts, reaches a breakpoint, faults, or the tape input
// runs out.
func (emu *Emulator) Play() (reason vm.Reason, err error) {
	for {
		reason, err = emu.Run()
		if err != nil || reason != vm.REASON_INPUT {
			return
		}

		var ok bool
		ok, err = emu.Feed()
		if err != nil || !ok {
			return
		}
	}
}
