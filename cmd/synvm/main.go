// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/ezrec/synvm/config"
	"github.com/ezrec/synvm/debugger"
	"github.com/ezrec/synvm/emulator"
	"github.com/ezrec/synvm/translate"
	"github.com/ezrec/synvm/vm"
)

const historyFile = ".synvm_history"

func main() {
	var compile string
	var image string
	var save bool
	var output string
	var session string
	var debug bool
	var verbose bool
	var lang string

	flag.StringVar(&compile, "c", "", ".asm file to assemble")
	flag.StringVar(&image, "i", "", "binary image to load")
	flag.BoolVar(&save, "s", false, "Save assembled image to -o, do not execute")
	flag.StringVar(&output, "o", "out.bin", "Assembled image output")
	flag.StringVar(&session, "config", "", "session file (default: nearest "+config.FILENAME+")")
	flag.BoolVar(&debug, "d", false, "Interactive debugger")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.StringVar(&lang, "lang", "", "message languages, comma separated (default: $"+translate.ENV_LANG+" or host locale)")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if save && len(compile) == 0 {
		log.Fatalf("%v: -s requires -c", os.Args[0])
	}

	if len(lang) != 0 {
		translate.SetLanguage(strings.Split(lang, ",")...)
	}
	if verbose {
		log.Printf("%v: language %v", os.Args[0], translate.Language())
	}

	var cfg *config.Config
	var err error
	if len(session) != 0 {
		cfg, err = config.Load(session)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	emu.Tape.Output = os.Stdout

	switch {
	case len(compile) != 0:
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		asm := &vm.Assembler{Verbose: verbose}
		for key, value := range emu.Defines() {
			asm.Predefine(key, value)
		}
		emu.Program, err = asm.Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}

		if save {
			ouf, err := os.Create(output)
			if err != nil {
				log.Fatalf("%v: %v", output, err)
			}
			err = vm.WriteImage(ouf, emu.Program.Binary())
			if err == nil {
				err = ouf.Close()
			}
			if err != nil {
				log.Fatalf("%v: %v", output, err)
			}
			return
		}

		err = emu.Reset()
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
	default:
		if len(image) == 0 && cfg != nil {
			image = cfg.ImagePath()
		}
		if len(image) == 0 {
			log.Fatalf("%v: no image given (-i or %v)", os.Args[0], config.FILENAME)
		}
		inf, err := os.Open(image)
		if err != nil {
			log.Fatalf("%v: %v", image, err)
		}
		err = emu.LoadImage(inf)
		inf.Close()
		if err != nil {
			log.Fatalf("%v: %v", image, err)
		}
	}

	dbg := debugger.NewDebugger(emu, os.Stderr)
	dbg.Verbose = verbose

	if cfg != nil {
		err = dbg.Apply(cfg)
		if err != nil {
			log.Fatalf("%v: %v", os.Args[0], err)
		}
	}

	if debug {
		shell(dbg)
		return
	}

	if dbg.Halted() {
		return
	}

	emu.Tape.Input = os.Stdin
	reason, err := emu.Play()
	if err != nil {
		log.Fatal(err)
	}
	if reason == vm.REASON_BREAKPOINT {
		fmt.Fprintf(os.Stderr, "breakpoint at %d\n", emu.VM.Pc)
	}
}

// shell runs the interactive debugger until '$ exit' or end of input.
func shell(dbg *debugger.Debugger) {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	// Show the program's greeting before the first prompt.
	if !dbg.Halted() {
		err := dbg.Resume()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	for {
		line, err := ln.Prompt("")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}

		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}

		exit, err := dbg.Execute(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		if exit {
			return
		}
	}
}
