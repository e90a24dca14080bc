package emulator

import (
	"bufio"
	"io"
)

// Tape provides line-oriented input and character output for the engine.
// Input is consumed a line at a time, as the engine asks for it.
type Tape struct {
	Input  io.Reader
	Output io.Writer

	reader *bufio.Reader
	source io.Reader
}

// Writer returns the output sink, or a discarding writer if none is set.
func (tc *Tape) Writer() io.Writer {
	if tc.Output == nil {
		return io.Discard
	}

	return tc.Output
}

// ReadLine returns the next line of input, including its newline.
// A final unterminated line is given a newline.
func (tc *Tape) ReadLine() (line string, err error) {
	if tc.Input == nil {
		err = io.EOF
		return
	}

	if tc.reader == nil || tc.source != tc.Input {
		tc.reader = bufio.NewReader(tc.Input)
		tc.source = tc.Input
	}

	line, err = tc.reader.ReadString('\n')
	if err == io.EOF && len(line) > 0 {
		line += "\n"
	}

	return
}
