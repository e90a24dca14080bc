package debugger

import (
	"errors"

	"github.com/ezrec/synvm/translate"
)

var f = translate.From

var (
	ErrCommandUnknown  = errors.New(f("unknown command"))
	ErrCommandMissing  = errors.New(f("command missing"))
	ErrArgumentCount   = errors.New(f("wrong number of arguments"))
	ErrArgumentInvalid = errors.New(f("argument invalid"))
)

// ErrCommand indicates which debugger command failed.
type ErrCommand struct {
	Command string
	Err     error
}

func (err *ErrCommand) Error() string {
	return f("$ %v: %v", err.Command, err.Err)
}

func (err *ErrCommand) Unwrap() error {
	return err.Err
}
