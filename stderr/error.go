package stderr

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// StdError carries the stack captured where an unexpected error first
// crossed a package boundary.
type StdError struct {
	err    error
	stacks string
}

func (e *StdError) Error() string {
	return fmt.Sprintf("err:%v\nstacks:%s", e.err, e.stacks)
}

func (e *StdError) Unwrap() error {
	return e.err
}

// Stacks returns the captured stack trace.
func (e *StdError) Stacks() string {
	return e.stacks
}

func New(s string) error {
	return Wrap(errors.New(s))
}

func Errorf(format string, args ...any) error {
	return Wrap(fmt.Errorf(format, args...))
}

// Wrap attaches a stack to err. Already wrapped errors are returned as is.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var se *StdError
	if errors.As(err, &se) {
		return err
	}
	return &StdError{
		err:    err,
		stacks: getStack(),
	}
}

func getStack() string {
	return string(debug.Stack())
}
