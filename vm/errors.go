package vm

import (
	"errors"
	"fmt"
)

// Errors reported by the interpreter.
var (
	ErrInvalidOpcode      = errors.New("invalid opcode")
	ErrInvalidOperand     = errors.New("invalid instruction operand")
	ErrInvalidJump        = errors.New("jump out of script bounds")
	ErrStackUnderflow     = errors.New("stack underflow")
	ErrStackOverflow      = errors.New("stack item limit exceeded")
	ErrInvocationOverflow = errors.New("invocation stack limit exceeded")
	ErrInvalidIndex       = errors.New("index out of range")
	ErrInvalidType        = errors.New("invalid item type")
	ErrKeyNotFound        = errors.New("key not found")
	ErrItemTooLarge       = errors.New("item is too large")
	ErrIntegerTooLarge    = errors.New("integer is too large")
	ErrInvalidShift       = errors.New("invalid shift")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrAbort              = errors.New("ABORT")
	ErrAssert             = errors.New("ASSERT failed")
	ErrSlot               = errors.New("invalid slot access")
	ErrTry                = errors.New("invalid exception handling")
	ErrRVCount            = errors.New("return value count mismatch")
	ErrNoHost             = errors.New("no host to handle the instruction")
	ErrHalted             = errors.New("VM is not runnable")
)

// UnhandledError is a fault caused by an exception without matching CATCH.
type UnhandledError struct {
	// Message is the string representation of the thrown item.
	Message string
	// Err is the instruction failure raised as the exception, nil for THROW.
	Err error
}

// Error implements error interface.
func (e *UnhandledError) Error() string {
	return fmt.Sprintf("unhandled exception: %q", e.Message)
}

// Unwrap returns the failure raised as the exception.
func (e *UnhandledError) Unwrap() error {
	return e.Err
}

// CatchableError is an instruction failure raised as an exception, so it
// can be handled by TRY blocks like THROW.
type CatchableError struct {
	Err error
}

// Error implements error interface.
func (e *CatchableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the failure.
func (e *CatchableError) Unwrap() error {
	return e.Err
}

func catchable(err error) error {
	if err == nil {
		return nil
	}
	return &CatchableError{Err: err}
}
