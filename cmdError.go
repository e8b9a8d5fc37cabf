package paper_cmdline

import (
	"errors"
	"fmt"
)

const (
	ErrorKindEmptyInput errorKind = iota
	ErrorKindUnrecognizedCommand
	ErrorKindInvalidArguments
	ErrorKindInvalidCacheSize
	ErrorKindInvalidTtl
	ErrorKindInvalidPolicy
	ErrorKindDisconnected
	ErrorKindInterrupted
	ErrorKindInternal
)

type (
	errorKind int

	// CommandError is the closed set of failures the shell reports. Two
	// CommandError values match under errors.Is when their kinds match, so
	// callers compare against the Err* values below regardless of the
	// command name or detail attached.
	CommandError struct {
		Kind    errorKind
		Command string // set for ErrorKindInvalidArguments
		Detail  string // optional, shown after the message for ErrorKindInternal
	}
)

var (
	ErrEmptyInput          = &CommandError{Kind: ErrorKindEmptyInput}
	ErrUnrecognizedCommand = &CommandError{Kind: ErrorKindUnrecognizedCommand}
	ErrInvalidArguments    = &CommandError{Kind: ErrorKindInvalidArguments}
	ErrInvalidCacheSize    = &CommandError{Kind: ErrorKindInvalidCacheSize}
	ErrInvalidTtl          = &CommandError{Kind: ErrorKindInvalidTtl}
	ErrInvalidPolicy       = &CommandError{Kind: ErrorKindInvalidPolicy}
	ErrDisconnected        = &CommandError{Kind: ErrorKindDisconnected}
	ErrInterrupted         = &CommandError{Kind: ErrorKindInterrupted}
	ErrInternal            = &CommandError{Kind: ErrorKindInternal}
)

func invalidArguments(command string) error {
	return &CommandError{Kind: ErrorKindInvalidArguments, Command: command}
}

func internalError(format string, args ...any) error {
	return &CommandError{Kind: ErrorKindInternal, Detail: fmt.Sprintf(format, args...)}
}

func (e *CommandError) Error() string {
	switch e.Kind {
	case ErrorKindEmptyInput:
		return "please enter a command"
	case ErrorKindUnrecognizedCommand:
		return "command not recognized"
	case ErrorKindInvalidArguments:
		return fmt.Sprintf("invalid arguments for <%s> command", e.Command)
	case ErrorKindInvalidCacheSize:
		return "invalid cache size"
	case ErrorKindInvalidTtl:
		return "invalid TTL"
	case ErrorKindInvalidPolicy:
		return "invalid policy"
	case ErrorKindDisconnected:
		return "disconnected"
	case ErrorKindInterrupted:
		return "closing connection"
	default:
		if e.Detail != "" {
			return "internal error: " + e.Detail
		}
		return "internal error"
	}
}

func (e *CommandError) Is(target error) bool {
	var ce *CommandError
	if !errors.As(target, &ce) {
		return false
	}
	return ce.Kind == e.Kind
}

// IsRecoverable reports whether the read loop should continue after err.
// Input errors and decode failures are recoverable; interrupts,
// disconnects and terminal failures are not.
func IsRecoverable(err error) bool {
	var ce *CommandError
	if !errors.As(err, &ce) {
		return false
	}

	switch ce.Kind {
	case ErrorKindEmptyInput, ErrorKindUnrecognizedCommand, ErrorKindInvalidArguments,
		ErrorKindInvalidCacheSize, ErrorKindInvalidTtl, ErrorKindInvalidPolicy:
		return true
	}
	return false
}
