package ir

import "fmt"

// DebugContext carries the source position a fallible check was performed
// at. The front end is responsible for populating it; checks made deep in
// the IR or a backend that have no meaningful position pass a zero value
// and rely on the message alone.
type DebugContext struct {
	File   string
	Line   int
	Column int
}

// Error is the error type the ir package's own checks return (for example
// AccessPath.ResultType); the other packages report errors with
// fmt.Errorf. It renders as spec's "In column C at line L[ in F]: <message>".
type Error struct {
	Context DebugContext
	Message string
}

func (e *Error) Error() string {
	if e.Context.File != "" {
		return fmt.Sprintf("In column %d at line %d in %s: %s", e.Context.Column, e.Context.Line, e.Context.File, e.Message)
	}
	return fmt.Sprintf("In column %d at line %d: %s", e.Context.Column, e.Context.Line, e.Message)
}

// Errorf builds an *Error at ctx with a formatted message.
func Errorf(ctx DebugContext, format string, args ...any) *Error {
	return &Error{Context: ctx, Message: fmt.Sprintf(format, args...)}
}
