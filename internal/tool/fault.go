package tool

import "fmt"

// Code identifies the kind of tool fault.
type Code string

const (
	CodeNotFound          Code = "not_found"
	CodeRateLimited       Code = "rate_limited"
	CodeUnauthorized      Code = "unauthorized"
	CodeTransientNetwork  Code = "transient_network_error"
	CodeInvalidParameters Code = "invalid_parameters"
	CodeCancelled         Code = "cancelled"
)

// Class says whether retrying a fault can help.
type Class int

const (
	Permanent Class = iota
	Transient
)

// Classify maps a fault code to its retry class. Rate limits and network
// errors are expected to clear on retry; everything else is not.
func Classify(code Code) Class {
	switch code {
	case CodeRateLimited, CodeTransientNetwork:
		return Transient
	default:
		return Permanent
	}
}

// Fault is a structured tool-call failure. It is always recoverable at the
// step level: the step executor converts it into a failed step result, never
// into a crash.
type Fault struct {
	Code    Code
	Tool    string
	Message string
}

func (f *Fault) Error() string {
	if f.Tool == "" {
		return fmt.Sprintf("%s: %s", f.Code, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.Tool, f.Code, f.Message)
}

// NewFault builds a Fault for the given tool and code.
func NewFault(toolName string, code Code, format string, args ...interface{}) *Fault {
	return &Fault{Code: code, Tool: toolName, Message: fmt.Sprintf(format, args...)}
}
