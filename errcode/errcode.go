package errcode

// Code is a stable, caller-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"            // transaction already in flight
	InvalidParams  Code = "invalid_params"  // bad address, empty read buffer, divisor out of range
	NotInitialised Code = "not_initialised" // operation before Init

	NoDevice        Code = "no_device"        // address phase not acknowledged
	Nak             Code = "nak"              // data byte not acknowledged before the end of the buffer
	ArbitrationLost Code = "arbitration_lost" // another master won the bus
	BusError        Code = "bus_error"        // illegal or undecodable hardware status
	Timeout         Code = "timeout"          // progress stagnated past the deadline

	Unsupported Code = "unsupported"
	Error       Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
