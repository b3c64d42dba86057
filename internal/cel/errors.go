// Copyright 2025 Certen Protocol

package cel

import "fmt"

// SyntaxError reports a tokenizer/parser failure at a byte offset, with an
// optional rendered trace (spec.md §4.4).
type SyntaxError struct {
	Offset  int
	Message string
	Trace   string
}

func (e *SyntaxError) Error() string {
	if e.Trace != "" {
		return fmt.Sprintf("cel: syntax error at %d: %s\n%s", e.Offset, e.Message, e.Trace)
	}
	return fmt.Sprintf("cel: syntax error at %d: %s", e.Offset, e.Message)
}

// UnrecognizedFunctionError reports a top-level function call other than
// default_certification.
type UnrecognizedFunctionError struct {
	Name string
}

func (e *UnrecognizedFunctionError) Error() string {
	return fmt.Sprintf("cel: unrecognized function %q", e.Name)
}

// MissingObjectPropertyError reports a required property absent from an
// object literal.
type MissingObjectPropertyError struct {
	Object   string
	Property string
}

func (e *MissingObjectPropertyError) Error() string {
	return fmt.Sprintf("cel: %s missing required property %q", e.Object, e.Property)
}

// ExtraneousPropertyError reports an object literal carrying a property it
// must not (e.g. both no_certification and certification).
type ExtraneousPropertyError struct {
	Object   string
	Property string
}

func (e *ExtraneousPropertyError) Error() string {
	return fmt.Sprintf("cel: %s has extraneous property %q", e.Object, e.Property)
}

// UnexpectedNodeTypeError reports a value of the wrong shape at a known
// grammar position (e.g. a string where an object was expected).
type UnexpectedNodeTypeError struct {
	Position string
	Want     string
	Got      string
}

func (e *UnexpectedNodeTypeError) Error() string {
	return fmt.Sprintf("cel: %s: expected %s, got %s", e.Position, e.Want, e.Got)
}
