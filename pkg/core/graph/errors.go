// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/pipegraph/pkg/core/schema"
	"github.com/pkg/errors"
)

// Error kinds. Every error returned while constructing nodes matches (with errors.Is) exactly one of these.
var (
	// ErrConfiguration is the kind of errors in the operator configuration: duplicate or conflicting
	// argument names, unknown operators or arguments and values of the wrong type.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation is the kind of errors in how an operator is called: wrong number of inputs,
	// mismatched input sets, argument-inputs on arguments that don't accept them or inputs that are not data.
	ErrValidation = errors.New("validation error")

	// ErrUnsupportedConstantType is returned when a literal can't be promoted to a constant node.
	ErrUnsupportedConstantType = errors.New("unsupported constant type")

	// ErrGraphRequired is returned when an operator with side effects (preserve) is called without a Graph
	// to own its sinks.
	ErrGraphRequired = errors.New("graph required")
)

// Error reasons, matched with errors.Is in addition to the kind.
var (
	ErrDuplicateArgument          = errors.New("duplicate argument")
	ErrDeprecatedArgumentConflict = errors.New("deprecated argument conflict")
	ErrInvalidArgumentType        = errors.New("invalid argument type")
	ErrInputSetLengthMismatch     = errors.New("input set length mismatch")
	ErrInputCount                 = errors.New("invalid number of inputs")
	ErrInvalidInputType           = errors.New("invalid input type")
	ErrArgumentInputNotSupported  = errors.New("argument input not supported")
	ErrNoOutputs                  = errors.New("operator has no outputs")
	ErrMultipleInputSetsWithHook  = errors.New("multiple input sets not supported with a rewrite hook")

	// ErrUnknownSchema and ErrUnknownArgument are aliases to the schema package errors, so callers only
	// need to import this package.
	ErrUnknownSchema   = schema.ErrUnknownSchema
	ErrUnknownArgument = schema.ErrUnknownArgument
)

// OpError is the error returned by the construction of operators and nodes.
//
// It matches both its Kind and its Reason with errors.Is, and unwraps to its cause, if any.
type OpError struct {
	// Op is the name of the operator.
	Op string

	// Arg is the argument or input position the error refers to, if any.
	Arg string

	// Kind is one of ErrConfiguration, ErrValidation, ErrUnsupportedConstantType or ErrGraphRequired.
	Kind error

	// Reason is one of the ErrXXX reasons, or nil.
	Reason error

	msg   string
	cause error
}

// Error implements error.
func (e *OpError) Error() string {
	msg := fmt.Sprintf("%s: operator %s", e.Kind, e.Op)
	if e.Arg != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Arg)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.msg)
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Is matches the Kind and the Reason of the error.
func (e *OpError) Is(target error) bool {
	return target == e.Kind || (e.Reason != nil && target == e.Reason)
}

// Unwrap returns the underlying cause.
func (e *OpError) Unwrap() error { return e.cause }

// newOpError creates an OpError with a stack trace attached.
func newOpError(kind, reason error, op, arg, format string, args ...any) error {
	return errors.WithStack(&OpError{
		Op:     op,
		Arg:    arg,
		Kind:   kind,
		Reason: reason,
		msg:    fmt.Sprintf(format, args...),
	})
}

// wrapOpError is like newOpError, but with an underlying cause.
func wrapOpError(cause, kind, reason error, op, arg, format string, args ...any) error {
	return errors.WithStack(&OpError{
		Op:     op,
		Arg:    arg,
		Kind:   kind,
		Reason: reason,
		msg:    fmt.Sprintf(format, args...),
		cause:  cause,
	})
}
