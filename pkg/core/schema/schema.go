// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package schema describes operators: how many inputs they take, which arguments they accept (and of which
// type), how many outputs they produce and which of their arguments are deprecated.
//
// The graph package only consumes schemas through the View interface. Schema is an in-memory implementation
// configured with cascading With* methods, Registry holds a collection of them, and the provider
// configuration (see NewProvider and NewWithConfig) allows selecting where schemas come from.
package schema

import (
	"sort"

	"github.com/gomlx/pipegraph/pkg/core/device"
	"github.com/pkg/errors"
)

var (
	// ErrUnknownSchema is returned when a provider doesn't know the requested operator.
	ErrUnknownSchema = errors.New("unknown operator schema")

	// ErrUnknownArgument is returned when an operator doesn't declare the requested argument.
	ErrUnknownArgument = errors.New("unknown argument")

	// ErrInvalidValue is returned when a value can't be converted to the declared argument type.
	ErrInvalidValue = errors.New("invalid argument value")
)

// Reserved arguments accepted by every operator.
const (
	ArgNameDevice   = "device"
	ArgNamePreserve = "preserve"
)

// DeprecatedArg holds the metadata of a deprecated argument.
//
// If RenamedTo is set, the value given to the deprecated argument is moved to the new name. If Removed is set,
// the value is dropped. Message is an optional explanation shown to the user.
type DeprecatedArg struct {
	RenamedTo string
	Removed   bool
	Message   string
}

// View is the read-only facade over the metadata of one operator.
type View interface {
	// Name of the schema, e.g.: "decoders__Image".
	Name() string

	// MinInputs and MaxInputs bound the number of positional inputs.
	MinInputs() int
	MaxInputs() int

	// ArgumentType returns the declared type of the argument, or an error wrapping ErrUnknownArgument.
	ArgumentType(name string) (ArgType, error)

	// IsArgumentTensorCapable returns whether the argument can be fed by a data handle (an argument-input).
	IsArgumentTensorCapable(name string) bool

	// InputDevice returns the device the positional input at index must be on, if the operator pins it.
	InputDevice(index int) (device.Device, bool)

	// OutputArity returns the number of regular outputs given the resolved arguments.
	OutputArity(args map[string]any) int

	// AdditionalOutputArity returns the number of extra outputs enabled by the resolved arguments.
	AdditionalOutputArity(args map[string]any) int

	// IsDeprecated returns whether the whole operator is deprecated. DeprecatedInFavorOf and
	// DeprecationMessage give the replacement and an explanation, both optional.
	IsDeprecated() bool
	DeprecatedInFavorOf() string
	DeprecationMessage() string

	// DeprecatedArgument returns the deprecation metadata of an argument, if it is deprecated.
	DeprecatedArgument(name string) (DeprecatedArg, bool)

	// IsNoPrune returns whether nodes of this operator must always be kept in the graph.
	IsNoPrune() bool
}

// Argument declared by a Schema.
type Argument struct {
	Name          string
	Type          ArgType
	TensorCapable bool
	Deprecated    *DeprecatedArg
}

// OutputsFn computes a number of outputs from the resolved arguments of a node.
type OutputsFn func(args map[string]any) int

// Schema is an in-memory View, configured with the With* methods.
//
// Configuration methods return the Schema itself, so they can be cascaded:
//
//	s := schema.New("Resize").WithInputs(1, 1).WithOutputs(1).
//		WithTensorArg("resize_x", schema.ArgFloat).
//		WithTensorArg("resize_y", schema.ArgFloat)
type Schema struct {
	name                 string
	minInputs, maxInputs int
	numOutputs           int
	outputsFn            OutputsFn
	additionalOutputsFn  OutputsFn
	args                 map[string]*Argument
	inputDevices         map[int]device.Device
	deprecated           bool
	inFavorOf            string
	deprecationMessage   string
	noPrune              bool
}

var _ View = (*Schema)(nil)

// New creates a Schema with the given name, taking exactly one input and producing one output.
func New(name string) *Schema {
	s := &Schema{
		name:         name,
		minInputs:    1,
		maxInputs:    1,
		numOutputs:   1,
		args:         make(map[string]*Argument),
		inputDevices: make(map[int]device.Device),
	}
	s.args[ArgNameDevice] = &Argument{Name: ArgNameDevice, Type: ArgString}
	s.args[ArgNamePreserve] = &Argument{Name: ArgNamePreserve, Type: ArgBool}
	return s
}

// WithInputs sets the bounds on the number of positional inputs.
func (s *Schema) WithInputs(minInputs, maxInputs int) *Schema {
	s.minInputs, s.maxInputs = minInputs, maxInputs
	return s
}

// WithOutputs sets a fixed number of outputs.
func (s *Schema) WithOutputs(numOutputs int) *Schema {
	s.numOutputs = numOutputs
	s.outputsFn = nil
	return s
}

// WithOutputsFn sets a function that computes the number of outputs from the resolved arguments.
func (s *Schema) WithOutputsFn(fn OutputsFn) *Schema {
	s.outputsFn = fn
	return s
}

// WithAdditionalOutputsFn sets a function that computes the number of additional outputs from the
// resolved arguments.
func (s *Schema) WithAdditionalOutputsFn(fn OutputsFn) *Schema {
	s.additionalOutputsFn = fn
	return s
}

// WithArg declares a plain (construction-time only) argument.
func (s *Schema) WithArg(name string, argType ArgType) *Schema {
	s.args[name] = &Argument{Name: name, Type: argType}
	return s
}

// WithTensorArg declares an argument that can also be fed by a data handle.
func (s *Schema) WithTensorArg(name string, argType ArgType) *Schema {
	s.args[name] = &Argument{Name: name, Type: argType, TensorCapable: true}
	return s
}

// WithDeprecatedArg declares a deprecated argument. If it is renamed, the type is taken from the new argument,
// so that one should be declared first.
func (s *Schema) WithDeprecatedArg(name string, argType ArgType, meta DeprecatedArg) *Schema {
	arg := &Argument{Name: name, Type: argType, Deprecated: &meta}
	if newArg, found := s.args[meta.RenamedTo]; found && meta.RenamedTo != "" {
		arg.Type = newArg.Type
		arg.TensorCapable = newArg.TensorCapable
	}
	s.args[name] = arg
	return s
}

// WithInputDevice pins the positional input at index to the given device.
func (s *Schema) WithInputDevice(index int, dev device.Device) *Schema {
	s.inputDevices[index] = dev
	return s
}

// Deprecate marks the whole operator as deprecated. Both inFavorOf and message are optional.
func (s *Schema) Deprecate(inFavorOf, message string) *Schema {
	s.deprecated = true
	s.inFavorOf = inFavorOf
	s.deprecationMessage = message
	return s
}

// WithNoPrune marks the operator as one that must never be removed from the graph.
func (s *Schema) WithNoPrune() *Schema {
	s.noPrune = true
	return s
}

// Name implements View.
func (s *Schema) Name() string { return s.name }

// MinInputs implements View.
func (s *Schema) MinInputs() int { return s.minInputs }

// MaxInputs implements View.
func (s *Schema) MaxInputs() int { return s.maxInputs }

// ArgumentType implements View.
func (s *Schema) ArgumentType(name string) (ArgType, error) {
	arg, found := s.args[name]
	if !found {
		return ArgInvalid, errors.Wrapf(ErrUnknownArgument, "operator %q has no argument %q", s.name, name)
	}
	return arg.Type, nil
}

// IsArgumentTensorCapable implements View.
func (s *Schema) IsArgumentTensorCapable(name string) bool {
	arg, found := s.args[name]
	return found && arg.TensorCapable
}

// InputDevice implements View.
func (s *Schema) InputDevice(index int) (device.Device, bool) {
	dev, found := s.inputDevices[index]
	return dev, found
}

// OutputArity implements View.
func (s *Schema) OutputArity(args map[string]any) int {
	if s.outputsFn != nil {
		return s.outputsFn(args)
	}
	return s.numOutputs
}

// AdditionalOutputArity implements View.
func (s *Schema) AdditionalOutputArity(args map[string]any) int {
	if s.additionalOutputsFn != nil {
		return s.additionalOutputsFn(args)
	}
	return 0
}

// IsDeprecated implements View.
func (s *Schema) IsDeprecated() bool { return s.deprecated }

// DeprecatedInFavorOf implements View.
func (s *Schema) DeprecatedInFavorOf() string { return s.inFavorOf }

// DeprecationMessage implements View.
func (s *Schema) DeprecationMessage() string { return s.deprecationMessage }

// DeprecatedArgument implements View.
func (s *Schema) DeprecatedArgument(name string) (DeprecatedArg, bool) {
	arg, found := s.args[name]
	if !found || arg.Deprecated == nil {
		return DeprecatedArg{}, false
	}
	return *arg.Deprecated, true
}

// IsNoPrune implements View.
func (s *Schema) IsNoPrune() bool { return s.noPrune }

// Arguments returns the declared arguments sorted by name.
func (s *Schema) Arguments() []Argument {
	args := make([]Argument, 0, len(s.args))
	for _, arg := range s.args {
		args = append(args, *arg)
	}
	sort.Slice(args, func(i, j int) bool { return args[i].Name < args[j].Name })
	return args
}
