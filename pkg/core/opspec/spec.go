// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package opspec holds Spec, the description of one node handed to the execution engine: the operator's
// schema name, its resolved arguments, and the names and devices of its inputs and outputs.
//
// A Spec is append-only: arguments, inputs and outputs can be added but never removed or replaced.
package opspec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomlx/pipegraph/pkg/core/device"
	"github.com/gomlx/pipegraph/pkg/core/schema"
	"github.com/pkg/errors"
)

// ErrArgumentAlreadySet is returned when the same argument is added twice to a Spec.
var ErrArgumentAlreadySet = errors.New("argument already set")

// Arg is one resolved argument. If EmptyListOf is not schema.ArgInvalid, the argument is an explicitly
// empty list of that element type, and Value is nil.
type Arg struct {
	Name        string
	Value       any
	EmptyListOf schema.ArgType
}

// IO is an input or output edge of a node: the data handle name and its device.
type IO struct {
	Name   string
	Device device.Device
}

// ArgumentInput binds an argument name to the name of the data handle feeding it.
type ArgumentInput struct {
	Arg   string
	Input string
}

// Spec of one node.
type Spec struct {
	schemaName     string
	args           []Arg
	argIndex       map[string]int
	inputs         []IO
	argumentInputs []ArgumentInput
	outputs        []IO
}

// New creates an empty Spec for the given schema.
func New(schemaName string) *Spec {
	return &Spec{
		schemaName: schemaName,
		argIndex:   make(map[string]int),
	}
}

// SchemaName of the operator.
func (s *Spec) SchemaName() string { return s.schemaName }

// Clone returns a copy that can be further appended to without affecting s.
func (s *Spec) Clone() *Spec {
	c := &Spec{
		schemaName:     s.schemaName,
		args:           append([]Arg(nil), s.args...),
		argIndex:       make(map[string]int, len(s.argIndex)),
		inputs:         append([]IO(nil), s.inputs...),
		argumentInputs: append([]ArgumentInput(nil), s.argumentInputs...),
		outputs:        append([]IO(nil), s.outputs...),
	}
	for k, v := range s.argIndex {
		c.argIndex[k] = v
	}
	return c
}

// AddArg sets the value of an argument. Setting the same argument twice is an error.
func (s *Spec) AddArg(name string, value any) error {
	return s.addArg(Arg{Name: name, Value: value})
}

// AddArgEmptyList sets an argument to an empty list of the given element type.
func (s *Spec) AddArgEmptyList(name string, elementType schema.ArgType) error {
	return s.addArg(Arg{Name: name, EmptyListOf: elementType})
}

func (s *Spec) addArg(arg Arg) error {
	if _, found := s.argIndex[arg.Name]; found {
		return errors.Wrapf(ErrArgumentAlreadySet, "operator %q argument %q", s.schemaName, arg.Name)
	}
	s.argIndex[arg.Name] = len(s.args)
	s.args = append(s.args, arg)
	return nil
}

// AddInput appends a positional (or argument) input.
func (s *Spec) AddInput(name string, dev device.Device) {
	s.inputs = append(s.inputs, IO{Name: name, Device: dev})
}

// AddArgumentInput binds the argument to the named data handle. The handle itself must also be
// added with AddInput.
func (s *Spec) AddArgumentInput(argName, inputName string) {
	s.argumentInputs = append(s.argumentInputs, ArgumentInput{Arg: argName, Input: inputName})
}

// AddOutput appends an output.
func (s *Spec) AddOutput(name string, dev device.Device) {
	s.outputs = append(s.outputs, IO{Name: name, Device: dev})
}

// HasArg returns whether the argument was set.
func (s *Spec) HasArg(name string) bool {
	_, found := s.argIndex[name]
	return found
}

// Arg returns the value of an argument. Empty lists are returned as nil.
func (s *Spec) Arg(name string) (value any, found bool) {
	idx, found := s.argIndex[name]
	if !found {
		return nil, false
	}
	return s.args[idx].Value, true
}

// Args returns the arguments in the order they were added.
func (s *Spec) Args() []Arg {
	return append([]Arg(nil), s.args...)
}

// ArgsMap returns the arguments as a map from name to value.
func (s *Spec) ArgsMap() map[string]any {
	m := make(map[string]any, len(s.args))
	for _, arg := range s.args {
		m[arg.Name] = arg.Value
	}
	return m
}

// Inputs returns the input edges in order: positional inputs first, argument inputs after.
func (s *Spec) Inputs() []IO { return append([]IO(nil), s.inputs...) }

// ArgumentInputs returns the argument-input bindings in the order they were added.
func (s *Spec) ArgumentInputs() []ArgumentInput {
	return append([]ArgumentInput(nil), s.argumentInputs...)
}

// Outputs returns the output edges.
func (s *Spec) Outputs() []IO { return append([]IO(nil), s.outputs...) }

// String implements fmt.Stringer, with the arguments sorted by name.
func (s *Spec) String() string {
	args := s.Args()
	sort.Slice(args, func(i, j int) bool { return args[i].Name < args[j].Name })
	argParts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg.EmptyListOf != schema.ArgInvalid {
			argParts = append(argParts, fmt.Sprintf("%s=[]%s", arg.Name, arg.EmptyListOf))
			continue
		}
		argParts = append(argParts, fmt.Sprintf("%s=%v", arg.Name, arg.Value))
	}
	ioStr := func(ios []IO) string {
		parts := make([]string, len(ios))
		for ii, io := range ios {
			parts[ii] = fmt.Sprintf("%s(%s)", io.Name, io.Device)
		}
		return strings.Join(parts, ", ")
	}
	argInputParts := make([]string, len(s.argumentInputs))
	for ii, ai := range s.argumentInputs {
		argInputParts[ii] = ai.Arg + "<-" + ai.Input
	}
	return fmt.Sprintf("%s(%s) inputs=[%s] arg_inputs=[%s] outputs=[%s]", s.schemaName,
		strings.Join(argParts, ", "), ioStr(s.inputs), strings.Join(argInputParts, ", "), ioStr(s.outputs))
}
