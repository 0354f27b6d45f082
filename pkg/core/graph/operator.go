// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/gomlx/pipegraph/pkg/core/device"
	"github.com/gomlx/pipegraph/pkg/core/opspec"
	"github.com/gomlx/pipegraph/pkg/core/schema"
	"github.com/gomlx/pipegraph/pkg/support/sets"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Operator is one configured instance of an operator schema. It is created with Builder.NewOperator, and
// it can be called any number of times, each call creating new nodes.
//
// An Operator is immutable, and it is safe to call it concurrently.
type Operator struct {
	builder    *Builder
	schema     schema.View
	schemaName string
	opName     string
	device     device.Device
	preserve   bool

	// spec holds the resolved construction arguments (device and preserve included), and is cloned
	// for each node.
	spec *opspec.Spec

	// given is the set of argument names explicitly given at construction.
	given sets.Set[string]

	boundInputs map[string]argValue
	boundName   string
}

// opTypeName returns the part of the schema name after the last "__" (the module prefix), e.g.
// "decoders__Image" -> "Image".
func opTypeName(schemaName string) string {
	if idx := strings.LastIndex(schemaName, "__"); idx >= 0 {
		return schemaName[idx+2:]
	}
	return schemaName
}

// resolvedArg is a construction argument after deprecation remapping and conversion to its declared type.
type resolvedArg struct {
	name    string
	value   any
	emptyOf schema.ArgType
}

func (r resolvedArg) addTo(spec *opspec.Spec) error {
	if r.emptyOf != schema.ArgInvalid {
		return spec.AddArgEmptyList(r.name, r.emptyOf)
	}
	return spec.AddArg(r.name, r.value)
}

// NewOperator creates an Operator for the given schema, binding the construction arguments.
//
// Arguments are validated against the types declared by the schema, and deprecated arguments are
// remapped (with a DeprecationWarning). Argument-inputs (DataHandle's or literals given for tensor
// capable arguments) are bound to every call. The reserved arguments "device" (default "cpu") and
// "preserve" (default false, forced true for schemas that must never be pruned) configure the Operator.
//
// No node is created.
func (b *Builder) NewOperator(schemaName string, args Args) (*Operator, error) {
	view, err := b.schemas.Schema(schemaName)
	if err != nil {
		return nil, wrapOpError(err, ErrConfiguration, ErrUnknownSchema, schemaName, "", "failed to find schema")
	}
	op := &Operator{
		builder:     b,
		schema:      view,
		schemaName:  schemaName,
		opName:      opTypeName(schemaName),
		device:      device.CPU,
		given:       sets.Make[string](len(args)),
		boundInputs: make(map[string]argValue),
	}
	var construction []classifiedArg
	for _, arg := range classifyArgs(args) {
		op.given.Insert(arg.name)
		switch v := arg.value.(type) {
		case scalarArg:
			switch arg.name {
			case schema.ArgNameDevice:
				op.device, err = device.FromAny(v.value)
				if err != nil {
					return nil, wrapOpError(err, ErrConfiguration, ErrInvalidArgumentType, schemaName, arg.name,
						"invalid device")
				}
			case schema.ArgNamePreserve:
				preserve, ok := v.value.(bool)
				if !ok {
					return nil, newOpError(ErrConfiguration, ErrInvalidArgumentType, schemaName, arg.name,
						"preserve must be a bool, got %T", v.value)
				}
				op.preserve = preserve
			default:
				construction = append(construction, arg)
			}
		default:
			if arg.name == ArgNameName {
				op.boundName, err = nameFromArg(schemaName, v)
				if err != nil {
					return nil, err
				}
				continue
			}
			if !view.IsArgumentTensorCapable(arg.name) {
				return nil, argumentInputNotSupported(schemaName, arg.name)
			}
			op.boundInputs[arg.name] = v
		}
	}
	op.preserve = op.preserve || view.IsNoPrune()

	var warnings []DeprecationWarning
	resolved, err := op.resolveConstructionArgs(construction, func(string) bool { return false }, &warnings)
	if err != nil {
		return nil, err
	}
	op.spec = opspec.New(schemaName)
	_ = op.spec.AddArg(schema.ArgNameDevice, op.device.String())
	_ = op.spec.AddArg(schema.ArgNamePreserve, op.preserve)
	for _, r := range resolved {
		if err := r.addTo(op.spec); err != nil {
			return nil, wrapOpError(err, ErrConfiguration, ErrDuplicateArgument, schemaName, r.name,
				"argument given more than once")
		}
	}
	for _, w := range warnings {
		b.warnings.Warn(w)
	}
	klog.V(1).Infof("new operator %s", op)
	return op, nil
}

// MustNewOperator is like NewOperator, but panics on errors.
func (b *Builder) MustNewOperator(schemaName string, args Args) *Operator {
	return must.M1(b.NewOperator(schemaName, args))
}

func nameFromArg(op string, v argValue) (string, error) {
	if c, ok := v.(constantArg); ok {
		if name, ok := c.value.(string); ok {
			return name, nil
		}
		return "", newOpError(ErrConfiguration, ErrInvalidArgumentType, op, ArgNameName,
			"name must be a string, got %T", c.value)
	}
	return "", newOpError(ErrConfiguration, ErrInvalidArgumentType, op, ArgNameName,
		"name must be a string, got a data handle")
}

func argumentInputNotSupported(op, argName string) error {
	return newOpError(ErrValidation, ErrArgumentInputNotSupported, op, argName,
		"argument %q is not a tensor argument: it must be given a plain value, not a data handle", argName)
}

// resolveConstructionArgs applies deprecation remapping to the construction arguments and converts them
// to their declared types, returning them sorted by name. isTaken reports argument names already given
// elsewhere, which deprecated arguments must not be renamed to.
func (op *Operator) resolveConstructionArgs(args []classifiedArg, isTaken func(name string) bool,
	warnings *[]DeprecationWarning) ([]resolvedArg, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		values[arg.name] = arg.value.(scalarArg).value
	}
	for _, arg := range args {
		meta, deprecated := op.schema.DeprecatedArgument(arg.name)
		if !deprecated {
			continue
		}
		*warnings = append(*warnings, DeprecationWarning{
			Op:         op.schemaName,
			Arg:        arg.name,
			ReplacedBy: meta.RenamedTo,
			Removed:    meta.Removed,
			Message:    meta.Message,
		})
		switch {
		case meta.RenamedTo != "":
			_, found := values[meta.RenamedTo]
			if found || isTaken(meta.RenamedTo) {
				return nil, newOpError(ErrConfiguration, ErrDeprecatedArgumentConflict, op.schemaName, arg.name,
					"argument %q is a deprecated alias for %q, and both were given", arg.name, meta.RenamedTo)
			}
			values[meta.RenamedTo] = values[arg.name]
			delete(values, arg.name)
		case meta.Removed:
			delete(values, arg.name)
		}
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	resolved := make([]resolvedArg, 0, len(names))
	for _, name := range names {
		argType, err := op.schema.ArgumentType(name)
		if err != nil {
			return nil, wrapOpError(err, ErrConfiguration, ErrUnknownArgument, op.schemaName, name,
				"unknown argument")
		}
		value := values[name]
		if argType.IsList() && isEmptyList(value) {
			resolved = append(resolved, resolvedArg{name: name, emptyOf: argType.Element()})
			continue
		}
		converted, err := argType.Convert(value)
		if err != nil {
			return nil, wrapOpError(err, ErrConfiguration, ErrInvalidArgumentType, op.schemaName, name,
				"invalid value for argument of type %s", argType)
		}
		resolved = append(resolved, resolvedArg{name: name, value: converted})
	}
	return resolved, nil
}

func isEmptyList(value any) bool {
	v := reflect.ValueOf(value)
	return (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) && v.Len() == 0
}

// SchemaName returns the name of the schema of the operator.
func (op *Operator) SchemaName() string { return op.schemaName }

// Schema returns the schema of the operator.
func (op *Operator) Schema() schema.View { return op.schema }

// Device where the operator runs.
func (op *Operator) Device() device.Device { return op.device }

// Preserve returns whether the nodes of the operator are kept even if nothing consumes their outputs.
func (op *Operator) Preserve() bool { return op.preserve }

// ConstructionArgs returns the resolved construction arguments, including "device" and "preserve".
func (op *Operator) ConstructionArgs() map[string]any { return op.spec.ArgsMap() }

// BoundArgumentInputs returns the sorted names of the argument-inputs bound at construction.
func (op *Operator) BoundArgumentInputs() []string {
	names := make([]string, 0, len(op.boundInputs))
	for name := range op.boundInputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String implements fmt.Stringer.
func (op *Operator) String() string {
	return op.spec.String()
}

// Apply calls the operator with the given positional inputs and no keyword arguments.
func (op *Operator) Apply(inputs ...any) (*Result, error) {
	return op.Call(inputs, nil)
}

// MustApply is like Apply, but panics on errors.
func (op *Operator) MustApply(inputs ...any) *Result {
	return must.M1(op.Call(inputs, nil))
}

// MustCall is like Call, but panics on errors.
func (op *Operator) MustCall(inputs []any, kwargs Args) *Result {
	return must.M1(op.Call(inputs, kwargs))
}

// Call creates the nodes of one invocation of the operator, and returns their outputs.
//
// Each positional input can be a *DataHandle, a literal (a Go number, bool, slice of numbers,
// ScalarConstant or Constant, promoted to a constant node) or a list of handles ([]*DataHandle, or []any
// with handles and ScalarConstant's). Lists describe multiple input sets: one node is created per
// element, all sharing the same relation id. See Result.Value for how the outputs are packed.
//
// kwargs are classified as construction arguments (added to the nodes' specs) or argument-inputs
// (appended to the nodes' inputs, sorted by name). An argument already given when the operator
// was constructed can't be given again.
//
// The call is atomic: on error, nothing is added to the current Graph.
func (op *Operator) Call(inputs []any, kwargs Args) (*Result, error) {
	batch, err := op.stage(inputs, kwargs)
	if err != nil {
		return nil, err
	}
	op.builder.commitBatches(batch)
	return batch.result, nil
}

// callBatch holds the nodes created by one call, not yet added to the Graph.
type callBatch struct {
	// pending are the constant nodes promoted by the call.
	pending  []*Node
	nodes    []*Node
	sinks    []*DataHandle
	warnings []DeprecationWarning
	result   *Result
}

// stage runs all the steps of a call, except adding its nodes to the Graph.
func (op *Operator) stage(inputs []any, kwargs Args) (*callBatch, error) {
	b := op.builder
	if b.hook != nil {
		var err error
		inputs, kwargs, err = b.hook.Rewrite(inputs, kwargs)
		if err != nil {
			return nil, errors.WithMessagef(err, "rewrite hook failed for operator %s", op.schemaName)
		}
	}
	if len(inputs) < op.schema.MinInputs() || len(inputs) > op.schema.MaxInputs() {
		return nil, newOpError(ErrValidation, ErrInputCount, op.schemaName, "",
			"Operator %s expects from %d to %d inputs, but received %d.",
			op.opName, op.schema.MinInputs(), op.schema.MaxInputs(), len(inputs))
	}

	// Constant nodes created by this call, committed together with the operator nodes.
	var pending []*Node
	positionals := make([]positional, len(inputs))
	for ii, input := range inputs {
		var err error
		positionals[ii], err = op.preprocessInput(ii, input, &pending)
		if err != nil {
			return nil, err
		}
	}
	inputSets, err := expandInputSets(op.schemaName, positionals)
	if err != nil {
		return nil, err
	}
	if b.hook != nil && len(inputSets) > 1 {
		return nil, newOpError(ErrValidation, ErrMultipleInputSetsWithHook, op.schemaName, "",
			"%d input sets given, but multiple input sets are not supported with a rewrite hook installed",
			len(inputSets))
	}

	// Keyword arguments.
	var warnings []DeprecationWarning
	if op.schema.IsDeprecated() {
		warnings = append(warnings, DeprecationWarning{
			Op:         op.schemaName,
			ReplacedBy: op.schema.DeprecatedInFavorOf(),
			Message:    op.schema.DeprecationMessage(),
		})
	}
	callName, callArgs, argNames, argHandles, err := op.resolveCallArgs(kwargs, &pending, &warnings)
	if err != nil {
		return nil, err
	}

	// Create one node per input set.
	nodes := make([]*Node, len(inputSets))
	for setIdx, setInputs := range inputSets {
		id := b.allocateID()
		relationId := id
		if setIdx > 0 {
			relationId = nodes[0].id
		}
		spec := op.spec.Clone()
		for _, r := range callArgs {
			if err := r.addTo(spec); err != nil {
				return nil, wrapOpError(err, ErrConfiguration, ErrDuplicateArgument, op.schemaName, r.name,
					"argument given more than once")
			}
		}
		node := &Node{
			id:         id,
			relationId: relationId,
			name:       op.nodeName(callName, id, setIdx, len(inputSets)),
			opName:     op.schemaName,
			device:     op.device,
			preserve:   op.preserve,
			argInputs:  make(map[string]*DataHandle, len(argNames)),
			spec:       spec,
		}
		node.inputs = make([]*DataHandle, 0, len(setInputs)+len(argHandles))
		for _, h := range setInputs {
			node.inputs = append(node.inputs, h)
			spec.AddInput(h.name, h.device)
		}
		for ii, argName := range argNames {
			h := argHandles[ii]
			node.inputs = append(node.inputs, h)
			node.argInputs[argName] = h
			spec.AddInput(h.name, h.device)
			spec.AddArgumentInput(argName, h.name)
		}
		nodes[setIdx] = node
	}

	// Outputs are materialized only after all nodes of the call exist.
	var sinks []*DataHandle
	for _, node := range nodes {
		nodeSinks, err := op.generateOutputs(node)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, nodeSinks...)
	}

	return &callBatch{
		pending:  pending,
		nodes:    nodes,
		sinks:    sinks,
		warnings: warnings,
		result:   &Result{nodes: nodes},
	}, nil
}

// positionalDevice returns the device where literals given as the positional input #index are placed.
func (op *Operator) positionalDevice(index int) device.Device {
	if dev, found := op.schema.InputDevice(index); found {
		return dev
	}
	return op.device.DefaultInput()
}

func (op *Operator) invalidInput(index int, input any) error {
	return newOpError(ErrValidation, ErrInvalidInputType, op.schemaName, fmt.Sprintf("input #%d", index),
		"expected a *DataHandle, a list of them or a constant, got %v of type %T", input, input)
}

// preprocessInput converts one positional input to a positional, promoting literals to constant nodes
// (appended to pending).
func (op *Operator) preprocessInput(index int, input any, pending *[]*Node) (positional, error) {
	promote := func(value any) (*DataHandle, error) {
		node, err := op.builder.newConstantNode(value, op.positionalDevice(index), op.schemaName,
			fmt.Sprintf("input #%d", index))
		if err != nil {
			return nil, err
		}
		*pending = append(*pending, node)
		return node.outputs[0], nil
	}

	switch v := input.(type) {
	case *DataHandle:
		if v == nil {
			return positional{}, op.invalidInput(index, input)
		}
		return positional{handle: v}, nil
	case []*DataHandle:
		set := make([]*DataHandle, len(v))
		for jj, h := range v {
			if h == nil {
				return positional{}, op.invalidInput(index, input)
			}
			set[jj] = h
		}
		return positional{set: set}, nil
	case []any:
		if containsHandle(v) {
			set := make([]*DataHandle, len(v))
			for jj, e := range v {
				switch e := e.(type) {
				case *DataHandle:
					if e == nil {
						return positional{}, op.invalidInput(index, input)
					}
					set[jj] = e
				case ScalarConstant:
					h, err := promote(e)
					if err != nil {
						return positional{}, err
					}
					set[jj] = h
				default:
					return positional{}, op.invalidInput(index, input)
				}
			}
			return positional{set: set}, nil
		}
	}
	if !isLiteral(input) {
		return positional{}, op.invalidInput(index, input)
	}
	h, err := promote(input)
	if err != nil {
		return positional{}, err
	}
	return positional{handle: h}, nil
}

func containsHandle(values []any) bool {
	for _, v := range values {
		if _, ok := v.(*DataHandle); ok {
			return true
		}
	}
	return false
}

// resolveCallArgs classifies the call's keyword arguments and merges them with the ones bound at
// construction. It returns the node name given by the user (if any), the call-time construction
// arguments, and the sorted names of the argument-inputs with their handles. Argument-input literals
// are promoted once to constant nodes on cpu (appended to pending), shared by all input sets.
func (op *Operator) resolveCallArgs(kwargs Args, pending *[]*Node, warnings *[]DeprecationWarning) (
	callName string, callArgs []resolvedArg, argNames []string, argHandles []*DataHandle, err error) {
	callName = op.boundName
	argInputs := make(map[string]argValue, len(op.boundInputs)+len(kwargs))
	for name, v := range op.boundInputs {
		argInputs[name] = v
	}
	var scalars []classifiedArg
	for _, arg := range classifyArgs(kwargs) {
		if op.given.Has(arg.name) {
			err = newOpError(ErrConfiguration, ErrDuplicateArgument, op.schemaName, arg.name,
				"argument %q was already given when the operator was constructed", arg.name)
			return
		}
		if arg.name == schema.ArgNameDevice || arg.name == schema.ArgNamePreserve {
			err = newOpError(ErrConfiguration, ErrInvalidArgumentType, op.schemaName, arg.name,
				"argument %q can only be given when the operator is constructed", arg.name)
			return
		}
		if arg.name == ArgNameName {
			callName, err = nameFromArg(op.schemaName, arg.value)
			if err != nil {
				return
			}
			continue
		}
		switch v := arg.value.(type) {
		case scalarArg:
			scalars = append(scalars, arg)
		default:
			if !op.schema.IsArgumentTensorCapable(arg.name) {
				err = argumentInputNotSupported(op.schemaName, arg.name)
				return
			}
			argInputs[arg.name] = v
		}
	}

	isTaken := func(name string) bool {
		_, isArgInput := argInputs[name]
		return isArgInput || op.spec.HasArg(name)
	}
	callArgs, err = op.resolveConstructionArgs(scalars, isTaken, warnings)
	if err != nil {
		return
	}
	for _, r := range callArgs {
		if _, found := argInputs[r.name]; found || op.spec.HasArg(r.name) {
			err = newOpError(ErrConfiguration, ErrDuplicateArgument, op.schemaName, r.name,
				"argument %q given more than once", r.name)
			return
		}
	}

	argNames = make([]string, 0, len(argInputs))
	for name := range argInputs {
		argNames = append(argNames, name)
	}
	sort.Strings(argNames)
	argHandles = make([]*DataHandle, len(argNames))
	for ii, name := range argNames {
		switch v := argInputs[name].(type) {
		case handleArg:
			argHandles[ii] = v.handle
		case constantArg:
			var node *Node
			node, err = op.builder.newConstantNode(v.value, device.CPU, op.schemaName, name)
			if err != nil {
				return
			}
			*pending = append(*pending, node)
			argHandles[ii] = node.outputs[0]
		}
	}
	return
}

// nodeName returns the user given name, or the generated "__<OpType>_<id>". With multiple input sets,
// user given names are suffixed with the input set index, to keep them unique.
func (op *Operator) nodeName(userName string, id NodeId, setIdx, numSets int) string {
	if userName == "" {
		return fmt.Sprintf("__%s_%d", op.opName, id)
	}
	if numSets > 1 {
		return fmt.Sprintf("%s_%d", userName, setIdx)
	}
	return userName
}

// generateOutputs creates the output handles of the node, and returns the handles that must be
// registered as sinks.
func (op *Operator) generateOutputs(node *Node) ([]*DataHandle, error) {
	if op.preserve && op.builder.CurrentGraph() == nil {
		return nil, newOpError(ErrGraphRequired, nil, op.schemaName, "",
			"operator has side effects (preserve) but there is no current graph to own its sinks")
	}
	args := node.spec.ArgsMap()
	arity := op.schema.OutputArity(args) + op.schema.AdditionalOutputArity(args)
	outDevice := op.device.Output()
	if arity == 0 {
		if !op.preserve {
			return nil, newOpError(ErrValidation, ErrNoOutputs, op.schemaName, "",
				"operator has no outputs and is not preserved, so its nodes would have no effect")
		}
		node.sink = &DataHandle{
			name:     fmt.Sprintf("%s_id_%d_sink", op.opName, node.id),
			device:   outDevice,
			producer: node,
		}
		node.spec.AddOutput(node.sink.name, node.sink.device)
		return []*DataHandle{node.sink}, nil
	}
	node.outputs = make([]*DataHandle, arity)
	for ii := range node.outputs {
		name := node.name
		if arity > 1 {
			name = fmt.Sprintf("%s[%d]", node.name, ii)
		}
		node.outputs[ii] = &DataHandle{name: name, device: outDevice, producer: node}
		node.spec.AddOutput(name, outDevice)
	}
	if op.preserve {
		return node.Outputs(), nil
	}
	return nil, nil
}
