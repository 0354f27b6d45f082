// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"reflect"
	"sort"

	"github.com/gomlx/pipegraph/pkg/core/schema"
	"github.com/x448/float16"
)

// Args are the keyword arguments of an operator, at construction or at call time.
// A nil value is the same as not passing the argument.
type Args map[string]any

// Reserved argument names with special classification.
const (
	ArgNameName = "name"
	ArgNameNDim = "ndim"
)

// argValue is the classification of one keyword argument. It is one of handleArg, constantArg or scalarArg.
type argValue interface {
	isArgValue()
}

// handleArg is an argument-input fed by an existing DataHandle.
type handleArg struct {
	handle *DataHandle
}

// constantArg is an argument-input given as a literal: it is promoted to a constant node when used.
type constantArg struct {
	value any
}

// scalarArg is a construction argument, stored in the node's spec.
type scalarArg struct {
	value any
}

func (handleArg) isArgValue()   {}
func (constantArg) isArgValue() {}
func (scalarArg) isArgValue()   {}

// classifiedArg is one keyword argument, after classification.
type classifiedArg struct {
	name  string
	value argValue
}

// isCallStyle returns whether the argument is an argument-input (as opposed to construction argument).
func (a classifiedArg) isCallStyle() bool {
	_, isScalar := a.value.(scalarArg)
	return !isScalar
}

var float16Type = reflect.TypeOf(float16.Float16(0))

// isScalarValue returns whether the value is of a recognized scalar type: bool, any int, uint, float or
// complex, including float16.
func isScalarValue(value any) bool {
	switch reflect.TypeOf(value).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

// isNil returns whether value is nil or a nil pointer.
func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// classifyArgs splits keyword arguments into construction arguments and argument-inputs, returning them
// sorted by name. The precedence of the rules is:
//
//  1. nil values are dropped.
//  2. "device" and "ndim" are construction arguments.
//  3. "name" is an argument-input, kept as a literal.
//  4. DataHandle's are argument-inputs.
//  5. strings, slices, arrays and ScalarConstant's (unwrapped to their value) are construction arguments.
//  6. recognized scalar types are construction arguments, anything else is an argument-input literal.
func classifyArgs(kwargs Args) []classifiedArg {
	classified := make([]classifiedArg, 0, len(kwargs))
	for name, value := range kwargs {
		if isNil(value) {
			continue
		}
		classified = append(classified, classifiedArg{name: name, value: classifyArg(name, value)})
	}
	sort.Slice(classified, func(i, j int) bool { return classified[i].name < classified[j].name })
	return classified
}

func classifyArg(name string, value any) argValue {
	switch name {
	case schema.ArgNameDevice, ArgNameNDim:
		if c, ok := value.(ScalarConstant); ok {
			value = c.Value
		}
		return scalarArg{value: value}
	case ArgNameName:
		return constantArg{value: value}
	}
	switch v := value.(type) {
	case *DataHandle:
		return handleArg{handle: v}
	case ScalarConstant:
		return scalarArg{value: v.Value}
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.String, reflect.Slice, reflect.Array:
		return scalarArg{value: value}
	}
	if isScalarValue(value) {
		return scalarArg{value: value}
	}
	return constantArg{value: value}
}
