// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"math"
	"reflect"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/pipegraph/pkg/core/device"
	"github.com/gomlx/pipegraph/pkg/core/opspec"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// ConstantSchemaName is the schema name of the nodes created by the promotion of literals.
const ConstantSchemaName = "Constant"

// Number is the constraint for the generic scalar constructors.
type Number interface {
	constraints.Integer | constraints.Float
}

// ScalarConstant is a literal value with an explicit element type, not yet a node of the graph.
//
// As a keyword argument it is a construction argument (only its Value is used). As a positional input
// it is promoted to a constant node of the given DType.
type ScalarConstant struct {
	Value any
	DType dtypes.DType
}

// Scalar returns a ScalarConstant with the DType matching the Go type of value.
func Scalar[T Number](value T) ScalarConstant {
	return ScalarConstant{Value: value, DType: dtypeOf(reflect.TypeOf(value))}
}

// ScalarAs returns a ScalarConstant with the given DType, converting value when it is promoted.
func ScalarAs[T Number](value T, dtype dtypes.DType) ScalarConstant {
	return ScalarConstant{Value: value, DType: dtype}
}

// String implements fmt.Stringer.
func (c ScalarConstant) String() string {
	return fmt.Sprintf("%v:%s", c.Value, c.DType)
}

// Constant is an explicit tensor literal: Value is either a scalar or a slice with the
// product of Shape elements. If Shape is nil, it is inferred from the (possibly nested) Value.
// If DType is dtypes.InvalidDType, it is taken from the Go type of Value.
//
// As a keyword argument a Constant is always an argument-input.
type Constant struct {
	Value any
	Shape []int
	DType dtypes.DType
}

// constantData is the content of a promoted constant node.
type constantData struct {
	dtype dtypes.DType
	shape []int
	fdata []float32
	idata []int64
}

func (c *constantData) sizeBytes() int {
	return 4*len(c.fdata) + 8*len(c.idata)
}

// dtypeOf returns the DType of a Go scalar type, including float16.Float16.
func dtypeOf(t reflect.Type) dtypes.DType {
	if t == float16Type {
		return dtypes.Float16
	}
	return dtypes.FromGoType(t)
}

func isFloatDType(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64:
		return true
	}
	return false
}

func isIntegerDType(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Bool, dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
		dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64:
		return true
	}
	return false
}

// isLiteral returns whether a positional input value is something that can (possibly) be promoted to
// a constant node, as opposed to a value of the wrong type altogether.
func isLiteral(value any) bool {
	switch value.(type) {
	case ScalarConstant, Constant:
		return true
	}
	if isNil(value) {
		return false
	}
	if isScalarValue(value) {
		return true
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

// errUnsupportedConstant is returned by flattenConstant, and converted to an OpError by the caller.
type errUnsupportedConstant struct {
	goType reflect.Type
	reason string
}

func (e *errUnsupportedConstant) Error() string {
	return fmt.Sprintf("%s: %s", e.goType, e.reason)
}

// flattenConstant converts a literal to its constant data.
func flattenConstant(value any) (*constantData, error) {
	dtype := dtypes.InvalidDType
	var shape []int
	switch c := value.(type) {
	case ScalarConstant:
		value = c.Value
		dtype = c.DType
		if !isScalarValue(value) {
			return nil, &errUnsupportedConstant{goType: reflect.TypeOf(value), reason: "not a scalar"}
		}
	case Constant:
		value = c.Value
		dtype = c.DType
		if c.Shape != nil {
			shape = append([]int{}, c.Shape...)
		}
	}
	if isNil(value) {
		return nil, &errUnsupportedConstant{goType: reflect.TypeOf(value), reason: "nil value"}
	}

	// Collect the flat list of elements and, if not given, the shape.
	var elements []reflect.Value
	v := reflect.ValueOf(value)
	inferredShape, err := collectElements(v, &elements)
	if err != nil {
		return nil, err
	}
	if shape == nil {
		shape = inferredShape
	} else {
		size := 1
		for _, dim := range shape {
			size *= dim
		}
		if size != len(elements) {
			return nil, &errUnsupportedConstant{goType: v.Type(),
				reason: fmt.Sprintf("shape %v requires %d elements, got %d", shape, size, len(elements))}
		}
	}
	if dtype == dtypes.InvalidDType {
		if len(elements) == 0 {
			dtype = dtypeOf(elementType(v.Type()))
		} else {
			dtype = dtypeOf(elements[0].Type())
		}
	}
	data := &constantData{dtype: dtype, shape: shape}
	switch {
	case isFloatDType(dtype):
		data.fdata = make([]float32, 0, len(elements))
		for _, e := range elements {
			data.fdata = append(data.fdata, toFloat32(e))
		}
	case isIntegerDType(dtype):
		data.idata = make([]int64, 0, len(elements))
		for ii, e := range elements {
			iv, err := toInt64(e, dtype)
			if err != nil {
				return nil, &errUnsupportedConstant{goType: reflect.TypeOf(value),
					reason: fmt.Sprintf("element #%d: %v", ii, err)}
			}
			data.idata = append(data.idata, iv)
		}
	default:
		return nil, &errUnsupportedConstant{goType: reflect.TypeOf(value),
			reason: fmt.Sprintf("dtype %s is not supported for constants", dtype)}
	}
	return data, nil
}

// elementType returns the innermost element type of nested slices/arrays.
func elementType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	return t
}

// collectElements appends the scalar elements of v (possibly nested slices or arrays) to elements and
// returns the shape. Nested slices must not be ragged.
func collectElements(v reflect.Value, elements *[]reflect.Value) ([]int, error) {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		n := v.Len()
		var subShape []int
		for ii := 0; ii < n; ii++ {
			elemShape, err := collectElements(v.Index(ii), elements)
			if err != nil {
				return nil, err
			}
			if ii == 0 {
				subShape = elemShape
			} else if !equalShapes(subShape, elemShape) {
				return nil, &errUnsupportedConstant{goType: v.Type(),
					reason: fmt.Sprintf("ragged nested values: element #%d has shape %v, element #0 has shape %v",
						ii, elemShape, subShape)}
			}
		}
		return append([]int{n}, subShape...), nil
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		*elements = append(*elements, v)
		return []int{}, nil
	}
	if !v.IsValid() {
		return nil, &errUnsupportedConstant{goType: nil, reason: "nil element"}
	}
	return nil, &errUnsupportedConstant{goType: v.Type(), reason: "not a supported element type"}
}

func equalShapes(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for ii := range a {
		if a[ii] != b[ii] {
			return false
		}
	}
	return true
}

func toFloat32(v reflect.Value) float32 {
	if v.Type() == float16Type {
		return v.Interface().(float16.Float16).Float32()
	}
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float32(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float32(v.Uint())
	}
	return float32(v.Float())
}

// integerRange returns the range of values representable by an integer dtype in the int64 constant data.
func integerRange(dtype dtypes.DType) (minValue, maxValue int64) {
	switch dtype {
	case dtypes.Bool:
		return 0, 1
	case dtypes.Int8:
		return math.MinInt8, math.MaxInt8
	case dtypes.Int16:
		return math.MinInt16, math.MaxInt16
	case dtypes.Int32:
		return math.MinInt32, math.MaxInt32
	case dtypes.Uint8:
		return 0, math.MaxUint8
	case dtypes.Uint16:
		return 0, math.MaxUint16
	case dtypes.Uint32:
		return 0, math.MaxUint32
	case dtypes.Uint64:
		return 0, math.MaxInt64
	}
	return math.MinInt64, math.MaxInt64
}

// toInt64 converts one element to the given integer dtype. Values out of the dtype's range and
// non-integral floats are errors.
func toInt64(v reflect.Value, dtype dtypes.DType) (int64, error) {
	minValue, maxValue := integerRange(dtype)
	var iv int64
	switch {
	case v.Kind() == reflect.Bool:
		if v.Bool() {
			iv = 1
		}
	case v.Type() == float16Type || v.CanFloat():
		f := float64(toFloat32(v))
		if v.CanFloat() {
			f = v.Float()
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
			return 0, errors.Errorf("value %v is not an integer, required by %s", f, dtype)
		}
		// float64(math.MaxInt64) is 2^63: the upper bound is exclusive.
		if f < float64(minValue) || f >= float64(maxValue)+1 {
			return 0, errors.Errorf("value %v out of range for %s", f, dtype)
		}
		return int64(f), nil
	case v.CanInt():
		iv = v.Int()
	default:
		u := v.Uint()
		if u > uint64(maxValue) {
			return 0, errors.Errorf("value %d out of range for %s", u, dtype)
		}
		iv = int64(u)
	}
	if iv < minValue || iv > maxValue {
		return 0, errors.Errorf("value %d out of range for %s", iv, dtype)
	}
	return iv, nil
}

// newConstantNode creates (but doesn't commit) the node that produces the given literal on dev.
// op and where (input position or argument name) are only used for error messages.
func (b *Builder) newConstantNode(value any, dev device.Device, op, where string) (*Node, error) {
	data, err := flattenConstant(value)
	if err != nil {
		return nil, wrapOpError(err, ErrUnsupportedConstantType, nil, op, where,
			"can't promote value of type %T to a constant", value)
	}
	id := b.allocateID()
	spec := opspec.New(ConstantSchemaName)
	shape := make([]int64, len(data.shape))
	for ii, dim := range data.shape {
		shape[ii] = int64(dim)
	}
	_ = spec.AddArg("device", dev.String())
	_ = spec.AddArg("dtype", data.dtype)
	_ = spec.AddArg("shape", shape)
	if data.fdata != nil {
		_ = spec.AddArg("fdata", data.fdata)
	} else {
		_ = spec.AddArg("idata", data.idata)
	}
	node := &Node{
		id:         id,
		relationId: id,
		name:       fmt.Sprintf("__%s_%d", ConstantSchemaName, id),
		opName:     ConstantSchemaName,
		device:     dev,
		argInputs:  map[string]*DataHandle{},
		spec:       spec,
		constant:   data,
	}
	out := &DataHandle{name: node.name, device: dev, producer: node}
	node.outputs = []*DataHandle{out}
	spec.AddOutput(out.name, out.device)
	return node, nil
}
