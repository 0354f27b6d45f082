// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/pipegraph/pkg/core/device"
	"github.com/gomlx/pipegraph/pkg/core/schema"
	"github.com/pkg/errors"
)

// ArithmeticSchemaName is the operator that evaluates arithmetic expressions.
const ArithmeticSchemaName = "ArithmeticGenericOp"

// arithmeticTypeDesc are the type names used in the expression descriptions.
var arithmeticTypeDesc = map[dtypes.DType]string{
	dtypes.Bool:    "bool",
	dtypes.Int8:    "int8",
	dtypes.Int16:   "int16",
	dtypes.Int32:   "int32",
	dtypes.Int64:   "int64",
	dtypes.Uint8:   "uint8",
	dtypes.Uint16:  "uint16",
	dtypes.Uint32:  "uint32",
	dtypes.Uint64:  "uint64",
	dtypes.Float16: "float16",
	dtypes.Float32: "float32",
	dtypes.Float64: "float64",
}

// arithmeticConstant returns the dtype of a constant input of an arithmetic expression.
// Go int and float64 (the types of untyped constants) are taken as int32 and float32.
func arithmeticConstant(value any) (dtypes.DType, any, bool) {
	switch v := value.(type) {
	case ScalarConstant:
		if _, found := arithmeticTypeDesc[v.DType]; found && isScalarValue(v.Value) {
			return v.DType, v.Value, true
		}
		if v.DType == dtypes.InvalidDType && isScalarValue(v.Value) {
			return arithmeticConstant(v.Value)
		}
		return dtypes.InvalidDType, nil, false
	case int:
		return dtypes.Int32, v, true
	case float64:
		return dtypes.Float32, v, true
	}
	if value == nil || !isScalarValue(value) {
		return dtypes.InvalidDType, nil, false
	}
	dtype := dtypeOf(reflect.TypeOf(value))
	if _, found := arithmeticTypeDesc[dtype]; !found {
		return dtypes.InvalidDType, nil, false
	}
	return dtype, value, true
}

// Arithmetic creates an ArithmeticGenericOp node evaluating the function name (e.g. "add", "mul")
// over the given inputs, which can be *DataHandle's or scalar constants.
//
// Constants are grouped into integer and real constants, and the expression description refers to
// each input by its category and index, e.g. "add(&0 $0:int32)". The operator runs on gpu if any of
// the handles is on gpu, in which case the handles on cpu are transferred first.
//
// Like Operator.Call, it is atomic: on error, not even the transfer nodes are added to the Graph.
func (b *Builder) Arithmetic(name string, inputs ...any) (*Result, error) {
	var (
		edges    []*DataHandle
		integers []int64
		reals    []float32
		descs    []string
	)
	for ii, input := range inputs {
		if h, ok := input.(*DataHandle); ok && h != nil {
			descs = append(descs, fmt.Sprintf("&%d", len(edges)))
			edges = append(edges, h)
			continue
		}
		dtype, value, ok := arithmeticConstant(input)
		if !ok {
			return nil, newOpError(ErrValidation, ErrInvalidInputType, ArithmeticSchemaName,
				fmt.Sprintf("input #%d", ii),
				"arithmetic inputs must be data handles or constants of type bool, int, float or ScalarConstant, "+
					"got %T", input)
		}
		if isFloatDType(dtype) {
			converted, err := schema.ArgFloat.Convert(value)
			if err != nil {
				return nil, errors.WithMessagef(err, "arithmetic input #%d", ii)
			}
			descs = append(descs, fmt.Sprintf("$%d:%s", len(reals), arithmeticTypeDesc[dtype]))
			reals = append(reals, converted.(float32))
		} else {
			if bv, isBool := value.(bool); isBool {
				value = 0
				if bv {
					value = 1
				}
			}
			converted, err := schema.ArgInt.Convert(value)
			if err != nil {
				return nil, errors.WithMessagef(err, "arithmetic input #%d", ii)
			}
			descs = append(descs, fmt.Sprintf("$%d:%s", len(integers), arithmeticTypeDesc[dtype]))
			integers = append(integers, converted.(int64))
		}
	}
	if len(edges) == 0 {
		return nil, newOpError(ErrValidation, ErrInputCount, ArithmeticSchemaName, "",
			"arithmetic expression %q requires at least one data handle", name)
	}

	dev := device.CPU
	for _, h := range edges {
		if h.device == device.GPU {
			dev = device.GPU
			break
		}
	}
	args := Args{
		schema.ArgNameDevice: dev,
		"expression_desc":    fmt.Sprintf("%s(%s)", name, strings.Join(descs, " ")),
	}
	if len(integers) > 0 {
		args["integer_constants"] = integers
	}
	if len(reals) > 0 {
		args["real_constants"] = reals
	}
	op, err := b.NewOperator(ArithmeticSchemaName, args)
	if err != nil {
		return nil, err
	}

	// Transfers and the expression node are committed together.
	var batches []*callBatch
	opInputs := make([]any, len(edges))
	for ii, h := range edges {
		if dev == device.GPU {
			var transfer *callBatch
			h, transfer, err = b.stageToGPU(h)
			if err != nil {
				return nil, err
			}
			if transfer != nil {
				batches = append(batches, transfer)
			}
		}
		opInputs[ii] = h
	}
	batch, err := op.stage(opInputs, nil)
	if err != nil {
		return nil, err
	}
	b.commitBatches(append(batches, batch)...)
	return batch.result, nil
}
