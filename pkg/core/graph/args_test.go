// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/pipegraph/pkg/core/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestClassifyArgs(t *testing.T) {
	h := &DataHandle{name: "h", device: device.CPU}
	var nilHandle *DataHandle
	classified := classifyArgs(Args{
		"missing":     nil,
		"nil_handle":  nilHandle,
		"device":      "gpu",
		"ndim":        ScalarConstant{Value: 2, DType: dtypes.Int32},
		"name":        "my_op",
		"resize_x":    h,
		"interp_type": 1,
		"crop":        []float64{0.5, 0.5},
		"label":       "a string",
		"scale":       Scalar(float32(2)),
		"half":        float16.Fromfloat32(0.5),
		"tensor":      Constant{Value: []float32{1, 2}},
		"array":       [2]int{1, 2},
		"other":       struct{}{},
	})

	byName := make(map[string]argValue, len(classified))
	var names []string
	for _, arg := range classified {
		byName[arg.name] = arg.value
		names = append(names, arg.name)
	}
	assert.Equal(t, []string{"array", "crop", "device", "half", "interp_type", "label", "name", "ndim",
		"other", "resize_x", "scale", "tensor"}, names)

	assert.Equal(t, scalarArg{value: "gpu"}, byName["device"])
	assert.Equal(t, scalarArg{value: 2}, byName["ndim"])
	assert.Equal(t, constantArg{value: "my_op"}, byName["name"])
	assert.Equal(t, handleArg{handle: h}, byName["resize_x"])
	assert.Equal(t, scalarArg{value: 1}, byName["interp_type"])
	assert.Equal(t, scalarArg{value: []float64{0.5, 0.5}}, byName["crop"])
	assert.Equal(t, scalarArg{value: "a string"}, byName["label"])
	assert.Equal(t, scalarArg{value: float32(2)}, byName["scale"])
	assert.Equal(t, scalarArg{value: float16.Fromfloat32(0.5)}, byName["half"])
	assert.Equal(t, constantArg{value: Constant{Value: []float32{1, 2}}}, byName["tensor"])
	assert.Equal(t, scalarArg{value: [2]int{1, 2}}, byName["array"])
	assert.Equal(t, constantArg{value: struct{}{}}, byName["other"])

	for _, arg := range classified {
		_, isScalar := arg.value.(scalarArg)
		assert.Equal(t, !isScalar, arg.isCallStyle(), "argument %q", arg.name)
	}
}

func TestClassifyArgsEmpty(t *testing.T) {
	require.Empty(t, classifyArgs(nil))
	require.Empty(t, classifyArgs(Args{"a": nil}))
}

func TestOpTypeName(t *testing.T) {
	assert.Equal(t, "Image", opTypeName("decoders__Image"))
	assert.Equal(t, "Resize", opTypeName("Resize"))
	assert.Equal(t, "Normal", opTypeName("random__noise__Normal"))
}
