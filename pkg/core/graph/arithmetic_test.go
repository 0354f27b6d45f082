// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/pipegraph/pkg/core/device"
	. "github.com/gomlx/pipegraph/pkg/core/graph"
	"github.com/gomlx/pipegraph/pkg/core/graph/graphtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmetic(t *testing.T) {
	b, _, _ := graphtest.NewBuilder(t)
	x := graphtest.Source(t, b, device.CPU)
	y := graphtest.Source(t, b, device.CPU)

	result, err := b.Arithmetic("add", x, 2, y, 0.5, ScalarAs(3, dtypes.Uint8), true)
	require.NoError(t, err)
	node := result.Nodes()[0]
	assert.Equal(t, ArithmeticSchemaName, node.SchemaName())
	assert.Equal(t, device.CPU, node.Device())
	assert.Equal(t, []*DataHandle{x, y}, node.Inputs())
	args := node.ResolvedArgs()
	assert.Equal(t, "add(&0 $0:int32 &1 $0:float32 $1:uint8 $2:bool)", args["expression_desc"])
	assert.Equal(t, []int64{2, 3, 1}, args["integer_constants"])
	assert.Equal(t, []float32{0.5}, args["real_constants"])

	// Without constants the lists are omitted.
	result, err = b.Arithmetic("neg", x)
	require.NoError(t, err)
	args = result.Nodes()[0].ResolvedArgs()
	assert.Equal(t, "neg(&0)", args["expression_desc"])
	assert.NotContains(t, args, "integer_constants")
	assert.NotContains(t, args, "real_constants")
}

func TestArithmeticOnGPU(t *testing.T) {
	b, _, _ := graphtest.NewBuilder(t)
	x := graphtest.Source(t, b, device.CPU)
	y := graphtest.Source(t, b, device.GPU)

	result, err := b.Arithmetic("mul", x, y, float32(2))
	require.NoError(t, err)
	node := result.Nodes()[0]
	assert.Equal(t, device.GPU, node.Device())
	inputs := node.Inputs()
	require.Len(t, inputs, 2)
	assert.Equal(t, MakeContiguousSchemaName, inputs[0].Producer().SchemaName())
	assert.Same(t, x, inputs[0].Producer().Inputs()[0])
	assert.Same(t, y, inputs[1])
	assert.Equal(t, "mul(&0 &1 $0:float32)", node.ResolvedArgs()["expression_desc"])
}

func TestArithmeticErrors(t *testing.T) {
	b, _, _ := graphtest.NewBuilder(t)
	_, err := b.Arithmetic("add", 1, 2)
	require.ErrorIs(t, err, ErrInputCount)

	x := graphtest.Source(t, b, device.CPU)
	_, err = b.Arithmetic("add", x, "two")
	require.ErrorIs(t, err, ErrInvalidInputType)
	assert.Contains(t, err.Error(), "input #1")
}

func TestArithmeticIsAtomic(t *testing.T) {
	b, g, _ := graphtest.NewBuilder(t)
	inputs := []any{graphtest.Source(t, b, device.GPU)}
	for _, h := range graphtest.Sources(t, b, device.CPU, 16) {
		inputs = append(inputs, h)
	}
	numNodes := g.NumNodes()
	_, err := b.Arithmetic("add", inputs...)
	require.ErrorIs(t, err, ErrInputCount)
	assert.Contains(t, err.Error(), "expects from 1 to 16 inputs, but received 17")
	assert.Equal(t, numNodes, g.NumNodes(), "transfer nodes of a failed expression must not be added")

	// With 16 handles, the 15 transfers and the expression node are added.
	result, err := b.Arithmetic("add", inputs[:16]...)
	require.NoError(t, err)
	assert.Equal(t, numNodes+16, g.NumNodes())
	assert.Same(t, result.Nodes()[0], g.LastNode())
}
