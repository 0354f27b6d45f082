// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph_test

import (
	"testing"

	"github.com/gomlx/pipegraph/pkg/core/device"
	. "github.com/gomlx/pipegraph/pkg/core/graph"
	"github.com/gomlx/pipegraph/pkg/core/graph/graphtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	b, g, _ := graphtest.NewBuilder(t)
	src := graphtest.Source(t, b, device.CPU)

	decode := b.MustNewOperator("decoders__Image", Args{"device": "mixed"})
	resize := b.MustNewOperator("Resize", Args{"device": "gpu"})
	split := b.MustNewOperator("Split", Args{"device": "gpu"})
	inner := MustCompose(decode, resize)
	pipeline := MustCompose(inner, split)
	require.Len(t, pipeline.Stages(), 3)

	// kwargs only go to the first stage: Resize would reject "output_type".
	numNodes := g.NumNodes()
	result, err := pipeline.Call([]any{src}, Args{"output_type": "uint8"})
	require.NoError(t, err)
	outs, ok := result.Value().([]*DataHandle)
	require.True(t, ok)
	require.Len(t, outs, 2)
	assert.Equal(t, "Split", outs[0].Producer().SchemaName())

	// The decoder outputs on gpu, so no transfers are needed.
	assert.Equal(t, numNodes+3, g.NumNodes())
	resizeNode := outs[0].Producer().Inputs()[0].Producer()
	assert.Equal(t, "Resize", resizeNode.SchemaName())
	assert.Equal(t, "decoders__Image", resizeNode.Inputs()[0].Producer().SchemaName())
}

func TestComposeTransfersToGPU(t *testing.T) {
	b, _, _ := graphtest.NewBuilder(t)
	cpuResize := b.MustNewOperator("Resize", nil)
	gpuResize := b.MustNewOperator("Resize", Args{"device": "gpu"})
	decoder := b.MustNewOperator("decoders__Image", Args{"device": "gpu"})

	// cpu -> gpu: a MakeContiguous node is inserted.
	result := MustCompose(cpuResize, gpuResize).MustApply(graphtest.Source(t, b, device.CPU))
	transfer := result.Handle().Producer().Inputs()[0].Producer()
	assert.Equal(t, MakeContiguousSchemaName, transfer.SchemaName())
	assert.Equal(t, device.Mixed, transfer.Device())
	assert.Equal(t, device.GPU, transfer.Outputs()[0].Device())

	// The decoder pins its input to cpu: no transfer.
	result = MustCompose(cpuResize, decoder).MustApply(graphtest.Source(t, b, device.CPU))
	input := result.Handle().Producer().Inputs()[0]
	assert.Equal(t, device.CPU, input.Device())
	assert.Equal(t, "Resize", input.Producer().SchemaName())

	// With multiple input sets, the outputs are forwarded as lists.
	result = MustCompose(cpuResize, gpuResize).MustApply(graphtest.Sources(t, b, device.CPU, 2))
	require.Equal(t, 2, result.NumSets())
	for _, node := range result.Nodes() {
		assert.Equal(t, MakeContiguousSchemaName, node.Inputs()[0].Producer().SchemaName())
	}
	assert.Equal(t, result.Nodes()[0].Id(), result.Nodes()[1].RelationId())
}

func TestComposeErrors(t *testing.T) {
	_, err := Compose()
	require.Error(t, err)

	b, g, _ := graphtest.NewBuilder(t)
	src := graphtest.Source(t, b, device.CPU)
	resize := b.MustNewOperator("Resize", nil)
	add := b.MustNewOperator("Add", Args{"device": "gpu"})
	numNodes := g.NumNodes()
	_, err = MustCompose(resize, add).Apply(src)
	require.ErrorIs(t, err, ErrInputCount)
	assert.Contains(t, err.Error(), "stage #1")

	// The first stage stays in the graph, but not the transfer staged for the failed one.
	require.Equal(t, numNodes+1, g.NumNodes())
	assert.Equal(t, "Resize", g.LastNode().SchemaName())
}
