// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph_test

import (
	"sync"
	"testing"

	"github.com/gomlx/pipegraph/pkg/core/device"
	. "github.com/gomlx/pipegraph/pkg/core/graph"
	"github.com/gomlx/pipegraph/pkg/core/graph/graphtest"
	"github.com/gomlx/pipegraph/pkg/support/sets"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAllocator(t *testing.T) {
	ids := NewIDAllocator()
	assert.Equal(t, NodeId(0), ids.Next())
	assert.Equal(t, NodeId(1), ids.Next())

	// Concurrent allocation: unique ids.
	const numGoroutines, perGoroutine = 16, 100
	var wg sync.WaitGroup
	allocated := make([][]NodeId, numGoroutines)
	for ii := range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				allocated[ii] = append(allocated[ii], ids.Next())
			}
		}()
	}
	wg.Wait()
	unique := sets.Make[NodeId]()
	for _, perGoroutineIds := range allocated {
		for jj, id := range perGoroutineIds {
			if jj > 0 {
				require.Greater(t, id, perGoroutineIds[jj-1])
			}
			require.False(t, unique.Has(id), "id %d allocated twice", id)
			unique.Insert(id)
		}
	}
	assert.Len(t, unique, numGoroutines*perGoroutine)
}

func TestConcurrentCalls(t *testing.T) {
	b, g, _ := graphtest.NewBuilder(t)
	src := graphtest.Source(t, b, device.CPU)
	resize := b.MustNewOperator("Resize", nil)
	dump := b.MustNewOperator("Dump", nil)

	const numGoroutines, perGoroutine = 8, 50
	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				out := resize.MustApply(src).Handle()
				dump.MustApply(out)
			}
		}()
	}
	wg.Wait()

	nodes := g.Nodes()
	require.Len(t, nodes, 1+2*numGoroutines*perGoroutine)
	assert.Len(t, g.Sinks(), numGoroutines*perGoroutine)
	ids := sets.Make[NodeId]()
	for _, node := range nodes {
		require.False(t, ids.Has(node.Id()))
		ids.Insert(node.Id())
		assert.Same(t, node, g.NodeById(node.Id()))
	}
}

func TestSharedIDAllocator(t *testing.T) {
	ids := NewIDAllocator()
	g1 := NewGraph("g1").WithIDAllocator(ids)
	g2 := NewGraph("g2").WithIDAllocator(ids)
	assert.NotEqual(t, g1.UUID(), g2.UUID())
	assert.Same(t, ids, g1.IDs())

	b := NewBuilder(graphtest.Schemas()).WithWarningSink(&RecordingWarnings{})
	h1 := graphtest.Source(t, b.WithGraph(g1), device.CPU)
	h2 := graphtest.Source(t, b.WithGraph(g2), device.CPU)
	assert.Less(t, h1.Producer().Id(), h2.Producer().Id())
	assert.Equal(t, 1, g1.NumNodes())
	assert.Equal(t, 1, g2.NumNodes())

	// The allocator can't be changed once there are nodes.
	err := Define(func() { g1.WithIDAllocator(NewIDAllocator()) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "g1")
}

func TestBuilderIDsAcrossGraphs(t *testing.T) {
	b := NewBuilder(graphtest.Schemas()).WithWarningSink(&RecordingWarnings{})
	resize := b.MustNewOperator("Resize", nil)

	// Handle created without a graph, then consumed inside one.
	free := graphtest.Source(t, b, device.CPU)
	g1 := NewGraph("g1")
	b.WithGraph(g1)
	consumer := resize.MustApply(free).Nodes()[0]
	assert.Greater(t, consumer.Id(), free.Producer().Id())

	// Handle from g1 consumed in g2, which has its own allocator.
	g2 := NewGraph("g2")
	b.WithGraph(g2)
	assert.Same(t, g2.IDs(), b.WithGraph(g2).CurrentGraph().IDs())
	second := resize.MustApply(consumer.Outputs()[0]).Nodes()[0]
	assert.Greater(t, second.Id(), consumer.Id())
	assert.Nil(t, g1.NodeById(second.Id()))

	// Explicit allocators are advanced too.
	ids := NewIDAllocator()
	b.WithGraph(nil).WithIDAllocator(ids)
	third := resize.MustApply(second.Outputs()[0]).Nodes()[0]
	assert.Greater(t, third.Id(), second.Id())
}

func TestAddSink(t *testing.T) {
	b, g, _ := graphtest.NewBuilder(t)
	src := graphtest.Source(t, b, device.CPU)
	require.NoError(t, g.AddSink(src))
	assert.Equal(t, []*DataHandle{src}, g.Sinks())

	// Handles of nodes of other graphs are rejected.
	other := NewGraph("other")
	require.Error(t, other.AddSink(src))
	require.Error(t, other.AddSink(nil))
	assert.Empty(t, other.Sinks())
}

func TestGraphString(t *testing.T) {
	b, g, _ := graphtest.NewBuilder(t)
	src := graphtest.Source(t, b, device.CPU)
	b.MustNewOperator("Dump", nil).MustApply(src)
	_, err := b.Constant([]float32{1, 2, 3, 4}, device.CPU)
	require.NoError(t, err)

	s := g.String()
	assert.Contains(t, s, g.Name())
	assert.Contains(t, s, "3 nodes, 1 sinks")
	assert.Contains(t, s, "__ExternalSource_0")
	assert.Contains(t, s, "-> sink Dump_id_1_sink")
	assert.Contains(t, s, "[preserve]")
	assert.Contains(t, s, "16 B")
}

func TestDefine(t *testing.T) {
	b, g, _ := graphtest.NewBuilder(t)
	var out *DataHandle
	err := Define(func() {
		src := graphtest.Source(t, b, device.CPU)
		out = b.MustNewOperator("Resize", Args{"interp_type": 1}).MustApply(src).Handle()
	})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 2, g.NumNodes())

	// Errors panicked by the Must* variants are returned.
	err = Define(func() {
		b.MustNewOperator("Resize", nil).MustApply()
	})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInputCount)
	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, 2, g.NumNodes())
}
