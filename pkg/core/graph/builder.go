// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/pipegraph/pkg/core/device"
	"github.com/gomlx/pipegraph/pkg/core/schema"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MakeContiguousSchemaName is the operator used to transfer handles from cpu to gpu.
const MakeContiguousSchemaName = "MakeContiguous"

// Builder creates Operator's and owns the context in which their nodes are created: the schema provider,
// the current Graph, the id allocator, the sink for warnings and an optional RewriteHook.
//
// Configuration methods (With*) return the Builder itself, so they can be cascaded:
//
//	b := graph.NewBuilder(schemas).WithGraph(graph.NewGraph("train")).WithWarningSink(warnings)
//
// A Builder can be used concurrently, as long as it is not being reconfigured.
type Builder struct {
	schemas  schema.Provider
	ids      *IDAllocator
	graph    *Graph
	warnings WarningSink
	hook     RewriteHook
}

// NewBuilder returns a Builder using the given schema provider, without a Graph.
// Warnings are logged with klog by default.
func NewBuilder(schemas schema.Provider) *Builder {
	return &Builder{
		schemas:  schemas,
		ids:      NewIDAllocator(),
		warnings: KlogWarnings{},
	}
}

// WithGraph sets the current Graph: nodes created afterward are added to it, and ids are allocated
// from its allocator. The graph's allocator is first advanced past the ids already allocated by the
// Builder, so handles created before (without a Graph, or in another Graph) never share an id with
// the new nodes. Use nil to unset it, in which case the Builder keeps the last allocator used.
//
// Handles should only be shared among graphs created by the same Builder.
func (b *Builder) WithGraph(g *Graph) *Builder {
	b.graph = g
	if g != nil {
		g.IDs().advancePast(b.ids)
		b.ids = g.IDs()
	}
	return b
}

// WithWarningSink sets where deprecation warnings are sent.
func (b *Builder) WithWarningSink(sink WarningSink) *Builder {
	if sink == nil {
		sink = KlogWarnings{}
	}
	b.warnings = sink
	return b
}

// WithRewriteHook installs a hook called on every call of an Operator before its nodes are created.
// Use nil to remove it.
func (b *Builder) WithRewriteHook(hook RewriteHook) *Builder {
	b.hook = hook
	return b
}

// WithIDAllocator sets the allocator used by the Builder, until the next WithGraph. It is advanced past
// the ids already allocated by the Builder.
func (b *Builder) WithIDAllocator(ids *IDAllocator) *Builder {
	ids.advancePast(b.ids)
	b.ids = ids
	return b
}

// Schemas returns the schema provider.
func (b *Builder) Schemas() schema.Provider { return b.schemas }

// CurrentGraph returns the current Graph, or nil if there is none.
func (b *Builder) CurrentGraph() *Graph { return b.graph }

func (b *Builder) allocateID() NodeId {
	return b.ids.Next()
}

// commit adds the nodes and sinks of a successful call to the current Graph, if there is one.
func (b *Builder) commit(nodes []*Node, sinks []*DataHandle) {
	if b.graph == nil {
		return
	}
	b.graph.commit(nodes, sinks)
}

// commitBatches adds the nodes of the staged calls to the current Graph in one step, in order. Only
// then are the warnings emitted and the RewriteHook given the results.
func (b *Builder) commitBatches(batches ...*callBatch) {
	var (
		nodes []*Node
		sinks []*DataHandle
	)
	for _, batch := range batches {
		nodes = append(nodes, batch.pending...)
		nodes = append(nodes, batch.nodes...)
		sinks = append(sinks, batch.sinks...)
	}
	b.commit(nodes, sinks)
	for _, batch := range batches {
		for _, w := range batch.warnings {
			b.warnings.Warn(w)
		}
	}
	if klog.V(2).Enabled() {
		for _, node := range nodes {
			klog.Infof("created %s", node)
		}
	}
	if b.hook != nil {
		for _, batch := range batches {
			b.hook.Annotate(batch.result)
		}
	}
}

// Constant promotes value to a constant node on the given device, and returns its output.
// See Constant for the accepted values.
func (b *Builder) Constant(value any, dev device.Device) (*DataHandle, error) {
	if !dev.IsValid() {
		return nil, newOpError(ErrConfiguration, ErrInvalidArgumentType, ConstantSchemaName, schema.ArgNameDevice,
			"invalid device %s", dev)
	}
	node, err := b.newConstantNode(value, dev, ConstantSchemaName, "value")
	if err != nil {
		return nil, err
	}
	b.commit([]*Node{node}, nil)
	klog.V(2).Infof("created %s", node)
	return node.outputs[0], nil
}

// ToGPU returns a handle with the data of h on gpu: h itself if it is already on gpu, or the output of
// a new MakeContiguous node (device mixed) otherwise.
func (b *Builder) ToGPU(h *DataHandle) (*DataHandle, error) {
	out, batch, err := b.stageToGPU(h)
	if err != nil {
		return nil, err
	}
	if batch != nil {
		b.commitBatches(batch)
	}
	return out, nil
}

// stageToGPU is like ToGPU, but leaves the new MakeContiguous node (if any) uncommitted in the returned batch.
func (b *Builder) stageToGPU(h *DataHandle) (*DataHandle, *callBatch, error) {
	if h == nil {
		return nil, nil, errors.New("Builder.ToGPU(nil)")
	}
	if h.device == device.GPU {
		return h, nil, nil
	}
	op, err := b.NewOperator(MakeContiguousSchemaName, Args{schema.ArgNameDevice: device.Mixed})
	if err != nil {
		return nil, nil, err
	}
	batch, err := op.stage([]any{h}, nil)
	if err != nil {
		return nil, nil, err
	}
	return batch.result.Handle(), batch, nil
}
