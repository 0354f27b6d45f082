// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/pipegraph/pkg/core/device"
	"github.com/gomlx/pipegraph/pkg/core/opspec"
	"github.com/gomlx/pipegraph/pkg/support/xslices"
)

// NodeId is a unique identifier of a Node. Ids are strictly increasing in creation order.
type NodeId int64

// InvalidNodeId is never allocated.
const InvalidNodeId NodeId = -1

// DataHandle is a symbolic reference to one output of a Node. It is immutable after creation.
type DataHandle struct {
	name     string
	device   device.Device
	producer *Node
}

// Name of the handle, derived from the name of its producer.
func (h *DataHandle) Name() string { return h.name }

// Device where the data of the handle lives.
func (h *DataHandle) Device() device.Device { return h.device }

// Producer is the Node that outputs the handle.
func (h *DataHandle) Producer() *Node { return h.producer }

// String implements fmt.Stringer.
func (h *DataHandle) String() string {
	if h == nil {
		return "DataHandle(nil)"
	}
	return fmt.Sprintf("DataHandle(%s, %s)", h.name, h.device)
}

// Node is one instance of an operator in the Graph.
//
// Nodes are created by Operator.Call (and for constants by the Builder), and never change afterward.
type Node struct {
	id, relationId NodeId
	name           string
	opName         string
	device         device.Device
	preserve       bool

	inputs    []*DataHandle
	argInputs map[string]*DataHandle
	outputs   []*DataHandle
	sink      *DataHandle

	spec     *opspec.Spec
	constant *constantData
}

// Id of the node, unique and increasing in creation order.
func (n *Node) Id() NodeId { return n.id }

// RelationId is the id of the first node created by the same call: all nodes created for the different
// input sets of one call share it.
func (n *Node) RelationId() NodeId { return n.relationId }

// Name of the node: either given by the user or generated as "__<OpType>_<id>".
func (n *Node) Name() string { return n.name }

// SchemaName of the operator that created the node.
func (n *Node) SchemaName() string { return n.spec.SchemaName() }

// Device the node runs on.
func (n *Node) Device() device.Device { return n.device }

// Preserve returns whether the node must be kept even if nothing consumes its outputs.
func (n *Node) Preserve() bool { return n.preserve }

// Inputs returns the input handles: positional inputs first, argument-inputs after, sorted by argument name.
func (n *Node) Inputs() []*DataHandle { return xslices.Copy(n.inputs) }

// ArgumentInputs returns the handles bound to arguments of the node.
func (n *Node) ArgumentInputs() map[string]*DataHandle {
	m := make(map[string]*DataHandle, len(n.argInputs))
	for k, v := range n.argInputs {
		m[k] = v
	}
	return m
}

// ArgumentInput returns the handle bound to the argument, or nil if it is not an argument-input.
func (n *Node) ArgumentInput(argName string) *DataHandle { return n.argInputs[argName] }

// Outputs returns the user visible outputs. It is empty for nodes that only produce a sink.
func (n *Node) Outputs() []*DataHandle { return xslices.Copy(n.outputs) }

// Sink returns the synthetic sink handle of zero-output preserved nodes, or nil.
func (n *Node) Sink() *DataHandle { return n.sink }

// ResolvedArgs returns the final scalar arguments of the node (argument-inputs excluded).
func (n *Node) ResolvedArgs() map[string]any { return n.spec.ArgsMap() }

// Spec returns the backend description of the node. It must not be modified.
func (n *Node) Spec() *opspec.Spec { return n.spec }

// IsConstant returns whether the node was created by promoting a literal.
func (n *Node) IsConstant() bool { return n.constant != nil }

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "#%d %s: %s@%s", n.id, n.name, n.opName, n.device)
	if n.relationId != n.id {
		_, _ = fmt.Fprintf(&sb, " (relation #%d)", n.relationId)
	}
	if n.constant != nil {
		_, _ = fmt.Fprintf(&sb, " [%s %v, %s]", n.constant.dtype, n.constant.shape,
			humanize.Bytes(uint64(n.constant.sizeBytes())))
	}
	if len(n.inputs) > 0 {
		names := xslices.Map(n.inputs, func(h *DataHandle) string { return h.name })
		_, _ = fmt.Fprintf(&sb, " (%s)", strings.Join(names, ", "))
	}
	switch {
	case n.sink != nil:
		_, _ = fmt.Fprintf(&sb, " -> sink %s", n.sink.name)
	case len(n.outputs) > 0:
		names := xslices.Map(n.outputs, func(h *DataHandle) string { return h.name })
		_, _ = fmt.Fprintf(&sb, " -> %s", strings.Join(names, ", "))
	}
	if n.preserve {
		sb.WriteString(" [preserve]")
	}
	return sb.String()
}
