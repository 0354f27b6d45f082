// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph builds the symbolic graph of a data pipeline.
//
// Calling an Operator doesn't execute anything: it records one or more Node's in a Graph, and returns
// their outputs as new symbolic DataHandle's. The Graph is later handed whole to an execution engine,
// which is outside the scope of this package.
//
// The main elements in the package are:
//
//   - Builder: holds the schema provider, the current Graph, the id allocator, the warning sink and an
//     optional RewriteHook. It creates Operator's with Builder.NewOperator.
//
//   - Operator: one configured, reusable instance of an operator schema (e.g.: "Resize" with
//     interp_type=1). Operator.Call creates the nodes.
//
//   - Node: one instance of an operator in the Graph, with a unique id and a relation id shared by all
//     the nodes created by the same call.
//
//   - DataHandle: a symbolic reference to one output of a Node.
//
// # Multiple Input Sets
//
// Any positional input of a call can be given as a list of handles instead of one handle. In that case
// the call is expanded into one node per element of the list (an "input set"), with the other inputs
// and all keyword arguments shared among them. All lists must have the same length. See Result.Value
// for how the outputs are packed back.
//
// # Keyword Arguments
//
// Keyword arguments (Args) are split into construction arguments (scalar configuration: strings, lists,
// numbers and ScalarConstant's) and argument-inputs (DataHandle's, or other literals like a Constant,
// that are promoted to constant nodes). Argument-inputs are only accepted for arguments the schema
// declares as tensor capable.
//
// # Error Handling
//
// Construction errors are returned as *OpError, and they match (with errors.Is) one of the kinds
// ErrConfiguration, ErrValidation, ErrUnsupportedConstantType or ErrGraphRequired, plus a more specific
// reason (e.g.: ErrDuplicateArgument). A failed call doesn't change the Graph.
//
// The Must* variants panic instead, and Define can be used to convert those panics back to errors.
package graph

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// IDAllocator allocates node ids: unique and strictly increasing. It is safe for concurrent use.
type IDAllocator struct {
	next atomic.Int64
}

// NewIDAllocator returns an allocator whose first id is 0.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next allocates a new id.
func (a *IDAllocator) Next() NodeId {
	return NodeId(a.next.Add(1) - 1)
}

// advancePast makes sure the next id allocated by a is greater than every id allocated so far by other.
func (a *IDAllocator) advancePast(other *IDAllocator) {
	if a == other {
		return
	}
	next := other.next.Load()
	for {
		current := a.next.Load()
		if current >= next || a.next.CompareAndSwap(current, next) {
			return
		}
	}
}

// Graph holds the nodes and sinks of a pipeline definition.
//
// Nodes are only ever appended: there is no removal operation. It is safe for concurrent use.
type Graph struct {
	name string
	uuid uuid.UUID
	ids  *IDAllocator

	mu       sync.Mutex
	nodes    []*Node
	nodeById map[NodeId]*Node
	sinks    []*DataHandle
}

// NewGraph creates an empty Graph with its own IDAllocator.
func NewGraph(name string) *Graph {
	return &Graph{
		name:     name,
		uuid:     uuid.New(),
		ids:      NewIDAllocator(),
		nodeById: make(map[NodeId]*Node),
	}
}

// WithIDAllocator makes the Graph use the given allocator, possibly shared with other graphs.
// It panics if nodes were already added to the Graph.
//
// It returns the Graph itself, so calls can be cascaded.
func (g *Graph) WithIDAllocator(ids *IDAllocator) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.nodes) > 0 {
		exceptions.Panicf("Graph(%q).WithIDAllocator() called after %d nodes were created", g.name, len(g.nodes))
	}
	g.ids = ids
	return g
}

// Name of the Graph.
func (g *Graph) Name() string { return g.name }

// UUID identifies the Graph for the execution engine.
func (g *Graph) UUID() uuid.UUID { return g.uuid }

// IDs returns the allocator used by the Graph.
func (g *Graph) IDs() *IDAllocator { return g.ids }

// AllocateID allocates a new node id.
func (g *Graph) AllocateID() NodeId { return g.ids.Next() }

// AddSink registers a handle that must be kept, even if nothing consumes it.
// The handle's producer must already be part of the Graph.
func (g *Graph) AddSink(h *DataHandle) error {
	if h == nil || h.producer == nil {
		return errors.Errorf("Graph(%q).AddSink(): handle has no producer", g.name)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.nodeById[h.producer.id] != h.producer {
		return errors.Errorf("Graph(%q).AddSink(%s): producer node #%d is not part of the graph",
			g.name, h.name, h.producer.id)
	}
	g.sinks = append(g.sinks, h)
	return nil
}

// commit appends the nodes and sinks of a successful call, atomically.
func (g *Graph) commit(nodes []*Node, sinks []*DataHandle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, node := range nodes {
		g.nodes = append(g.nodes, node)
		g.nodeById[node.id] = node
	}
	g.sinks = append(g.sinks, sinks...)
}

// Nodes returns the nodes in the order they were added.
func (g *Graph) Nodes() []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Node(nil), g.nodes...)
}

// NumNodes returns the number of nodes in the Graph.
func (g *Graph) NumNodes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Sinks returns the handles that must be kept, in the order they were registered.
func (g *Graph) Sinks() []*DataHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*DataHandle(nil), g.sinks...)
}

// NodeById returns the node with the given id, or nil if it is not part of the Graph.
func (g *Graph) NodeById(id NodeId) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodeById[id]
}

// LastNode returns the last node added, or nil if the Graph is empty.
func (g *Graph) LastNode() *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.nodes) == 0 {
		return nil
	}
	return g.nodes[len(g.nodes)-1]
}

// String implements fmt.Stringer, listing all nodes.
func (g *Graph) String() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "Graph %q (%s): %s nodes, %s sinks\n", g.name, g.uuid,
		humanize.Comma(int64(len(g.nodes))), humanize.Comma(int64(len(g.sinks))))
	for _, node := range g.nodes {
		_, _ = fmt.Fprintf(&sb, "\t%s\n", node)
	}
	for _, sink := range g.sinks {
		_, _ = fmt.Fprintf(&sb, "\tsink: %s\n", sink.name)
	}
	return sb.String()
}

// Define runs a pipeline definition function that uses the Must* variants, and returns the first
// error panicked, if any.
func Define(fn func()) error {
	return exceptions.TryCatch[error](fn)
}
