// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"strings"

	"github.com/gomlx/pipegraph/pkg/support/sets"
	"github.com/gomlx/pipegraph/pkg/support/xslices"
)

// positional is one positional input after preprocessing: either a single handle, or a list of handles
// (one per input set) if set is not nil.
type positional struct {
	handle *DataHandle
	set    []*DataHandle
}

func (p positional) isFanOut() bool { return p.set != nil }

// expandInputSets returns the inputs of each input set.
//
// If no input is a list, there is one input set with the inputs unchanged. Otherwise, all lists must
// have the same length, and the single handles are broadcast (the same handle repeated) to that length.
func expandInputSets(op string, inputs []positional) ([][]*DataHandle, error) {
	var lengths []int
	for _, input := range inputs {
		if input.isFanOut() {
			lengths = append(lengths, len(input.set))
		}
	}
	if len(lengths) == 0 {
		return [][]*DataHandle{xslices.Map(inputs, func(p positional) *DataHandle { return p.handle })}, nil
	}
	numSets := xslices.Max(lengths)
	if numSets == 0 {
		return nil, newOpError(ErrValidation, ErrInputSetLengthMismatch, op, "",
			"lists of inputs must not be empty")
	}
	distinct := sets.MakeWith(lengths...)
	if len(distinct) > 1 {
		parts := make([]string, 0, len(inputs))
		for ii, input := range inputs {
			if input.isFanOut() {
				parts = append(parts, fmt.Sprintf("input #%d has %d", ii, len(input.set)))
			}
		}
		return nil, newOpError(ErrValidation, ErrInputSetLengthMismatch, op, "",
			"all lists of inputs must have the same length, got lengths %v (%s)",
			sets.Sorted(distinct), strings.Join(parts, ", "))
	}
	columns := make([][]*DataHandle, len(inputs))
	for ii, input := range inputs {
		if input.isFanOut() {
			columns[ii] = input.set
		} else {
			columns[ii] = xslices.Repeat(input.handle, numSets)
		}
	}
	return xslices.Transpose(columns), nil
}

// Result holds the nodes created by one call of an Operator, one per input set.
type Result struct {
	nodes []*Node
}

// Nodes returns the nodes created, in input set order.
func (r *Result) Nodes() []*Node { return xslices.Copy(r.nodes) }

// NumSets returns the number of input sets (and nodes) of the call.
func (r *Result) NumSets() int { return len(r.nodes) }

// NumOutputs returns the number of user visible outputs of each node.
func (r *Result) NumOutputs() int {
	if len(r.nodes) == 0 {
		return 0
	}
	return len(r.nodes[0].outputs)
}

// Sets returns the outputs of each input set: Sets()[set][output].
func (r *Result) Sets() [][]*DataHandle {
	return xslices.Map(r.nodes, func(n *Node) []*DataHandle { return n.Outputs() })
}

// ByOutput returns the outputs grouped by output index: ByOutput()[output][set].
func (r *Result) ByOutput() [][]*DataHandle {
	if r.NumOutputs() == 0 {
		return nil
	}
	return xslices.Transpose(r.Sets())
}

// Value returns the outputs packed according to the number of input sets and outputs:
//
//   - nil if the operator has no user visible outputs (e.g.: only a sink).
//   - With a single input set: a *DataHandle if the operator has one output, or a []*DataHandle otherwise.
//   - With multiple input sets and one output: a []*DataHandle with the output of each input set.
//   - With multiple input sets and multiple outputs: a [][]*DataHandle indexed [output][set].
func (r *Result) Value() any {
	numOutputs := r.NumOutputs()
	switch {
	case numOutputs == 0:
		return nil
	case len(r.nodes) == 1 && numOutputs == 1:
		return r.nodes[0].outputs[0]
	case len(r.nodes) == 1:
		return r.nodes[0].Outputs()
	case numOutputs == 1:
		return r.ByOutput()[0]
	default:
		return r.ByOutput()
	}
}

// Handle returns the output if the result holds exactly one handle (one input set, one output), or nil.
func (r *Result) Handle() *DataHandle {
	if len(r.nodes) == 1 && r.NumOutputs() == 1 {
		return r.nodes[0].outputs[0]
	}
	return nil
}

// Handles returns all outputs, output-major: for a single input set it is the outputs of its node, and
// for a single output it is the output of each input set.
func (r *Result) Handles() []*DataHandle {
	var handles []*DataHandle
	for _, perOutput := range r.ByOutput() {
		handles = append(handles, perOutput...)
	}
	return handles
}

// String implements fmt.Stringer.
func (r *Result) String() string {
	return fmt.Sprintf("Result(%d input sets, %d outputs)", r.NumSets(), r.NumOutputs())
}
