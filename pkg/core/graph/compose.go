// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/pipegraph/pkg/core/device"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
)

// Callable is anything that can be called like an Operator.
type Callable interface {
	Call(inputs []any, kwargs Args) (*Result, error)
}

var (
	_ Callable = (*Operator)(nil)
	_ Callable = (*Composition)(nil)
)

// Composition chains operators: the outputs of each stage are the positional inputs of the next one.
type Composition struct {
	stages []*Operator
}

// Compose returns a Composition of the given stages, applied in order. Nested compositions are flattened.
func Compose(stages ...Callable) (*Composition, error) {
	c := &Composition{}
	for ii, stage := range stages {
		switch s := stage.(type) {
		case *Operator:
			c.stages = append(c.stages, s)
		case *Composition:
			c.stages = append(c.stages, s.stages...)
		default:
			return nil, errors.Errorf("Compose(): stage #%d of type %T is not an *Operator or a *Composition", ii, stage)
		}
	}
	if len(c.stages) == 0 {
		return nil, errors.New("Compose() requires at least one stage")
	}
	return c, nil
}

// MustCompose is like Compose, but panics on errors.
func MustCompose(stages ...Callable) *Composition {
	return must.M1(Compose(stages...))
}

// Stages returns the (flattened) operators of the composition.
func (c *Composition) Stages() []*Operator {
	return append([]*Operator(nil), c.stages...)
}

// Apply calls the composition with the given positional inputs and no keyword arguments.
func (c *Composition) Apply(inputs ...any) (*Result, error) {
	return c.Call(inputs, nil)
}

// MustApply is like Apply, but panics on errors.
func (c *Composition) MustApply(inputs ...any) *Result {
	return must.M1(c.Call(inputs, nil))
}

// Call runs the stages in order, and returns the Result of the last one.
//
// kwargs are given only to the first stage. Outputs on cpu feeding a stage that runs on gpu are
// transferred with a MakeContiguous node, unless that stage's schema pins the input to cpu.
// If a stage creates multiple input sets, its outputs are passed to the next stage as lists.
//
// Each stage (with its transfers) is committed as soon as it succeeds: if a later stage fails, the
// nodes of the earlier stages stay in the Graph.
func (c *Composition) Call(inputs []any, kwargs Args) (*Result, error) {
	var result *Result
	for ii, op := range c.stages {
		var transfers []*callBatch
		if ii > 0 {
			kwargs = nil
			var err error
			inputs, transfers, err = c.transferInputs(op, inputs)
			if err != nil {
				return nil, errors.WithMessagef(err, "Composition stage #%d (%s)", ii, op.schemaName)
			}
		}
		batch, err := op.stage(inputs, kwargs)
		if err != nil {
			return nil, errors.WithMessagef(err, "Composition stage #%d (%s)", ii, op.schemaName)
		}
		op.builder.commitBatches(append(transfers, batch)...)
		result = batch.result
		inputs = stageOutputs(result)
	}
	return result, nil
}

// stageOutputs converts the outputs of a stage to the positional inputs of the next one.
func stageOutputs(result *Result) []any {
	byOutput := result.ByOutput()
	next := make([]any, len(byOutput))
	for ii, handles := range byOutput {
		if result.NumSets() == 1 {
			next[ii] = handles[0]
		} else {
			next[ii] = handles
		}
	}
	return next
}

// transferInputs stages the transfers to gpu needed by op, returning the new inputs and the uncommitted
// transfers.
func (c *Composition) transferInputs(op *Operator, inputs []any) ([]any, []*callBatch, error) {
	if op.device != device.GPU {
		return inputs, nil, nil
	}
	b := op.builder
	var batches []*callBatch
	toGPU := func(h *DataHandle) (*DataHandle, error) {
		out, batch, err := b.stageToGPU(h)
		if err != nil {
			return nil, err
		}
		if batch != nil {
			batches = append(batches, batch)
		}
		return out, nil
	}
	out := make([]any, len(inputs))
	for ii, input := range inputs {
		if dev, found := op.schema.InputDevice(ii); found && dev == device.CPU {
			out[ii] = input
			continue
		}
		switch v := input.(type) {
		case *DataHandle:
			h, err := toGPU(v)
			if err != nil {
				return nil, nil, err
			}
			out[ii] = h
		case []*DataHandle:
			set := make([]*DataHandle, len(v))
			for jj, h := range v {
				var err error
				set[jj], err = toGPU(h)
				if err != nil {
					return nil, nil, err
				}
			}
			out[ii] = set
		default:
			out[ii] = input
		}
	}
	return out, batches, nil
}
