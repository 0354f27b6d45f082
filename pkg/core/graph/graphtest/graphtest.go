// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graphtest holds test utilities for packages that depend on the graph package: a registry
// of representative operator schemas, and helpers to create builders and source handles.
package graphtest

import (
	"sync"
	"testing"

	"github.com/gomlx/pipegraph/pkg/core/device"
	"github.com/gomlx/pipegraph/pkg/core/graph"
	"github.com/gomlx/pipegraph/pkg/core/schema"
	"github.com/stretchr/testify/require"
)

var (
	schemasOnce   sync.Once
	cachedSchemas *schema.Registry
)

// Schemas returns a registry (shared, don't modify it) with the following operators:
//
//   - ExternalSource: 0 inputs, 1 output, the source of data handles in tests.
//   - Resize: 1 input, tensor arguments resize_x and resize_y, interp_type (and its deprecated alias
//     interp), the removed antialias_legacy, and a crop float list.
//   - decoders__Image: 1 input pinned to cpu, usually run on mixed.
//   - Add: 2 inputs.
//   - Split: 1 input, num_outputs outputs (default 2).
//   - Dump: 1 input, no outputs (plus one if return_status is set), never pruned.
//   - Silent: 1 input, no outputs, can be pruned.
//   - CoinFlip: 0 inputs, tensor argument probability.
//   - OldFlip: deprecated in favor of Flip, with tensor arguments horizontal and vertical.
//   - MakeContiguous: 1 input, transfers data to the gpu.
//   - ArithmeticGenericOp: 1 to 16 inputs.
func Schemas() *schema.Registry {
	schemasOnce.Do(func() {
		cachedSchemas = BuildSchemas()
	})
	return cachedSchemas
}

// BuildSchemas returns a new registry with the same operators as Schemas, that can be modified.
func BuildSchemas() *schema.Registry {
	return schema.NewRegistry().Add(
		schema.New("ExternalSource").WithInputs(0, 0).
			WithArg("source_name", schema.ArgString),
		schema.New("Resize").
			WithTensorArg("resize_x", schema.ArgFloat).
			WithTensorArg("resize_y", schema.ArgFloat).
			WithArg("interp_type", schema.ArgInt).
			WithArg("crop", schema.ArgFloatList).
			WithArg("ndim", schema.ArgInt).
			WithDeprecatedArg("interp", schema.ArgInvalid, schema.DeprecatedArg{
				RenamedTo: "interp_type",
				Message:   "Use `interp_type` instead.",
			}).
			WithDeprecatedArg("antialias_legacy", schema.ArgBool, schema.DeprecatedArg{Removed: true}),
		schema.New("decoders__Image").
			WithInputDevice(0, device.CPU).
			WithArg("output_type", schema.ArgDType),
		schema.New("Add").WithInputs(2, 2),
		schema.New("Split").
			WithArg("num_outputs", schema.ArgInt).
			WithOutputsFn(func(args map[string]any) int {
				if n, ok := args["num_outputs"].(int64); ok {
					return int(n)
				}
				return 2
			}),
		schema.New("Dump").
			WithOutputs(0).
			WithNoPrune().
			WithArg("return_status", schema.ArgBool).
			WithAdditionalOutputsFn(func(args map[string]any) int {
				if enabled, ok := args["return_status"].(bool); ok && enabled {
					return 1
				}
				return 0
			}),
		schema.New("Silent").WithOutputs(0),
		schema.New("CoinFlip").WithInputs(0, 0).
			WithTensorArg("probability", schema.ArgFloat),
		schema.New("OldFlip").
			WithTensorArg("horizontal", schema.ArgInt).
			WithTensorArg("vertical", schema.ArgInt).
			Deprecate("Flip", "OldFlip will be removed in the next release."),
		schema.New(graph.MakeContiguousSchemaName),
		schema.New(graph.ArithmeticSchemaName).WithInputs(1, 16).
			WithArg("expression_desc", schema.ArgString).
			WithArg("integer_constants", schema.ArgIntList).
			WithArg("real_constants", schema.ArgFloatList),
	)
}

// NewBuilder returns a Builder over Schemas, with a new Graph and a RecordingWarnings sink.
func NewBuilder(t testing.TB) (*graph.Builder, *graph.Graph, *graph.RecordingWarnings) {
	t.Helper()
	g := graph.NewGraph(t.Name())
	warnings := &graph.RecordingWarnings{}
	b := graph.NewBuilder(Schemas()).WithGraph(g).WithWarningSink(warnings)
	return b, g, warnings
}

// Source returns the output of a new ExternalSource node on the given device.
func Source(t testing.TB, b *graph.Builder, dev device.Device) *graph.DataHandle {
	t.Helper()
	op, err := b.NewOperator("ExternalSource", graph.Args{"device": dev})
	require.NoError(t, err)
	result, err := op.Apply()
	require.NoError(t, err)
	require.NotNil(t, result.Handle())
	return result.Handle()
}

// Sources returns n handles, each the output of a new ExternalSource node on the given device.
func Sources(t testing.TB, b *graph.Builder, dev device.Device, n int) []*graph.DataHandle {
	t.Helper()
	handles := make([]*graph.DataHandle, n)
	for ii := range handles {
		handles[ii] = Source(t, b, dev)
	}
	return handles
}
