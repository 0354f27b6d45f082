// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package schema

import (
	"strings"
	"testing"

	"github.com/gomlx/pipegraph/pkg/core/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema(t *testing.T) {
	s := New("Resize").WithInputs(1, 2).
		WithArg("interp_type", ArgInt).
		WithTensorArg("resize_x", ArgFloat).
		WithDeprecatedArg("interp", ArgInvalid, DeprecatedArg{RenamedTo: "interp_type", Message: "use interp_type"}).
		WithInputDevice(1, device.CPU).
		WithAdditionalOutputsFn(func(args map[string]any) int {
			if v, _ := args["interp_type"].(int64); v > 0 {
				return 1
			}
			return 0
		})

	assert.Equal(t, "Resize", s.Name())
	assert.Equal(t, 1, s.MinInputs())
	assert.Equal(t, 2, s.MaxInputs())

	argType, err := s.ArgumentType("resize_x")
	require.NoError(t, err)
	assert.Equal(t, ArgFloat, argType)
	_, err = s.ArgumentType("resize_z")
	require.ErrorIs(t, err, ErrUnknownArgument)

	// Renamed arguments inherit the type of the new argument.
	argType, err = s.ArgumentType("interp")
	require.NoError(t, err)
	assert.Equal(t, ArgInt, argType)
	meta, found := s.DeprecatedArgument("interp")
	require.True(t, found)
	assert.Equal(t, "interp_type", meta.RenamedTo)
	_, found = s.DeprecatedArgument("interp_type")
	assert.False(t, found)

	assert.True(t, s.IsArgumentTensorCapable("resize_x"))
	assert.False(t, s.IsArgumentTensorCapable("interp_type"))
	assert.False(t, s.IsArgumentTensorCapable("unknown"))

	_, pinned := s.InputDevice(0)
	assert.False(t, pinned)
	dev, pinned := s.InputDevice(1)
	assert.True(t, pinned)
	assert.Equal(t, device.CPU, dev)

	assert.Equal(t, 1, s.OutputArity(nil))
	assert.Equal(t, 0, s.AdditionalOutputArity(map[string]any{}))
	assert.Equal(t, 1, s.AdditionalOutputArity(map[string]any{"interp_type": int64(2)}))

	// Reserved arguments are always declared.
	_, err = s.ArgumentType(ArgNamePreserve)
	require.NoError(t, err)

	names := make([]string, 0)
	for _, arg := range s.Arguments() {
		names = append(names, arg.Name)
	}
	assert.Equal(t, []string{"device", "interp", "interp_type", "preserve", "resize_x"}, names)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry().Add(New("B"), New("A"))
	assert.Equal(t, []string{"A", "B"}, r.Names())
	s, err := r.Schema("A")
	require.NoError(t, err)
	assert.Equal(t, "A", s.Name())
	_, err = r.Schema("C")
	require.ErrorIs(t, err, ErrUnknownSchema)
}

const testCatalog = `
schemas:
  - name: Resize
    inputs: {min: 1, max: 1}
    input_devices: {0: gpu}
    args:
      - {name: resize_x, type: float, tensor: true}
      - {name: interp_type, type: int}
      - {name: interp, renamed_to: interp_type, message: "use interp_type"}
      - {name: antialias_legacy, removed: true}
  - name: Dump
    inputs: {min: 1, max: 1}
    outputs: 0
    no_prune: true
    additional_outputs_if: [return_status]
    deprecated: {in_favor_of: Save, message: "Dump will be removed"}
    args:
      - {name: return_status, type: bool}
  - name: Split
    inputs: {min: 1, max: 1}
    outputs_from_arg: num_outputs
    args:
      - {name: num_outputs, type: int}
`

func TestLoadCatalog(t *testing.T) {
	r, err := LoadCatalog(strings.NewReader(testCatalog))
	require.NoError(t, err)
	assert.Equal(t, []string{"Dump", "Resize", "Split"}, r.Names())

	resize, err := r.Schema("Resize")
	require.NoError(t, err)
	assert.True(t, resize.IsArgumentTensorCapable("resize_x"))
	dev, pinned := resize.InputDevice(0)
	assert.True(t, pinned)
	assert.Equal(t, device.GPU, dev)
	meta, found := resize.DeprecatedArgument("interp")
	require.True(t, found)
	assert.Equal(t, DeprecatedArg{RenamedTo: "interp_type", Message: "use interp_type"}, meta)
	meta, found = resize.DeprecatedArgument("antialias_legacy")
	require.True(t, found)
	assert.True(t, meta.Removed)

	dump, err := r.Schema("Dump")
	require.NoError(t, err)
	assert.True(t, dump.IsNoPrune())
	assert.True(t, dump.IsDeprecated())
	assert.Equal(t, "Save", dump.DeprecatedInFavorOf())
	assert.Equal(t, 0, dump.OutputArity(nil))
	assert.Equal(t, 1, dump.AdditionalOutputArity(map[string]any{"return_status": true}))

	split, err := r.Schema("Split")
	require.NoError(t, err)
	assert.Equal(t, 3, split.OutputArity(map[string]any{"num_outputs": int64(3)}))
}

func TestLoadCatalogErrors(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader("schemas:\n  - name: X\n    bogus: 1\n"))
	require.Error(t, err)

	_, err = LoadCatalog(strings.NewReader("schemas:\n  - name: X\n    args:\n      - {name: a, type: matrix}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matrix")

	_, err = LoadCatalog(strings.NewReader("schemas:\n  - name: X\n    inputs: {min: 2, max: 1}\n"))
	require.Error(t, err)

	// Empty catalogs are fine.
	r, err := LoadCatalog(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, r.Names())
}
