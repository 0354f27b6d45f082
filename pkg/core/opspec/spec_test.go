// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opspec

import (
	"testing"

	"github.com/gomlx/pipegraph/pkg/core/device"
	"github.com/gomlx/pipegraph/pkg/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpec(t *testing.T) {
	s := New("Resize")
	require.NoError(t, s.AddArg("device", "gpu"))
	require.NoError(t, s.AddArgEmptyList("crop", schema.ArgFloat))
	require.ErrorIs(t, s.AddArg("device", "cpu"), ErrArgumentAlreadySet)

	s.AddInput("__Decode_0", device.GPU)
	s.AddInput("__Uniform_1", device.CPU)
	s.AddArgumentInput("resize_x", "__Uniform_1")
	s.AddOutput("__Resize_2", device.GPU)

	v, found := s.Arg("device")
	require.True(t, found)
	assert.Equal(t, "gpu", v)
	v, found = s.Arg("crop")
	require.True(t, found)
	assert.Nil(t, v)
	assert.Equal(t, schema.ArgFloat, s.Args()[1].EmptyListOf)
	assert.True(t, s.HasArg("crop"))
	assert.False(t, s.HasArg("resize_y"))

	assert.Equal(t, []IO{{"__Decode_0", device.GPU}, {"__Uniform_1", device.CPU}}, s.Inputs())
	assert.Equal(t, []ArgumentInput{{"resize_x", "__Uniform_1"}}, s.ArgumentInputs())
	assert.Equal(t, "Resize(crop=[]float, device=gpu) inputs=[__Decode_0(gpu), __Uniform_1(cpu)] "+
		"arg_inputs=[resize_x<-__Uniform_1] outputs=[__Resize_2(gpu)]", s.String())
}

func TestSpecClone(t *testing.T) {
	base := New("Flip")
	require.NoError(t, base.AddArg("horizontal", int64(1)))

	c1 := base.Clone()
	require.NoError(t, c1.AddArg("vertical", int64(1)))
	c1.AddInput("a", device.CPU)

	c2 := base.Clone()
	// The argument added to c1 doesn't leak to base or c2.
	require.NoError(t, c2.AddArg("vertical", int64(0)))
	assert.False(t, base.HasArg("vertical"))
	assert.Empty(t, c2.Inputs())
	assert.Equal(t, map[string]any{"horizontal": int64(1), "vertical": int64(0)}, c2.ArgsMap())
}
