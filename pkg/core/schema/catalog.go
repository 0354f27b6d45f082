// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package schema

import (
	"bytes"
	"io"
	"os"

	"github.com/gomlx/pipegraph/pkg/core/device"
	"github.com/gomlx/pipegraph/pkg/support/fsutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Catalog files describe schemas in YAML. Example:
//
//	schemas:
//	  - name: Resize
//	    inputs: {min: 1, max: 1}
//	    outputs: 1
//	    input_devices: {0: cpu}
//	    args:
//	      - {name: resize_x, type: float, tensor: true}
//	      - {name: interp_type, type: int}
//	      - {name: interp, renamed_to: interp_type, message: "use interp_type"}
//	  - name: Dump
//	    outputs: 0
//	    no_prune: true
//	    additional_outputs_if: [return_status]
//	    args:
//	      - {name: return_status, type: bool}
type catalogFile struct {
	Schemas []catalogSchema `yaml:"schemas"`
}

type catalogSchema struct {
	Name                string              `yaml:"name"`
	Inputs              *catalogInputs      `yaml:"inputs"`
	Outputs             *int                `yaml:"outputs"`
	OutputsFromArg      string              `yaml:"outputs_from_arg"`
	AdditionalOutputsIf []string            `yaml:"additional_outputs_if"`
	InputDevices        map[int]string      `yaml:"input_devices"`
	NoPrune             bool                `yaml:"no_prune"`
	Deprecated          *catalogDeprecation `yaml:"deprecated"`
	Args                []catalogArgument   `yaml:"args"`
}

type catalogInputs struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type catalogDeprecation struct {
	InFavorOf string `yaml:"in_favor_of"`
	Message   string `yaml:"message"`
}

type catalogArgument struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Tensor    bool   `yaml:"tensor"`
	RenamedTo string `yaml:"renamed_to"`
	Removed   bool   `yaml:"removed"`
	Message   string `yaml:"message"`
}

// LoadCatalogFile reads a YAML schema catalog from the given path. A leading "~" is replaced by the
// user's home directory.
func LoadCatalogFile(path string) (*Registry, error) {
	path, err := fsutil.ReplaceTilde(path)
	if err != nil {
		return nil, err
	}
	exists, err := fsutil.FileExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Errorf("schema catalog %q not found", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read schema catalog %q", path)
	}
	r, err := LoadCatalog(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WithMessagef(err, "schema catalog %q", path)
	}
	return r, nil
}

// LoadCatalog parses a YAML schema catalog and returns a Registry with its schemas.
// Unknown fields are reported as errors.
func LoadCatalog(reader io.Reader) (*Registry, error) {
	var catalog catalogFile
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	if err := decoder.Decode(&catalog); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to parse schema catalog")
	}
	r := NewRegistry()
	for ii, entry := range catalog.Schemas {
		s, err := entry.toSchema()
		if err != nil {
			return nil, errors.WithMessagef(err, "catalog entry #%d (%q)", ii, entry.Name)
		}
		r.Add(s)
	}
	return r, nil
}

func (c *catalogSchema) toSchema() (*Schema, error) {
	if c.Name == "" {
		return nil, errors.New("schema without a name")
	}
	s := New(c.Name)
	if c.Inputs != nil {
		if c.Inputs.Min < 0 || c.Inputs.Max < c.Inputs.Min {
			return nil, errors.Errorf("invalid inputs bound [%d, %d]", c.Inputs.Min, c.Inputs.Max)
		}
		s.WithInputs(c.Inputs.Min, c.Inputs.Max)
	}
	if c.Outputs != nil {
		s.WithOutputs(*c.Outputs)
	}
	if c.OutputsFromArg != "" {
		argName := c.OutputsFromArg
		s.WithOutputsFn(func(args map[string]any) int { return intArg(args, argName) })
	}
	if len(c.AdditionalOutputsIf) > 0 {
		flags := c.AdditionalOutputsIf
		s.WithAdditionalOutputsFn(func(args map[string]any) int {
			count := 0
			for _, flag := range flags {
				if enabled, ok := args[flag].(bool); ok && enabled {
					count++
				}
			}
			return count
		})
	}
	for index, devName := range c.InputDevices {
		dev, err := device.Parse(devName)
		if err != nil {
			return nil, errors.WithMessagef(err, "input device for input #%d", index)
		}
		s.WithInputDevice(index, dev)
	}
	if c.NoPrune {
		s.WithNoPrune()
	}
	if c.Deprecated != nil {
		s.Deprecate(c.Deprecated.InFavorOf, c.Deprecated.Message)
	}

	// Deprecated arguments take their type from the argument they were renamed to, so they go last.
	var deprecated []catalogArgument
	for _, arg := range c.Args {
		if arg.Name == "" {
			return nil, errors.New("argument without a name")
		}
		if arg.RenamedTo != "" || arg.Removed {
			deprecated = append(deprecated, arg)
			continue
		}
		argType, err := ParseArgType(arg.Type)
		if err != nil {
			return nil, errors.WithMessagef(err, "argument %q", arg.Name)
		}
		if arg.Tensor {
			s.WithTensorArg(arg.Name, argType)
		} else {
			s.WithArg(arg.Name, argType)
		}
	}
	for _, arg := range deprecated {
		argType := ArgInvalid
		if arg.Type != "" {
			var err error
			argType, err = ParseArgType(arg.Type)
			if err != nil {
				return nil, errors.WithMessagef(err, "argument %q", arg.Name)
			}
		} else if arg.RenamedTo != "" {
			var err error
			argType, err = s.ArgumentType(arg.RenamedTo)
			if err != nil {
				return nil, errors.WithMessagef(err, "deprecated argument %q", arg.Name)
			}
		}
		s.WithDeprecatedArg(arg.Name, argType, DeprecatedArg{
			RenamedTo: arg.RenamedTo,
			Removed:   arg.Removed,
			Message:   arg.Message,
		})
	}
	return s, nil
}

// intArg reads an integer argument as converted by ArgInt (int64), accepting plain ints as well.
func intArg(args map[string]any, name string) int {
	switch v := args[name].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case int32:
		return int(v)
	}
	return 0
}
