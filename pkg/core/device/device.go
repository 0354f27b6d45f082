// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package device defines where operators run and where the data they produce lives.
package device

import (
	"strings"

	"github.com/pkg/errors"
)

// Device of an operator or of a data handle.
//
// Data handles are only ever on CPU or GPU. Operators can also be Mixed: they take CPU inputs and produce
// GPU outputs (e.g. decoders and host-to-device transfers).
type Device int

const (
	Invalid Device = iota
	CPU
	GPU
	Mixed
)

var deviceNames = map[Device]string{
	Invalid: "invalid",
	CPU:     "cpu",
	GPU:     "gpu",
	Mixed:   "mixed",
}

// String implements fmt.Stringer.
func (d Device) String() string {
	if name, found := deviceNames[d]; found {
		return name
	}
	return "invalid"
}

// Parse converts names like "cpu", "gpu" or "mixed" (case-insensitive) to a Device.
func Parse(name string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cpu":
		return CPU, nil
	case "gpu":
		return GPU, nil
	case "mixed":
		return Mixed, nil
	}
	return Invalid, errors.Errorf("unknown device %q, valid values are \"cpu\", \"gpu\" or \"mixed\"", name)
}

// FromAny accepts either a Device or its name.
func FromAny(value any) (Device, error) {
	switch v := value.(type) {
	case Device:
		if !v.IsValid() {
			return Invalid, errors.Errorf("invalid device value %d", int(v))
		}
		return v, nil
	case string:
		return Parse(v)
	}
	return Invalid, errors.Errorf("device must be a string or a device.Device, got %T", value)
}

// IsValid returns whether d is one of CPU, GPU or Mixed.
func (d Device) IsValid() bool {
	return d == CPU || d == GPU || d == Mixed
}

// Output returns the device of the data produced by an operator placed on d.
func (d Device) Output() Device {
	if d == GPU || d == Mixed {
		return GPU
	}
	return CPU
}

// DefaultInput returns the device on which literal positional inputs are materialized for an
// operator placed on d.
func (d Device) DefaultInput() Device {
	if d == GPU {
		return GPU
	}
	return CPU
}
