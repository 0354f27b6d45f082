// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package schema

import (
	"math"
	"reflect"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// ArgType is the declared type of an operator argument.
type ArgType int

const (
	ArgInvalid ArgType = iota
	ArgBool
	ArgInt
	ArgFloat
	ArgString
	ArgDType
	ArgBoolList
	ArgIntList
	ArgFloatList
	ArgStringList
)

var argTypeNames = []string{
	ArgInvalid:    "invalid",
	ArgBool:       "bool",
	ArgInt:        "int",
	ArgFloat:      "float",
	ArgString:     "string",
	ArgDType:      "dtype",
	ArgBoolList:   "bool_list",
	ArgIntList:    "int_list",
	ArgFloatList:  "float_list",
	ArgStringList: "string_list",
}

// String implements fmt.Stringer.
func (t ArgType) String() string {
	if t < 0 || int(t) >= len(argTypeNames) {
		return "invalid"
	}
	return argTypeNames[t]
}

// ParseArgType converts the names returned by ArgType.String back to an ArgType.
func ParseArgType(name string) (ArgType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for ii, typeName := range argTypeNames {
		if ii != int(ArgInvalid) && typeName == name {
			return ArgType(ii), nil
		}
	}
	return ArgInvalid, errors.Errorf("unknown argument type %q", name)
}

// IsList returns whether the type is a list of values.
func (t ArgType) IsList() bool {
	return t >= ArgBoolList && t <= ArgStringList
}

// Element returns the element type of a list type, or t itself if it is not a list.
func (t ArgType) Element() ArgType {
	switch t {
	case ArgBoolList:
		return ArgBool
	case ArgIntList:
		return ArgInt
	case ArgFloatList:
		return ArgFloat
	case ArgStringList:
		return ArgString
	}
	return t
}

// Convert value to the canonical Go representation of the argument type:
//
//   - ArgBool: bool
//   - ArgInt: int64
//   - ArgFloat: float32
//   - ArgString: string
//   - ArgDType: dtypes.DType
//   - Lists: []bool, []int64, []float32 or []string.
//
// A scalar given for a list type is converted to a list with one element.
// It returns an error wrapping ErrInvalidValue if the value can't be represented.
func (t ArgType) Convert(value any) (any, error) {
	if value == nil {
		return nil, errors.Wrapf(ErrInvalidValue, "nil value for argument of type %s", t)
	}
	if !t.IsList() {
		return t.convertScalar(value)
	}
	elemType := t.Element()
	v := reflect.ValueOf(value)
	var elements []any
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		elements = make([]any, v.Len())
		for ii := range elements {
			elements[ii] = v.Index(ii).Interface()
		}
	} else {
		elements = []any{value}
	}
	switch elemType {
	case ArgBool:
		return convertList[bool](elemType, elements)
	case ArgInt:
		return convertList[int64](elemType, elements)
	case ArgFloat:
		return convertList[float32](elemType, elements)
	case ArgString:
		return convertList[string](elemType, elements)
	}
	return nil, errors.Errorf("invalid list type %s", t)
}

func convertList[T any](elemType ArgType, elements []any) (any, error) {
	out := make([]T, len(elements))
	for ii, e := range elements {
		converted, err := elemType.convertScalar(e)
		if err != nil {
			return nil, errors.WithMessagef(err, "element #%d", ii)
		}
		out[ii] = converted.(T)
	}
	return out, nil
}

func (t ArgType) convertScalar(value any) (any, error) {
	if value == nil {
		return nil, errors.Wrapf(ErrInvalidValue, "nil value for argument of type %s", t)
	}
	if t == ArgDType {
		return convertDType(value)
	}
	// float16 has an integer underlying type, so it has to be checked before reflection.
	if f16, ok := value.(float16.Float16); ok {
		if t == ArgFloat {
			return f16.Float32(), nil
		}
		return nil, errors.Wrapf(ErrInvalidValue, "float16 value %v cannot be used for argument of type %s", f16, t)
	}
	v := reflect.ValueOf(value)
	kind := v.Kind()
	switch t {
	case ArgBool:
		if kind == reflect.Bool {
			return v.Bool(), nil
		}
	case ArgInt:
		switch {
		case isIntKind(kind):
			return v.Int(), nil
		case isUintKind(kind):
			if v.Uint() > math.MaxInt64 {
				return nil, errors.Wrapf(ErrInvalidValue, "value %d overflows int64", v.Uint())
			}
			return int64(v.Uint()), nil
		}
	case ArgFloat:
		switch {
		case isIntKind(kind):
			return float32(v.Int()), nil
		case isUintKind(kind):
			return float32(v.Uint()), nil
		case kind == reflect.Float32 || kind == reflect.Float64:
			return float32(v.Float()), nil
		}
	case ArgString:
		if kind == reflect.String {
			return v.String(), nil
		}
	}
	return nil, errors.Wrapf(ErrInvalidValue, "value %v (%T) cannot be used for argument of type %s", value, value, t)
}

func isIntKind(kind reflect.Kind) bool {
	return kind >= reflect.Int && kind <= reflect.Int64
}

func isUintKind(kind reflect.Kind) bool {
	return kind >= reflect.Uint && kind <= reflect.Uintptr
}

// KnownDTypes lists the element types accepted by ArgDType arguments and by constants.
var KnownDTypes = []dtypes.DType{
	dtypes.Bool,
	dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
	dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
	dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64,
}

var dtypeAliases = map[string]dtypes.DType{
	"float":  dtypes.Float32,
	"double": dtypes.Float64,
	"half":   dtypes.Float16,
}

// ParseDType converts a data type name ("float32", "UINT8", "float", ...) to a dtypes.DType.
func ParseDType(name string) (dtypes.DType, error) {
	name = strings.TrimSpace(name)
	if dtype, found := dtypeAliases[strings.ToLower(name)]; found {
		return dtype, nil
	}
	for _, dtype := range KnownDTypes {
		if strings.EqualFold(dtype.String(), name) {
			return dtype, nil
		}
	}
	return dtypes.InvalidDType, errors.Wrapf(ErrInvalidValue, "unknown data type %q", name)
}

func convertDType(value any) (any, error) {
	switch v := value.(type) {
	case dtypes.DType:
		for _, dtype := range KnownDTypes {
			if v == dtype {
				return v, nil
			}
		}
		return nil, errors.Wrapf(ErrInvalidValue, "data type %s not supported", v)
	case string:
		return ParseDType(v)
	}
	return nil, errors.Wrapf(ErrInvalidValue, "value %v (%T) is not a data type", value, value)
}
