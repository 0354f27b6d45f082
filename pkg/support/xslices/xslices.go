// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide missing functionality to the slices package.
package xslices

import (
	"cmp"
)

// Last returns the last element of a slice.
func Last[T any](slice []T) T {
	return slice[len(slice)-1]
}

// Copy creates a new (shallow) copy of T. A short cut to a call to `make` and then `copy`.
func Copy[T any](slice []T) []T {
	if len(slice) == 0 {
		return nil
	}
	slice2 := make([]T, len(slice))
	copy(slice2, slice)
	return slice2
}

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// Repeat returns a slice with `count` references to the same value.
func Repeat[T any](value T, count int) []T {
	out := make([]T, count)
	for ii := range out {
		out[ii] = value
	}
	return out
}

// Max scans the slice and returns the largest value. It returns the zero value for an empty slice.
func Max[T cmp.Ordered](slice []T) (max T) {
	for ii, v := range slice {
		if ii == 0 || v > max {
			max = v
		}
	}
	return
}

// Transpose converts rows into columns: out[j][i] = in[i][j].
//
// All rows must have the same length as the first one, otherwise it panics.
func Transpose[T any](in [][]T) [][]T {
	if len(in) == 0 {
		return nil
	}
	numCols := len(in[0])
	out := make([][]T, numCols)
	for j := range out {
		out[j] = make([]T, len(in))
		for i, row := range in {
			if len(row) != numCols {
				panic("xslices.Transpose: rows of different lengths")
			}
			out[j][i] = row[j]
		}
	}
	return out
}
