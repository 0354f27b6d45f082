// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

// RewriteHook is called by every Operator call, before any node is created. It can be used, for instance,
// to lower conditional execution by rewriting the inputs of the operators called inside a branch.
//
// Calls with multiple input sets are rejected while a hook is installed.
type RewriteHook interface {
	// Rewrite receives the positional inputs and keyword arguments of the call, and returns the ones
	// to use instead. It must not have side effects on the Graph.
	Rewrite(inputs []any, kwargs Args) ([]any, Args, error)

	// Annotate is called with the result of the call, after its nodes were added to the Graph.
	Annotate(result *Result)
}
