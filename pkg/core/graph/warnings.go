// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"sync"

	"k8s.io/klog/v2"
)

// DeprecationWarning is the advisory event emitted when a deprecated operator or argument is used.
// It never blocks the construction of the node.
type DeprecationWarning struct {
	// Op is the name of the operator.
	Op string

	// Arg is the deprecated argument, or empty if the whole operator is deprecated.
	Arg string

	// ReplacedBy is the argument (or operator, if Arg is empty) that replaces the deprecated one, if any.
	ReplacedBy string

	// Removed is set if the argument was dropped: its value is ignored.
	Removed bool

	// Message is an optional explanation provided by the schema.
	Message string
}

// String implements fmt.Stringer.
func (w DeprecationWarning) String() string {
	var msg string
	switch {
	case w.Arg == "" && w.ReplacedBy != "":
		msg = fmt.Sprintf("operator %q is deprecated, use %q instead", w.Op, w.ReplacedBy)
	case w.Arg == "":
		msg = fmt.Sprintf("operator %q is deprecated", w.Op)
	case w.ReplacedBy != "":
		msg = fmt.Sprintf("argument %q of operator %q is deprecated, use %q instead", w.Arg, w.Op, w.ReplacedBy)
	case w.Removed:
		msg = fmt.Sprintf("argument %q of operator %q is no longer used and will be removed in a future release",
			w.Arg, w.Op)
	default:
		msg = fmt.Sprintf("argument %q of operator %q is deprecated", w.Arg, w.Op)
	}
	if w.Message != "" {
		msg = msg + ". " + w.Message
	}
	return msg
}

// WarningSink receives the advisory events emitted while building nodes.
type WarningSink interface {
	Warn(w DeprecationWarning)
}

// KlogWarnings is the default WarningSink: it logs warnings with klog.
type KlogWarnings struct{}

// Warn implements WarningSink.
func (KlogWarnings) Warn(w DeprecationWarning) {
	klog.Warningf("DeprecationWarning: %s", w)
}

// RecordingWarnings is a WarningSink that keeps all warnings received. It is safe for concurrent use.
type RecordingWarnings struct {
	mu       sync.Mutex
	warnings []DeprecationWarning
}

// Warn implements WarningSink.
func (r *RecordingWarnings) Warn(w DeprecationWarning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

// Warnings returns a copy of the warnings received so far.
func (r *RecordingWarnings) Warnings() []DeprecationWarning {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DeprecationWarning(nil), r.warnings...)
}

// Reset discards the warnings received so far.
func (r *RecordingWarnings) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = nil
}
