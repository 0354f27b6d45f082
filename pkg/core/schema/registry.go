// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package schema

import (
	"sync"

	"github.com/gomlx/pipegraph/pkg/support/sets"
	"github.com/pkg/errors"
)

// Provider gives access to operator schemas by name.
type Provider interface {
	Schema(name string) (View, error)
}

// Registry is a Provider backed by an in-memory map. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]View
}

var _ Provider = (*Registry)(nil)

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]View)}
}

// Add registers the given schemas, replacing previous ones with the same name.
// It returns the Registry itself, so calls can be cascaded.
func (r *Registry) Add(views ...View) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range views {
		r.schemas[v.Name()] = v
	}
	return r
}

// Schema implements Provider.
func (r *Registry) Schema(name string) (View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, found := r.schemas[name]
	if !found {
		return nil, errors.Wrapf(ErrUnknownSchema, "schema %q not registered", name)
	}
	return v, nil
}

// Names returns the sorted names of the registered schemas.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := sets.Make[string](len(r.schemas))
	for name := range r.schemas {
		names.Insert(name)
	}
	return sets.Sorted(names)
}
