// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/lib"
)

var ErrUnknownBackendType = structs.ErrUnknownBackendType

type registration struct {
	create Factory
	open   Factory
}

// Registry maps backend type names to their create and open functions. It
// is populated once while the agent starts and only read afterwards.
type Registry struct {
	logger hclog.Logger

	lock  sync.RWMutex
	types map[string]registration
}

func NewRegistry(logger hclog.Logger) *Registry {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Registry{
		logger: logger,
		types:  make(map[string]registration),
	}
}

// Register associates name with its constructors. Registering the same
// name twice is an error.
func (r *Registry) Register(name string, create, open Factory) error {
	if err := lib.ValidateBasicName("backend type", name); err != nil {
		return err
	}
	if create == nil || open == nil {
		return fmt.Errorf("backend type %q requires both a create and an open function", name)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.types[name]; ok {
		return fmt.Errorf("backend type %q is already registered", name)
	}
	r.types[name] = registration{create: create, open: open}
	return nil
}

// Create builds a new node of the named type.
func (r *Registry) Create(name string, config map[string]interface{}) (Backend, error) {
	return r.construct("create", name, config)
}

// Open attaches to an existing node of the named type.
func (r *Registry) Open(name string, config map[string]interface{}) (Backend, error) {
	return r.construct("open", name, config)
}

func (r *Registry) construct(op, name string, config map[string]interface{}) (Backend, error) {
	r.lock.RLock()
	reg, ok := r.types[name]
	r.lock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackendType, name)
	}

	fn := reg.create
	if op == "open" {
		fn = reg.open
	}

	b, err := fn(r.logger.Named(name), config)
	if err != nil {
		return nil, &ConstructionError{Type: name, Op: op, Err: err}
	}
	if b == nil {
		return nil, &ConstructionError{Type: name, Op: op, Err: fmt.Errorf("constructor returned no backend")}
	}
	return b, nil
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
