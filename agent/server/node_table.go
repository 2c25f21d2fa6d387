// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp/ams/agent/backend"
	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/types"
)

// NodeTable owns the backends of one provider. Every operation holds the
// table lock for its whole duration.
type NodeTable struct {
	lock  sync.Mutex
	nodes map[types.NodeID]backend.Backend
}

func NewNodeTable() *NodeTable {
	return &NodeTable{nodes: make(map[types.NodeID]backend.Backend)}
}

func nodeNotFound(id types.NodeID) error {
	return fmt.Errorf("%w: %s", structs.ErrNodeNotFound, id)
}

// Insert takes ownership of b under id.
func (t *NodeTable) Insert(id types.NodeID, b backend.Backend) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if _, ok := t.nodes[id]; ok {
		return fmt.Errorf("node %s already exists", id)
	}
	t.nodes[id] = b
	return nil
}

func (t *NodeTable) Lookup(id types.NodeID) (backend.Backend, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	b, ok := t.nodes[id]
	if !ok {
		return nil, nodeNotFound(id)
	}
	return b, nil
}

// Remove destroys the node, drops it from the table and returns it. The
// entry is removed even when Destroy fails; the node and the failure are
// both returned.
func (t *NodeTable) Remove(id types.NodeID) (backend.Backend, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	b, ok := t.nodes[id]
	if !ok {
		return nil, nodeNotFound(id)
	}
	delete(t.nodes, id)
	if err := b.Destroy(); err != nil {
		return b, fmt.Errorf("%w: destroy %s: %v", structs.ErrOperationFailed, id, err)
	}
	return b, nil
}

// Release drops the node from the table without destroying it and hands
// it back to the caller.
func (t *NodeTable) Release(id types.NodeID) (backend.Backend, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	b, ok := t.nodes[id]
	if !ok {
		return nil, nodeNotFound(id)
	}
	delete(t.nodes, id)
	return b, nil
}

func (t *NodeTable) Len() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.nodes)
}

// IDs returns the identifiers of every node in sorted order.
func (t *NodeTable) IDs() []types.NodeID {
	t.lock.Lock()
	defer t.lock.Unlock()

	ids := make([]types.NodeID, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DestroyAll destroys and removes every node, collecting the failures.
func (t *NodeTable) DestroyAll() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	var result error
	for id, b := range t.nodes {
		if err := b.Destroy(); err != nil {
			result = multierror.Append(result, fmt.Errorf("destroy %s: %w", id, err))
		}
		delete(t.nodes, id)
	}
	return result
}
