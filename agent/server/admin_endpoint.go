// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/ams/agent/backend"
	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/types"
)

// Admin endpoint creates and removes nodes. Every call is checked against
// the provider's token before the node table is touched.
type Admin struct {
	srv    *Server
	logger hclog.Logger
}

// CreateNode builds a new backend of the requested type and returns its
// identifier.
func (a *Admin) CreateNode(args *structs.NodeCreateRequest, reply *structs.NodeCreateResponse) error {
	defer metrics.MeasureSince([]string{"admin", "create_node"}, time.Now())
	return a.construct(args, reply, a.srv.registry.Create)
}

// OpenNode attaches a backend to existing state and returns a fresh
// identifier for it.
func (a *Admin) OpenNode(args *structs.NodeCreateRequest, reply *structs.NodeCreateResponse) error {
	defer metrics.MeasureSince([]string{"admin", "open_node"}, time.Now())
	return a.construct(args, reply, a.srv.registry.Open)
}

type constructFn func(name string, config map[string]interface{}) (backend.Backend, error)

func (a *Admin) construct(args *structs.NodeCreateRequest, reply *structs.NodeCreateResponse, fn constructFn) error {
	p, err := a.srv.provider(args.ProviderID)
	if err != nil {
		return err
	}
	if err := p.checkToken(args.Token); err != nil {
		a.logger.Warn("rejected node construction", "provider", args.ProviderID, "error", err)
		return err
	}

	config, err := backend.ParseConfig(args.Config)
	if err != nil {
		return err
	}

	id, err := types.GenerateNodeID()
	if err != nil {
		return err
	}

	b, err := fn(args.BackendType, config)
	if err != nil {
		a.logger.Error("failed to construct node", "type", args.BackendType, "error", err)
		return err
	}
	if err := p.nodes.Insert(id, b); err != nil {
		_ = b.Destroy()
		return err
	}

	a.logger.Info("node registered", "provider", args.ProviderID, "type", args.BackendType, "node", id)
	reply.NodeID = id
	return nil
}

// CloseNode drops a node from the table without destroying it.
func (a *Admin) CloseNode(args *structs.NodeAdminRequest, reply *struct{}) error {
	p, err := a.srv.provider(args.ProviderID)
	if err != nil {
		return err
	}
	if err := p.checkToken(args.Token); err != nil {
		return err
	}
	if _, err := p.nodes.Release(args.NodeID); err != nil {
		return err
	}
	a.logger.Info("node closed", "provider", args.ProviderID, "node", args.NodeID)
	return nil
}

// DestroyNode destroys a node and drops it from the table.
func (a *Admin) DestroyNode(args *structs.NodeAdminRequest, reply *struct{}) error {
	p, err := a.srv.provider(args.ProviderID)
	if err != nil {
		return err
	}
	if err := p.checkToken(args.Token); err != nil {
		return err
	}
	if _, err := p.nodes.Remove(args.NodeID); err != nil {
		if structs.IsErrNodeNotFound(err) {
			return err
		}
		a.logger.Error("node removed but destroy failed", "provider", args.ProviderID, "node", args.NodeID, "error", err)
		return err
	}
	a.logger.Info("node destroyed", "provider", args.ProviderID, "node", args.NodeID)
	return nil
}
