// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package api

import (
	"golang.org/x/sync/errgroup"

	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/types"
)

// Admin can be used to perform the token gated operations of a provider:
// creating, opening, closing and destroying nodes, and shutting the server
// down.
type Admin struct {
	c *Client
}

// CreateNode asks the provider at addr to construct a new node of
// backendType from config, a JSON or YAML document.
func (a *Admin) CreateNode(addr string, provider structs.ProviderID, token, backendType, config string) (types.NodeID, error) {
	return a.construct("Admin.CreateNode", addr, provider, token, backendType, config)
}

// OpenNode is like CreateNode but attaches to an existing backend.
func (a *Admin) OpenNode(addr string, provider structs.ProviderID, token, backendType, config string) (types.NodeID, error) {
	return a.construct("Admin.OpenNode", addr, provider, token, backendType, config)
}

func (a *Admin) construct(method, addr string, provider structs.ProviderID, token, backendType, config string) (types.NodeID, error) {
	args := structs.NodeCreateRequest{
		ProviderID:  provider,
		Token:       token,
		BackendType: backendType,
		Config:      config,
	}
	var out structs.NodeCreateResponse
	if err := a.c.call(addr, method, &args, &out); err != nil {
		return "", err
	}
	return out.NodeID, nil
}

// CloseNode releases the node without destroying its backend.
func (a *Admin) CloseNode(addr string, provider structs.ProviderID, token string, id types.NodeID) error {
	return a.nodeAdmin("Admin.CloseNode", addr, provider, token, id)
}

// DestroyNode destroys the node's backend and removes it.
func (a *Admin) DestroyNode(addr string, provider structs.ProviderID, token string, id types.NodeID) error {
	return a.nodeAdmin("Admin.DestroyNode", addr, provider, token, id)
}

func (a *Admin) nodeAdmin(method, addr string, provider structs.ProviderID, token string, id types.NodeID) error {
	args := structs.NodeAdminRequest{
		ProviderID: provider,
		Token:      token,
		NodeID:     id,
	}
	var out struct{}
	return a.c.call(addr, method, &args, &out)
}

// ShutdownServer asks the server at addr to shut down. The token of the
// given provider is checked.
func (a *Admin) ShutdownServer(addr string, provider structs.ProviderID, token string) error {
	args := structs.ShutdownRequest{
		ProviderID: provider,
		Token:      token,
	}
	var out struct{}
	return a.c.call(addr, "Status.Shutdown", &args, &out)
}

// CreateNodeOnAll creates one node on each server in addrs concurrently.
// The returned ids are in the order of addrs. On any failure the first
// error is returned and nodes created on other servers are left in place.
func (a *Admin) CreateNodeOnAll(addrs []string, provider structs.ProviderID, token, backendType, config string) ([]types.NodeID, error) {
	ids := make([]types.NodeID, len(addrs))
	var g errgroup.Group
	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			id, err := a.CreateNode(addr, provider, token, backendType, config)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}
