// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"crypto/subtle"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/ams/agent/collective"
	"github.com/hashicorp/ams/agent/pending"
	"github.com/hashicorp/ams/agent/structs"
)

// provider is one independent instance of the node service: its own
// token, nodes, pending queue and agreement rounds.
type provider struct {
	id       structs.ProviderID
	token    string
	nodes    *NodeTable
	queue    *pending.Queue
	protocol *pending.Protocol
	logger   hclog.Logger
}

func newProvider(conf ProviderConfig, config *Config, reducer collective.Reducer, logger hclog.Logger) *provider {
	p := &provider{
		id:     conf.ID,
		token:  conf.Token,
		nodes:  NewNodeTable(),
		queue:  pending.NewQueue(),
		logger: logger,
	}
	p.protocol = pending.NewProtocol(pending.Config{
		Group:         conf.ID.ReductionGroup(),
		Check:         config.Check,
		ReduceTimeout: config.ReduceTimeout,
		RetryInterval: config.RetryInterval,
		RetryBurst:    config.RetryBurst,
	}, p.queue, reducer, p.executeRequest, logger)
	return p
}

// checkToken verifies a caller supplied token. An empty configured token
// disables the check.
func (p *provider) checkToken(token string) error {
	if p.token == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(p.token), []byte(token)) != 1 {
		return structs.ErrInvalidToken
	}
	return nil
}

// executeRequest runs an agreed request against its node.
func (p *provider) executeRequest(req *pending.Request) error {
	b, err := p.nodes.Lookup(req.NodeID)
	if err != nil {
		return fmt.Errorf("%w: %v", pending.ErrDiscarded, err)
	}
	if err := b.OpenPublishExecute(req.OpenOptions, req.Mesh, req.MeshSize, req.Actions); err != nil {
		return fmt.Errorf("%w: %v", structs.ErrOperationFailed, err)
	}
	return nil
}
