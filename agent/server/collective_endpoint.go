// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"github.com/hashicorp/ams/agent/collective"
	"github.com/hashicorp/ams/agent/structs"
)

// Collective endpoint serves the rendezvous to the other ranks. Only rank 0
// hosts one.
type Collective struct {
	srv *Server
}

func (c *Collective) Allreduce(args *collective.AllreduceRequest, reply *collective.AllreduceResponse) error {
	if c.srv.rendezvous == nil {
		return structs.ErrNotRendezvousRoot
	}
	return collective.NewEndpoint(c.srv.ctx, c.srv.rendezvous).Allreduce(args, reply)
}

func (c *Collective) Withdraw(args *collective.WithdrawRequest, reply *collective.WithdrawResponse) error {
	if c.srv.rendezvous == nil {
		return structs.ErrNotRendezvousRoot
	}
	return collective.NewEndpoint(c.srv.ctx, c.srv.rendezvous).Withdraw(args, reply)
}
