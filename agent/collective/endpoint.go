// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package collective

import (
	"context"
	"fmt"
	"time"
)

type AllreduceRequest struct {
	Group        string
	Round        uint64
	Rank         int
	Size         int
	Contribution Contribution

	// Timeout bounds how long the root holds the contribution. Zero waits
	// until the round completes.
	Timeout time.Duration
}

type AllreduceResponse struct {
	Reduction Reduction
}

type WithdrawRequest struct {
	Group string
	Round uint64
	Rank  int
	Size  int
}

type WithdrawResponse struct {
	// Completed is set when the round had already completed, in which case
	// Reduction is its result.
	Completed bool
	Reduction Reduction
}

// Endpoint exposes a Rendezvous over net/rpc as the Collective service.
type Endpoint struct {
	rendezvous *Rendezvous
	ctx        context.Context
}

// NewEndpoint serves r. Outstanding calls are released when ctx is done.
func NewEndpoint(ctx context.Context, r *Rendezvous) *Endpoint {
	return &Endpoint{rendezvous: r, ctx: ctx}
}

func (e *Endpoint) checkSize(rank, size int) error {
	if size != e.rendezvous.Size() {
		return fmt.Errorf("collective size mismatch: rank %d expects %d members, root has %d",
			rank, size, e.rendezvous.Size())
	}
	return nil
}

func (e *Endpoint) Allreduce(args *AllreduceRequest, reply *AllreduceResponse) error {
	if err := e.checkSize(args.Rank, args.Size); err != nil {
		return err
	}

	red, err := e.rendezvous.Contribute(e.ctx, args.Group, args.Round, args.Rank, args.Contribution, args.Timeout)
	if err != nil {
		return err
	}
	reply.Reduction = red
	return nil
}

func (e *Endpoint) Withdraw(args *WithdrawRequest, reply *WithdrawResponse) error {
	if err := e.checkSize(args.Rank, args.Size); err != nil {
		return err
	}

	red, completed, err := e.rendezvous.Withdraw(args.Group, args.Round, args.Rank)
	if err != nil {
		return err
	}
	reply.Completed = completed
	reply.Reduction = red
	return nil
}
