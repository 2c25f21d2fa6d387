// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package collective

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// defaultSettleAfter is how long past the round timeout a member waits
	// for the root's answer before asking for it with Withdraw.
	defaultSettleAfter = 5 * time.Second

	minSettleWait = 50 * time.Millisecond
	maxSettleWait = 5 * time.Second
)

// LocalMember reduces against a Rendezvous in the same process. The root
// rank uses it, as do single-server deployments.
type LocalMember struct {
	rendezvous *Rendezvous
	rank       int
}

func NewLocalMember(rendezvous *Rendezvous, rank int) *LocalMember {
	return &LocalMember{rendezvous: rendezvous, rank: rank}
}

func (m *LocalMember) Allreduce(ctx context.Context, group string, round uint64, c Contribution, timeout time.Duration) (Reduction, error) {
	return m.rendezvous.Contribute(ctx, group, round, m.rank, c, timeout)
}

func (m *LocalMember) Rank() int { return m.rank }
func (m *LocalMember) Size() int { return m.rendezvous.Size() }

// RPCClient is satisfied by *pool.ConnPool.
type RPCClient interface {
	RPC(addr net.Addr, method string, args interface{}, reply interface{}) error
}

// RPCMember reduces against the Rendezvous hosted by the root rank.
type RPCMember struct {
	rank   int
	size   int
	root   net.Addr
	client RPCClient
	logger hclog.Logger

	settleAfter time.Duration
	settleWait  time.Duration
}

func NewRPCMember(rank, size int, root net.Addr, client RPCClient, logger hclog.Logger) *RPCMember {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &RPCMember{
		rank:        rank,
		size:        size,
		root:        root,
		client:      client,
		logger:      logger,
		settleAfter: defaultSettleAfter,
		settleWait:  minSettleWait,
	}
}

func (m *RPCMember) Rank() int { return m.rank }
func (m *RPCMember) Size() int { return m.size }

type allreduceResult struct {
	reply AllreduceResponse
	err   error
}

// Allreduce sends the contribution to the root and waits for its answer.
// The timeout travels with the request and is enforced by the root. When
// the answer is lost, or does not arrive well after the timeout, the member
// settles the round with Withdraw instead of guessing.
func (m *RPCMember) Allreduce(ctx context.Context, group string, round uint64, c Contribution, timeout time.Duration) (Reduction, error) {
	args := AllreduceRequest{
		Group:        group,
		Round:        round,
		Rank:         m.rank,
		Size:         m.size,
		Contribution: c,
		Timeout:      timeout,
	}

	resultCh := make(chan allreduceResult, 1)
	go func() {
		var reply AllreduceResponse
		err := m.client.RPC(m.root, "Collective.Allreduce", &args, &reply)
		resultCh <- allreduceResult{reply: reply, err: err}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout + m.settleAfter)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case res := <-resultCh:
		if res.err == nil {
			return res.reply.Reduction, nil
		}
		var serverErr rpc.ServerError
		if !errors.As(res.err, &serverErr) {
			m.logger.Warn("lost the reply from root, settling round",
				"group", group,
				"round", round,
				"error", res.err,
			)
			return m.settle(ctx, group, round)
		}
		if strings.Contains(string(serverErr), ErrRoundAbandoned.Error()) {
			return Reduction{}, fmt.Errorf("%w by root %s: %s", ErrRoundAbandoned, m.root, serverErr)
		}
		return Reduction{}, fmt.Errorf("allreduce with root %s failed: %w", m.root, res.err)
	case <-expired:
		m.logger.Warn("no answer from root, settling round", "group", group, "round", round, "timeout", timeout)
		return m.settle(ctx, group, round)
	case <-ctx.Done():
		m.logger.Debug("abandoned reduction", "group", group, "round", round, "error", ctx.Err())
		return Reduction{}, ctx.Err()
	}
}

// settle asks the root what became of this member's contribution. The root
// either returns the completed round or withdraws the contribution, after
// which the round can no longer complete with it. Transport failures are
// retried until ctx is done.
func (m *RPCMember) settle(ctx context.Context, group string, round uint64) (Reduction, error) {
	args := WithdrawRequest{
		Group: group,
		Round: round,
		Rank:  m.rank,
		Size:  m.size,
	}
	wait := m.settleWait
	for {
		var reply WithdrawResponse
		err := m.client.RPC(m.root, "Collective.Withdraw", &args, &reply)
		if err == nil {
			if reply.Completed {
				m.logger.Debug("round completed at root", "group", group, "round", round)
				return reply.Reduction, nil
			}
			return Reduction{}, fmt.Errorf("%w: withdrawn from root %s", ErrRoundAbandoned, m.root)
		}
		var serverErr rpc.ServerError
		if errors.As(err, &serverErr) {
			return Reduction{}, fmt.Errorf("settling round %d with root %s failed: %w", round, m.root, err)
		}

		m.logger.Warn("failed to reach root, retrying", "group", group, "round", round, "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Reduction{}, ctx.Err()
		case <-timer.C:
		}
		if wait *= 2; wait > maxSettleWait {
			wait = maxSettleWait
		}
	}
}
