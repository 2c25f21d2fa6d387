// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package collective

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// retainRounds is how many of a group's most recent rounds the rendezvous
// remembers the outcome of, for answering Withdraw.
const retainRounds = 64

type roundKey struct {
	group string
	round uint64
}

type rankKey struct {
	roundKey
	rank int
}

type gathering struct {
	contributions map[int]Contribution
	withdrawCh    map[int]chan struct{}
	doneCh        chan struct{}
	result        Reduction
	collected     int
}

// Rendezvous is where the members of a collective meet. It is hosted by the
// root rank and reached by the others over RPC. Whether a round completed
// or was abandoned is decided here, under one lock, so every member learns
// the same outcome.
type Rendezvous struct {
	size   int
	logger hclog.Logger

	lock      sync.Mutex
	rounds    map[roundKey]*gathering
	completed map[roundKey]Reduction
	withdrawn map[rankKey]struct{}
	latest    map[string]uint64
	closed    bool
	closedCh  chan struct{}
}

func NewRendezvous(size int, logger hclog.Logger) *Rendezvous {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Rendezvous{
		size:      size,
		logger:    logger,
		rounds:    make(map[roundKey]*gathering),
		completed: make(map[roundKey]Reduction),
		withdrawn: make(map[rankKey]struct{}),
		latest:    make(map[string]uint64),
		closedCh:  make(chan struct{}),
	}
}

func (r *Rendezvous) Size() int {
	return r.size
}

// Contribute adds rank's contribution to (group, round) and blocks until
// the round is complete. When timeout passes first the contribution is
// withdrawn and ErrRoundAbandoned returned; a round that completed in the
// meantime is still reported as complete. Cancelling ctx withdraws the
// contribution the same way but returns ctx.Err().
func (r *Rendezvous) Contribute(ctx context.Context, group string, round uint64, rank int, c Contribution, timeout time.Duration) (Reduction, error) {
	if rank < 0 || rank >= r.size {
		return Reduction{}, fmt.Errorf("%w: rank %d, size %d", ErrInvalidRank, rank, r.size)
	}

	key := roundKey{group: group, round: round}

	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return Reduction{}, ErrClosed
	}
	if _, ok := r.withdrawn[rankKey{key, rank}]; ok {
		r.lock.Unlock()
		return Reduction{}, fmt.Errorf("%w: rank %d already withdrew from group %q round %d", ErrRoundAbandoned, rank, group, round)
	}
	if _, ok := r.completed[key]; ok {
		r.lock.Unlock()
		return Reduction{}, fmt.Errorf("%w: group %q round %d rank %d", ErrDuplicateContribution, group, round, rank)
	}
	g, ok := r.rounds[key]
	if !ok {
		g = &gathering{
			contributions: make(map[int]Contribution, r.size),
			withdrawCh:    make(map[int]chan struct{}, r.size),
			doneCh:        make(chan struct{}),
		}
		r.rounds[key] = g
	}
	if _, dup := g.contributions[rank]; dup {
		r.lock.Unlock()
		return Reduction{}, fmt.Errorf("%w: group %q round %d rank %d", ErrDuplicateContribution, group, round, rank)
	}
	g.contributions[rank] = c
	withdrawCh := make(chan struct{})
	g.withdrawCh[rank] = withdrawCh
	if len(g.contributions) == r.size {
		for _, contribution := range g.contributions {
			g.result.Add(contribution)
		}
		close(g.doneCh)
		r.completed[key] = g.result
		r.noteRoundLocked(key)
		r.logger.Trace("round complete", "group", group, "round", round, "count", g.result.Count)
	}
	r.lock.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var err error
	select {
	case <-g.doneCh:
		return r.collect(key, g), nil
	case <-withdrawCh:
		return Reduction{}, fmt.Errorf("%w: rank %d withdrew", ErrRoundAbandoned, rank)
	case <-expired:
		err = fmt.Errorf("%w: timed out after %s", ErrRoundAbandoned, timeout)
	case <-ctx.Done():
		err = ctx.Err()
	case <-r.closedCh:
		err = ErrClosed
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	select {
	case <-g.doneCh:
		// completed while we were giving up
		r.collectLocked(key, g)
		return g.result, nil
	default:
	}

	r.dropLocked(key, g, rank)
	r.logger.Debug("contribution withdrawn", "group", group, "round", round, "rank", rank, "error", err)
	return Reduction{}, err
}

// Withdraw settles rank's part in (group, round) for a member that lost the
// reply to its contribution. If the round completed, its Reduction is
// returned with completed set. Otherwise any contribution from rank is
// dropped and one arriving later is refused, so the round cannot complete
// with it.
func (r *Rendezvous) Withdraw(group string, round uint64, rank int) (red Reduction, completed bool, err error) {
	if rank < 0 || rank >= r.size {
		return Reduction{}, false, fmt.Errorf("%w: rank %d, size %d", ErrInvalidRank, rank, r.size)
	}

	key := roundKey{group: group, round: round}

	r.lock.Lock()
	defer r.lock.Unlock()

	if red, ok := r.completed[key]; ok {
		return red, true, nil
	}
	if g, ok := r.rounds[key]; ok {
		if ch, ok := g.withdrawCh[rank]; ok {
			close(ch)
			r.dropLocked(key, g, rank)
		}
	}
	r.withdrawn[rankKey{key, rank}] = struct{}{}
	r.noteRoundLocked(key)
	r.logger.Debug("contribution withdrawn by request", "group", group, "round", round, "rank", rank)
	return Reduction{}, false, nil
}

func (r *Rendezvous) dropLocked(key roundKey, g *gathering, rank int) {
	delete(g.contributions, rank)
	delete(g.withdrawCh, rank)
	if len(g.contributions) == 0 && r.rounds[key] == g {
		delete(r.rounds, key)
	}
}

// noteRoundLocked forgets outcomes that fell out of the group's window.
func (r *Rendezvous) noteRoundLocked(key roundKey) {
	if key.round > r.latest[key.group] {
		r.latest[key.group] = key.round
	}
	latest := r.latest[key.group]
	if latest <= retainRounds {
		return
	}
	floor := latest - retainRounds
	for k := range r.completed {
		if k.group == key.group && k.round < floor {
			delete(r.completed, k)
		}
	}
	for k := range r.withdrawn {
		if k.group == key.group && k.round < floor {
			delete(r.withdrawn, k)
		}
	}
}

func (r *Rendezvous) collect(key roundKey, g *gathering) Reduction {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.collectLocked(key, g)
	return g.result
}

func (r *Rendezvous) collectLocked(key roundKey, g *gathering) {
	g.collected++
	if g.collected == r.size && r.rounds[key] == g {
		delete(r.rounds, key)
	}
}

// Pending returns the number of rounds still waiting for contributions.
func (r *Rendezvous) Pending() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.rounds)
}

// Close releases every blocked contributor with ErrClosed.
func (r *Rendezvous) Close() {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.closedCh)
}
