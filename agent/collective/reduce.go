// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package collective implements the blocking all-reduce the servers of one
// job use to compare their pending queue heads. Every round is identified
// by a group name and a round number; a round completes once every rank
// has contributed to it, and every rank then receives the same Reduction.
package collective

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicateContribution = errors.New("rank already contributed to this round")
	ErrInvalidRank           = errors.New("rank is outside the collective")
	ErrClosed                = errors.New("rendezvous is closed")

	// ErrRoundAbandoned means the rendezvous dropped the caller's
	// contribution before the round completed, so no member received a
	// result for it.
	ErrRoundAbandoned = errors.New("round abandoned")
)

// Contribution is one rank's input to a round. Present is false when the
// rank has nothing to offer, such as an empty queue.
type Contribution struct {
	Present bool
	TaskID  int64
}

// Reduction is the combined result of a round. Only present contributions
// are counted, so Count is smaller than the collective size whenever a rank
// had nothing to contribute.
type Reduction struct {
	Count int
	Sum   int64
	Min   int64
	Max   int64
}

// Add folds c into r.
func (r *Reduction) Add(c Contribution) {
	if !c.Present {
		return
	}
	if r.Count == 0 || c.TaskID < r.Min {
		r.Min = c.TaskID
	}
	if r.Count == 0 || c.TaskID > r.Max {
		r.Max = c.TaskID
	}
	r.Count++
	r.Sum += c.TaskID
}

// Reduce combines contributions in any order.
func Reduce(contributions ...Contribution) Reduction {
	var r Reduction
	for _, c := range contributions {
		r.Add(c)
	}
	return r
}

// Reducer is a member of a collective. Allreduce blocks until every member
// has contributed to the same (group, round).
//
// A positive timeout bounds the round. Only the rendezvous decides that a
// round timed out: it either returns the completed Reduction or reports
// ErrRoundAbandoned, and every member hears the same outcome. Cancelling
// ctx returns ctx.Err() without learning the outcome and is meant for
// shutdown.
type Reducer interface {
	Allreduce(ctx context.Context, group string, round uint64, c Contribution, timeout time.Duration) (Reduction, error)
	Rank() int
	Size() int
}
