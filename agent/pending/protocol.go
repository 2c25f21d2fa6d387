// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package pending

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"github.com/hashicorp/ams/agent/collective"
)

var (
	// ErrAgreementNotReached is returned by Round when the servers did not
	// all hold the same head. Nothing was dequeued and the round may be
	// retried.
	ErrAgreementNotReached = errors.New("agreement not reached")

	// ErrDiscarded is returned by an ExecuteFunc that dropped the request
	// without executing it, for example because its node is gone.
	ErrDiscarded = errors.New("request discarded")
)

// ExecuteFunc runs an agreed request. The request has already left the
// queue whatever the outcome.
type ExecuteFunc func(req *Request) error

type Config struct {
	// Group is the reduction group shared by the same provider on every
	// server.
	Group string

	Check Check

	// ReduceTimeout bounds a single reduction at the rendezvous. Zero
	// blocks until every server has contributed.
	ReduceTimeout time.Duration

	// RetryInterval and RetryBurst rate limit the rounds Drain retries
	// after a disagreement.
	RetryInterval time.Duration
	RetryBurst    int
}

// Stats counts what the protocol has done since it was created.
type Stats struct {
	Rounds        uint64
	Agreed        uint64
	Disagreed     uint64
	Executed      uint64
	ExecuteFailed uint64
	Discarded     uint64
}

// Protocol runs agreement rounds over one provider's queue. Rounds are
// numbered locally and matched by number across servers, so every server
// must run the same number of rounds: one per accepted submission when
// scheduled eagerly, plus the rounds of explicit drains.
type Protocol struct {
	config  Config
	queue   *Queue
	reducer collective.Reducer
	execute ExecuteFunc
	logger  hclog.Logger
	limiter *rate.Limiter
	labels  []metrics.Label

	// lock serializes rounds.
	lock  sync.Mutex
	round uint64

	owedLock sync.Mutex
	owed     uint64
	notifyCh chan struct{}

	rounds        atomic.Uint64
	agreed        atomic.Uint64
	disagreed     atomic.Uint64
	executed      atomic.Uint64
	executeFailed atomic.Uint64
	discarded     atomic.Uint64
}

func NewProtocol(config Config, queue *Queue, reducer collective.Reducer, execute ExecuteFunc, logger hclog.Logger) *Protocol {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	limit := rate.Inf
	if config.RetryInterval > 0 {
		limit = rate.Every(config.RetryInterval)
	}
	burst := config.RetryBurst
	if burst <= 0 {
		burst = 1
	}
	return &Protocol{
		config:   config,
		queue:    queue,
		reducer:  reducer,
		execute:  execute,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, burst),
		labels:   []metrics.Label{{Name: "group", Value: config.Group}},
		notifyCh: make(chan struct{}, 1),
	}
}

// Round runs one agreement round. It returns nil when the head was agreed
// on and executed, ErrAgreementNotReached when it was not, and any other
// error when the reduction itself failed.
func (p *Protocol) Round(ctx context.Context) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.roundLocked(ctx)
}

func (p *Protocol) roundLocked(ctx context.Context) error {
	p.round++
	round := p.round
	p.rounds.Add(1)
	defer metrics.MeasureSinceWithLabels([]string{"pending", "round"}, time.Now(), p.labels)

	head, ok := p.queue.Peek()
	local := collective.Contribution{Present: ok}
	if ok {
		local.TaskID = head.TaskID
	}

	red, err := p.reducer.Allreduce(ctx, p.config.Group, round, local, p.config.ReduceTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, collective.ErrRoundAbandoned) {
			p.logger.Warn("reduction abandoned, no server executes this round",
				"round", round,
				"timeout", p.config.ReduceTimeout,
				"error", err,
			)
			p.disagree()
			return ErrAgreementNotReached
		}
		return fmt.Errorf("reduction for round %d failed: %w", round, err)
	}

	if !Agreed(p.config.Check, local, red, p.reducer.Size()) {
		p.logger.Trace("no agreement",
			"round", round,
			"head", ok,
			"task_id", local.TaskID,
			"count", red.Count,
			"min", red.Min,
			"max", red.Max,
		)
		p.disagree()
		return ErrAgreementNotReached
	}

	p.agreed.Add(1)
	metrics.IncrCounterWithLabels([]string{"pending", "agreed"}, 1, p.labels)

	if !p.queue.Remove(head) {
		// Only rounds dequeue and they hold p.lock, so the head can only
		// be gone if the queue was discarded underneath us.
		p.logger.Warn("agreed request left the queue before execution", "round", round, "task_id", head.TaskID)
		return nil
	}
	p.run(round, head)
	metrics.SetGaugeWithLabels([]string{"pending", "queue_length"}, float32(p.queue.Len()), p.labels)
	return nil
}

func (p *Protocol) disagree() {
	p.disagreed.Add(1)
	metrics.IncrCounterWithLabels([]string{"pending", "disagreed"}, 1, p.labels)
}

func (p *Protocol) run(round uint64, req *Request) {
	err := p.execute(req)
	switch {
	case err == nil:
		p.executed.Add(1)
		metrics.IncrCounterWithLabels([]string{"pending", "executed"}, 1, p.labels)
		p.logger.Debug("executed agreed request",
			"round", round,
			"node", req.NodeID,
			"task_id", req.TaskID,
			"timestamp", req.Timestamp,
		)
	case errors.Is(err, ErrDiscarded):
		p.discarded.Add(1)
		metrics.IncrCounterWithLabels([]string{"pending", "discarded"}, 1, p.labels)
		p.logger.Warn("discarded agreed request",
			"round", round,
			"node", req.NodeID,
			"task_id", req.TaskID,
			"error", err,
		)
	default:
		p.executeFailed.Add(1)
		metrics.IncrCounterWithLabels([]string{"pending", "execute_failed"}, 1, p.labels)
		p.logger.Error("failed to execute agreed request",
			"round", round,
			"node", req.NodeID,
			"task_id", req.TaskID,
			"error", err,
		)
	}
}

type step int

const (
	stepIdle step = iota
	stepOwed
	stepDrain
)

// next runs the next owed round if there is one, otherwise a drain round
// when drain is set and the queue is not empty. The decision is taken under
// the round lock so a round owed to a submission is never mistaken for a
// drain round.
func (p *Protocol) next(ctx context.Context, drain bool) (step, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.takeOwed() {
		return stepOwed, p.roundLocked(ctx)
	}
	if !drain || p.queue.Len() == 0 {
		return stepIdle, nil
	}
	return stepDrain, p.roundLocked(ctx)
}

// Drain runs rounds until the local queue is empty. Rounds still owed to
// eager scheduling are run first. Retries after a disagreement wait on the
// retry rate limiter.
func (p *Protocol) Drain(ctx context.Context) error {
	for {
		kind, err := p.next(ctx, true)
		switch {
		case kind == stepIdle:
			return nil
		case err == nil:
		case errors.Is(err, ErrAgreementNotReached):
			if kind == stepOwed {
				continue
			}
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		default:
			return err
		}
	}
}

// Schedule owes the collective one round. Call it once per accepted
// submission when rounds are run eagerly.
func (p *Protocol) Schedule() {
	p.owedLock.Lock()
	p.owed++
	p.owedLock.Unlock()

	select {
	case p.notifyCh <- struct{}{}:
	default:
	}
}

func (p *Protocol) takeOwed() bool {
	p.owedLock.Lock()
	defer p.owedLock.Unlock()
	if p.owed == 0 {
		return false
	}
	p.owed--
	return true
}

// Run executes scheduled rounds until ctx is done.
func (p *Protocol) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.notifyCh:
		}

		for {
			kind, err := p.next(ctx, false)
			if kind == stepIdle {
				break
			}
			if err == nil || errors.Is(err, ErrAgreementNotReached) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("agreement round failed", "error", err)
		}
	}
}

// Discard drops every queued request, used when the provider shuts down.
func (p *Protocol) Discard() int {
	dropped := p.queue.DiscardAll()
	for _, req := range dropped {
		p.discarded.Add(1)
		p.logger.Debug("discarded pending request at shutdown", "node", req.NodeID, "task_id", req.TaskID)
	}
	return len(dropped)
}

func (p *Protocol) QueueLength() int {
	return p.queue.Len()
}

func (p *Protocol) Stats() Stats {
	return Stats{
		Rounds:        p.rounds.Load(),
		Agreed:        p.agreed.Load(),
		Disagreed:     p.disagreed.Load(),
		Executed:      p.executed.Load(),
		ExecuteFailed: p.executeFailed.Load(),
		Discarded:     p.discarded.Load(),
	}
}
