// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package routine

import (
	"context"
	"errors"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Routine is a long running background task. It must return once ctx is
// cancelled.
type Routine func(ctx context.Context) error

type routineTracker struct {
	cancel    context.CancelFunc
	stoppedCh chan struct{} // closed when no longer running
}

func (r *routineTracker) running() bool {
	select {
	case <-r.stoppedCh:
		return false
	default:
		return true
	}
}

// Manager starts named routines and tracks them so they can be stopped
// individually or all together on shutdown.
type Manager struct {
	lock   sync.Mutex
	logger hclog.Logger

	routines map[string]*routineTracker
}

func NewManager(logger hclog.Logger) *Manager {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Manager{
		logger:   logger,
		routines: make(map[string]*routineTracker),
	}
}

func (m *Manager) IsRunning(name string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	if instance, ok := m.routines[name]; ok {
		return instance.running()
	}
	return false
}

// Start runs routine in its own goroutine under name. Starting a name that
// is already running is a no-op.
func (m *Manager) Start(ctx context.Context, name string, routine Routine) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if instance, ok := m.routines[name]; ok && instance.running() {
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rtCtx, cancel := context.WithCancel(ctx)
	instance := &routineTracker{
		cancel:    cancel,
		stoppedCh: make(chan struct{}),
	}
	m.routines[name] = instance

	go m.execute(rtCtx, name, routine, instance.stoppedCh)
	m.logger.Debug("started routine", "routine", name)
}

func (m *Manager) execute(ctx context.Context, name string, routine Routine, done chan struct{}) {
	defer close(done)

	err := routine(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("routine exited with error", "routine", name, "error", err)
		return
	}
	m.logger.Debug("stopped routine", "routine", name)
}

// Stop cancels the named routine. The returned channel is closed once it
// has exited.
func (m *Manager) Stop(name string) <-chan struct{} {
	m.lock.Lock()
	defer m.lock.Unlock()

	instance, ok := m.routines[name]
	if !ok {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	delete(m.routines, name)
	instance.cancel()
	return instance.stoppedCh
}

// StopAll cancels every routine and waits for all of them to exit.
func (m *Manager) StopAll() {
	m.lock.Lock()
	instances := make([]*routineTracker, 0, len(m.routines))
	for name, instance := range m.routines {
		m.logger.Debug("stopping routine", "routine", name)
		instance.cancel()
		instances = append(instances, instance)
	}
	m.routines = make(map[string]*routineTracker)
	m.lock.Unlock()

	for _, instance := range instances {
		<-instance.stoppedCh
	}
}
