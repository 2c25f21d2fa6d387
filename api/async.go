// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package api

import (
	"errors"
	"sync"
)

// ErrInvalidHandle is returned when using an AsyncRequest that was never
// issued or that has been released.
var ErrInvalidHandle = errors.New("invalid async request handle")

// AsyncRequest tracks an operation that runs in the background. Handles
// may be shared; the operation is only abandoned once every handle has
// been released, and the last release waits for it.
type AsyncRequest struct {
	mu    sync.Mutex
	state *asyncState
}

type asyncState struct {
	done chan struct{}
	err  error

	mu     sync.Mutex
	refs   int
	waited bool

	// apply copies the response into the caller's result. It runs once,
	// on the first Wait.
	apply func()
}

func newAsyncRequest(fn func() error, apply func()) *AsyncRequest {
	s := &asyncState{
		done:  make(chan struct{}),
		refs:  1,
		apply: apply,
	}
	go func() {
		defer close(s.done)
		s.err = fn()
	}()
	return &AsyncRequest{state: s}
}

func (r *AsyncRequest) get() *asyncState {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Valid reports whether the handle refers to an operation.
func (r *AsyncRequest) Valid() bool {
	return r.get() != nil
}

// Wait blocks until the operation has finished and returns its error. The
// first Wait delivers the result; later calls return the same error again.
func (r *AsyncRequest) Wait() error {
	s := r.get()
	if s == nil {
		return ErrInvalidHandle
	}
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.waited {
		s.waited = true
		if s.err == nil && s.apply != nil {
			s.apply()
		}
	}
	return s.err
}

// Completed reports without blocking whether the operation has finished.
func (r *AsyncRequest) Completed() (bool, error) {
	s := r.get()
	if s == nil {
		return false, ErrInvalidHandle
	}
	select {
	case <-s.done:
		return true, nil
	default:
		return false, nil
	}
}

// Share returns a second handle to the same operation.
func (r *AsyncRequest) Share() (*AsyncRequest, error) {
	s := r.get()
	if s == nil {
		return nil, ErrInvalidHandle
	}
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
	return &AsyncRequest{state: s}, nil
}

// Release invalidates the handle. Releasing the last handle to an
// operation that was never waited for waits for it and returns its error.
func (r *AsyncRequest) Release() error {
	if r == nil {
		return ErrInvalidHandle
	}
	r.mu.Lock()
	s := r.state
	r.state = nil
	r.mu.Unlock()
	if s == nil {
		return ErrInvalidHandle
	}

	s.mu.Lock()
	s.refs--
	last := s.refs == 0 && !s.waited
	s.mu.Unlock()

	if !last {
		return nil
	}
	return (&AsyncRequest{state: s}).Wait()
}
