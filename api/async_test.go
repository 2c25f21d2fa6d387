// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package api

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAsyncRequest_WaitOnce(t *testing.T) {
	var applied int32
	release := make(chan struct{})
	req := newAsyncRequest(func() error {
		<-release
		return nil
	}, func() { atomic.AddInt32(&applied, 1) })

	done, err := req.Completed()
	require.NoError(t, err)
	require.False(t, done)

	close(release)
	require.NoError(t, req.Wait())
	require.NoError(t, req.Wait())
	require.Equal(t, int32(1), atomic.LoadInt32(&applied))

	done, err = req.Completed()
	require.NoError(t, err)
	require.True(t, done)
}

func TestAsyncRequest_Error(t *testing.T) {
	boom := errors.New("boom")
	applied := false
	req := newAsyncRequest(func() error { return boom }, func() { applied = true })

	require.ErrorIs(t, req.Wait(), boom)
	require.ErrorIs(t, req.Wait(), boom)
	require.False(t, applied)
}

func TestAsyncRequest_ReleaseWaits(t *testing.T) {
	var finished int32
	req := newAsyncRequest(func() error {
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
		return nil
	}, nil)

	require.NoError(t, req.Release())
	require.Equal(t, int32(1), atomic.LoadInt32(&finished))
	require.False(t, req.Valid())
	require.ErrorIs(t, req.Wait(), ErrInvalidHandle)
	require.ErrorIs(t, req.Release(), ErrInvalidHandle)
	_, err := req.Completed()
	require.ErrorIs(t, err, ErrInvalidHandle)
}

func TestAsyncRequest_SharedReleaseWaitsOnLast(t *testing.T) {
	release := make(chan struct{})
	var applied int32
	req := newAsyncRequest(func() error {
		<-release
		return nil
	}, func() { atomic.AddInt32(&applied, 1) })

	shared, err := req.Share()
	require.NoError(t, err)
	require.True(t, shared.Valid())

	// Not the last owner, so this does not block.
	require.NoError(t, req.Release())
	require.False(t, req.Valid())

	done, err := shared.Completed()
	require.NoError(t, err)
	require.False(t, done)

	close(release)
	require.NoError(t, shared.Release())
	require.Equal(t, int32(1), atomic.LoadInt32(&applied))
}

func TestAsyncRequest_Nil(t *testing.T) {
	var req *AsyncRequest
	require.False(t, req.Valid())
	require.ErrorIs(t, req.Wait(), ErrInvalidHandle)
	_, err := req.Share()
	require.ErrorIs(t, err, ErrInvalidHandle)
}
