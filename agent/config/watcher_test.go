// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hashicorp/ams/sdk/testutil"
)

func TestWatcher_SignalsWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "agent.hcl")
	require.NoError(t, os.WriteFile(file, []byte(`node_name = "a"`), 0600))

	w, err := NewWatcher([]string{file}, testutil.Logger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Make sure the mod time moves even on coarse clocks.
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.WriteFile(file, []byte(`node_name = "b"`), 0600))
	require.NoError(t, os.Chtimes(file, later, later))

	select {
	case <-w.Changed():
	case <-time.After(5 * time.Second):
		t.Fatal("no change signalled")
	}
}

func TestWatcher_RejectsMissingPath(t *testing.T) {
	_, err := NewWatcher([]string{filepath.Join(t.TempDir(), "missing.hcl")}, testutil.Logger(t))
	require.Error(t, err)
}

func TestWatcher_RejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "agent.hcl")
	link := filepath.Join(dir, "link.hcl")
	require.NoError(t, os.WriteFile(file, nil, 0600))
	require.NoError(t, os.Symlink(file, link))

	_, err := NewWatcher([]string{link}, testutil.Logger(t))
	require.Error(t, err)
}

func TestWatcher_StopsWithContext(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher([]string{dir}, testutil.Logger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))
}
