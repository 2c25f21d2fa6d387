// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hashicorp/ams/sdk/testutil"
)

// NewTestServer starts a server on a free loopback port for use by tests in
// other packages. cb may adjust the configuration before it starts. The
// server is shut down when the test ends.
func NewTestServer(t testing.TB, cb func(*Config)) *Server {
	t.Helper()
	config := DefaultConfig()
	config.NodeName = t.Name()
	config.RPCAddr = &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
	config.Logger = testutil.Logger(t)
	config.RetryInterval = time.Millisecond
	if cb != nil {
		cb(config)
	}
	s, err := NewServer(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}
