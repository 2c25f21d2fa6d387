// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package shutdown

import (
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/ams/agent/server"
)

func TestShutdownCommand_noTabs(t *testing.T) {
	if strings.ContainsRune(New(cli.NewMockUi()).Help(), '\t') {
		t.Fatal("help has tabs")
	}
}

func TestShutdownCommand(t *testing.T) {
	s := server.NewTestServer(t, func(c *server.Config) {
		c.Providers = []server.ProviderConfig{{ID: 0, Token: "secret"}}
	})
	addr := s.Addr().String()

	ui := cli.NewMockUi()
	require.Equal(t, 1, New(ui).Run([]string{"-address=" + addr, "-token=wrong"}))
	require.Contains(t, ui.ErrorWriter.String(), "Invalid security token")

	ui = cli.NewMockUi()
	require.Equal(t, 0, New(ui).Run([]string{"-address=" + addr, "-token=secret"}), ui.ErrorWriter.String())

	select {
	case <-s.ShutdownCh():
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
