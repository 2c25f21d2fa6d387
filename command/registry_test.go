// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hashicorp/ams/command/cli"
)

func TestRegisteredCommands(t *testing.T) {
	cmds := RegisteredCommands(cli.NewMockUI())
	for _, name := range []string{"agent", "node", "node create", "node drain", "shutdown", "version"} {
		require.Contains(t, cmds, name)
	}

	for name, factory := range cmds {
		if name == "agent" {
			// Constructing the agent installs signal handlers.
			continue
		}
		c, err := factory()
		require.NoError(t, err)
		require.NotEmpty(t, c.Synopsis(), name)
		require.False(t, strings.ContainsRune(c.Help(), '\t'), "%s help has tabs", name)
	}
}

func TestRegisterCommands_Duplicate(t *testing.T) {
	require.Panics(t, func() {
		registerCommands(cli.NewMockUI(), RegisteredCommands(cli.NewMockUI()),
			entry{"version", nil})
	})
}
