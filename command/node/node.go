// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package node

import (
	"github.com/mitchellh/cli"

	"github.com/hashicorp/ams/command/flags"
)

func New() *cmd {
	return &cmd{}
}

type cmd struct{}

func (c *cmd) Run(args []string) int {
	return cli.RunResultHelp
}

func (c *cmd) Synopsis() string {
	return synopsis
}

func (c *cmd) Help() string {
	return flags.Usage(help, nil)
}

const synopsis = "Interact with nodes held by an AMS server"
const help = `
Usage: ams node <subcommand> [options] [args]

  This command has subcommands for creating, using and destroying nodes.
  A node is a backend instance held by one provider of one server and is
  addressed by its id.

  Create a dummy node:

      $ ams node create dummy

  Add two numbers on it:

      $ ams node sum 1b4e28ba-2fa1-11d2-883f-0016d3cca427 42 51

  Submit a request for agreed execution and drain the queue:

      $ ams node submit -task-id=7 -timestamp=1 1b4e28ba-2fa1-11d2-883f-0016d3cca427
      $ ams node drain 1b4e28ba-2fa1-11d2-883f-0016d3cca427

  For more examples, ask for subcommand help.
`
