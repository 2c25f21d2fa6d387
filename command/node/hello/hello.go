// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package hello

import (
	"flag"
	"fmt"

	"github.com/mitchellh/cli"

	"github.com/hashicorp/ams/command/flags"
)

func New(ui cli.Ui) *cmd {
	c := &cmd{UI: ui}
	c.init()
	return c
}

type cmd struct {
	UI    cli.Ui
	flags *flags.ClientFlags
	fs    *flag.FlagSet
	help  string
}

func (c *cmd) init() {
	c.fs = flag.NewFlagSet("", flag.ContinueOnError)
	c.flags = &flags.ClientFlags{}
	flags.Merge(c.fs, c.flags.Flags())
	c.help = flags.Usage(help, c.fs)
}

func (c *cmd) Run(args []string) int {
	if err := c.fs.Parse(args); err != nil {
		return 1
	}

	args = c.fs.Args()
	if len(args) != 1 {
		c.UI.Error("A single node id must be specified")
		return 1
	}

	client, err := c.flags.APIClient()
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error creating client: %s", err))
		return 1
	}

	h, err := c.flags.NodeHandle(client, args[0])
	if err != nil {
		client.Close()
		c.UI.Error(fmt.Sprintf("Error reaching node: %s", err))
		return 1
	}
	h.SayHello()

	// Close waits for the call to be sent.
	if err := client.Close(); err != nil {
		c.UI.Error(fmt.Sprintf("Error closing client: %s", err))
		return 1
	}
	return 0
}

func (c *cmd) Synopsis() string {
	return synopsis
}

func (c *cmd) Help() string {
	return c.help
}

const synopsis = "Ask a node to greet in the server log"
const help = `
Usage: ams node hello [options] <node-id>

  Asks the node to say hello. The greeting appears in the server's log,
  not here; the call does not wait for a reply.
`
