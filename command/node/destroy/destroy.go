// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package destroy

import (
	"flag"
	"fmt"

	"github.com/mitchellh/cli"

	"github.com/hashicorp/ams/command/flags"
	"github.com/hashicorp/ams/types"
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
	id, err := types.ParseNodeID(args[0])
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	provider, err := c.flags.Provider()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	client, err := c.flags.APIClient()
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error creating client: %s", err))
		return 1
	}
	defer client.Close()

	if err := client.Admin().DestroyNode(c.flags.Address(), provider, c.flags.Token(), id); err != nil {
		c.UI.Error(fmt.Sprintf("Error destroying node: %s", err))
		return 1
	}

	c.UI.Output(fmt.Sprintf("Node %s destroyed", id))
	return 0
}

func (c *cmd) Synopsis() string {
	return synopsis
}

func (c *cmd) Help() string {
	return c.help
}

const synopsis = "Destroy a node"
const help = `
Usage: ams node destroy [options] <node-id>

  Destroys the node's backend and removes the node from the server.
`
