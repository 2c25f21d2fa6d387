// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package status

import (
	"flag"
	"fmt"

	"github.com/mitchellh/cli"
	"github.com/ryanuber/columnize"

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
	defer client.Close()

	h, err := c.flags.NodeHandle(client, args[0])
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error reaching node: %s", err))
		return 1
	}

	s, err := h.PendingStatus()
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error reading status: %s", err))
		return 1
	}

	data := []string{
		fmt.Sprintf("Queue length:\x1f%d", s.QueueLength),
		fmt.Sprintf("Rounds:\x1f%d", s.Rounds),
		fmt.Sprintf("Agreed:\x1f%d", s.Agreed),
		fmt.Sprintf("Disagreed:\x1f%d", s.Disagreed),
		fmt.Sprintf("Executed:\x1f%d", s.Executed),
		fmt.Sprintf("Execute failed:\x1f%d", s.ExecuteFailed),
		fmt.Sprintf("Discarded:\x1f%d", s.Discarded),
	}
	c.UI.Output(columnize.Format(data, &columnize.Config{Delim: string([]byte{0x1f})}))
	return 0
}

func (c *cmd) Synopsis() string {
	return synopsis
}

func (c *cmd) Help() string {
	return c.help
}

const synopsis = "Show the pending queue of a node's provider"
const help = `
Usage: ams node status [options] <node-id>

  Prints the length of the pending queue shared by every node of the
  provider, along with its agreement round counters.
`
