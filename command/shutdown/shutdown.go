// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package shutdown

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
	if len(c.fs.Args()) > 0 {
		c.UI.Error("This command takes no arguments")
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

	if err := client.Admin().ShutdownServer(c.flags.Address(), provider, c.flags.Token()); err != nil {
		c.UI.Error(fmt.Sprintf("Error shutting down server: %s", err))
		return 1
	}

	c.UI.Output("Server is shutting down")
	return 0
}

func (c *cmd) Synopsis() string {
	return synopsis
}

func (c *cmd) Help() string {
	return c.help
}

const synopsis = "Shut down an AMS server"
const help = `
Usage: ams shutdown [options]

  Asks the server to shut down. Pending requests are discarded and every
  node is destroyed. The token of the given provider is checked.
`
