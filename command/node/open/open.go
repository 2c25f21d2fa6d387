// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package open

import (
	"flag"
	"fmt"

	"github.com/mitchellh/cli"

	"github.com/hashicorp/ams/command/flags"
	"github.com/hashicorp/ams/command/node/create"
)

func New(ui cli.Ui) *cmd {
	c := &cmd{UI: ui}
	c.init()
	return c
}

type cmd struct {
	UI     cli.Ui
	flags  *flags.ClientFlags
	fs     *flag.FlagSet
	help   string
	config string
	file   string
}

func (c *cmd) init() {
	c.fs = flag.NewFlagSet("", flag.ContinueOnError)
	c.fs.StringVar(&c.config, "config", "",
		"The node configuration as a JSON or YAML document.")
	c.fs.StringVar(&c.file, "config-file", "",
		"Path to a file holding the node configuration. Overrides -config.")
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
		c.UI.Error("A single backend type must be specified")
		return 1
	}

	nodeConfig, err := create.NodeConfig(c.config, c.file)
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

	id, err := client.Admin().OpenNode(c.flags.Address(), provider, c.flags.Token(), args[0], nodeConfig)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error opening node: %s", err))
		return 1
	}

	c.UI.Output(id.String())
	return 0
}

func (c *cmd) Synopsis() string {
	return synopsis
}

func (c *cmd) Help() string {
	return c.help
}

const synopsis = "Open an existing backend as a node"
const help = `
Usage: ams node open [options] <backend-type>

  Attaches a new node to an existing backend and prints its id. What
  "existing" means depends on the backend; the dummy backend requires a
  path in its configuration.

      $ ams node open -config='{"path": "/tmp/mesh"}' dummy
`
