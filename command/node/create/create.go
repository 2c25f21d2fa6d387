// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package create

import (
	"flag"
	"fmt"
	"os"

	"github.com/mitchellh/cli"

	"github.com/hashicorp/ams/command/flags"
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

// NodeConfig returns the configuration document given on the command
// line, reading -config-file if it was set.
func NodeConfig(inline, file string) (string, error) {
	if file == "" {
		return inline, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("Error reading node configuration: %w", err)
	}
	return string(data), nil
}

func (c *cmd) Run(args []string) int {
	if err := c.fs.Parse(args); err != nil {
		return 1
	}

	args = c.fs.Args()
	if len(args) != 1 {
		c.UI.Error("A single backend type must be specified")
		c.UI.Error("")
		c.UI.Error(c.Help())
		return 1
	}

	nodeConfig, err := NodeConfig(c.config, c.file)
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

	id, err := client.Admin().CreateNode(c.flags.Address(), provider, c.flags.Token(), args[0], nodeConfig)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error creating node: %s", err))
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

const synopsis = "Create a node"
const help = `
Usage: ams node create [options] <backend-type>

  Creates a node of the given backend type on the server and prints its
  id. The node configuration is handed to the backend constructor.

      $ ams node create -config='{"path": "/tmp/mesh"}' dummy
`
