// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package submit

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/cli"

	"github.com/hashicorp/ams/api"
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

	// flags
	options   string
	mesh      string
	meshFile  string
	actions   string
	taskID    int64
	timestamp int64
}

func (c *cmd) init() {
	c.fs = flag.NewFlagSet("", flag.ContinueOnError)
	c.fs.StringVar(&c.options, "options", "", "The open options document.")
	c.fs.StringVar(&c.mesh, "mesh", "", "The mesh document to publish.")
	c.fs.StringVar(&c.meshFile, "mesh-file", "", "Path to a file holding the mesh. Overrides -mesh.")
	c.fs.StringVar(&c.actions, "actions", "", "The actions document to execute.")
	c.fs.Int64Var(&c.taskID, "task-id", 0,
		"Id of the task. Every server must receive the same task id for the "+
			"request to be executed.")
	c.fs.Int64Var(&c.timestamp, "timestamp", 0,
		"Ordering key of the request. Defaults to the current time in nanoseconds.")
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

	mesh := c.mesh
	if c.meshFile != "" {
		data, err := os.ReadFile(c.meshFile)
		if err != nil {
			c.UI.Error(fmt.Sprintf("Error reading mesh: %s", err))
			return 1
		}
		mesh = string(data)
	}
	timestamp := c.timestamp
	if timestamp == 0 {
		timestamp = time.Now().UnixNano()
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

	req := h.OpenPublishExecute(api.Submission{
		OpenOptions: c.options,
		Mesh:        mesh,
		MeshSize:    uint64(len(mesh)),
		Actions:     c.actions,
		TaskID:      c.taskID,
		Timestamp:   timestamp,
	})
	defer req.Release()
	if err := req.Wait(); err != nil {
		c.UI.Error(fmt.Sprintf("Error submitting request: %s", err))
		return 1
	}

	c.UI.Output(fmt.Sprintf("Queued task %d at timestamp %d", c.taskID, timestamp))
	return 0
}

func (c *cmd) Synopsis() string {
	return synopsis
}

func (c *cmd) Help() string {
	return c.help
}

const synopsis = "Submit a request for agreed execution"
const help = `
Usage: ams node submit [options] <node-id>

  Queues an open, publish, execute and close sequence on the server. It
  runs once every server of the collective has the same task at the head
  of its queue. The command returns as soon as the request is queued.

      $ ams node submit -task-id=7 -timestamp=1 -actions='- render' \
          1b4e28ba-2fa1-11d2-883f-0016d3cca427
`
