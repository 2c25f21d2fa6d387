// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package logging

// Names used for sub-loggers via hclog.Logger.Named.
const (
	Admin      string = "admin"
	Agent      string = "agent"
	Backend    string = "backend"
	Collective string = "collective"
	Node       string = "node"
	Pending    string = "pending"
	Pool       string = "pool"
	RPC        string = "rpc"
	Routine    string = "routine"
)
