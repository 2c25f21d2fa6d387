// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp/ams/agent/backend"
	"github.com/hashicorp/ams/agent/pending"
	"github.com/hashicorp/ams/agent/structs"
)

const (
	DefaultRPCPort = 8700

	DefaultRetryInterval = 50 * time.Millisecond
	DefaultRetryBurst    = 5
)

// ProviderConfig describes one provider instance hosted by the server.
type ProviderConfig struct {
	ID structs.ProviderID

	// Token, when not empty, must be presented by every node create, open,
	// close and destroy call and by a remote shutdown.
	Token string
}

// Config is used to configure the server
type Config struct {
	// NodeName is the name this server is known by in logs.
	NodeName string

	// RPCAddr is the address the RPC listener binds to. Port zero picks a
	// free port, see Server.Addr.
	RPCAddr *net.TCPAddr

	// Providers hosted by this server. At least one is required.
	Providers []ProviderConfig

	// Rank and Size place this server in the collective that agrees on
	// pending requests. Rank 0 hosts the rendezvous; the others reach it at
	// RootAddr.
	Rank     int
	Size     int
	RootAddr *net.TCPAddr

	// Check selects how a reduction is judged.
	Check pending.Check

	// EagerRounds runs one agreement round per accepted submission. When
	// false, rounds only run on an explicit drain.
	EagerRounds bool

	ReduceTimeout time.Duration
	RetryInterval time.Duration
	RetryBurst    int

	// ConnPoolMaxStreams and ConnPoolMaxTime tune the pool used to reach
	// the rendezvous root.
	ConnPoolMaxStreams int
	ConnPoolMaxTime    time.Duration

	// Registry holds the backend types nodes can be created with. A nil
	// registry gets the built-in types.
	Registry *backend.Registry

	Logger hclog.InterceptLogger
}

// DefaultConfig returns a configuration for a single server collective
// with one provider and no token.
func DefaultConfig() *Config {
	return &Config{
		NodeName:           "ams",
		RPCAddr:            &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: DefaultRPCPort},
		Providers:          []ProviderConfig{{ID: 0}},
		Rank:               0,
		Size:               1,
		Check:              pending.CheckExact,
		EagerRounds:        true,
		RetryInterval:      DefaultRetryInterval,
		RetryBurst:         DefaultRetryBurst,
		ConnPoolMaxStreams: 64,
		ConnPoolMaxTime:    2 * time.Minute,
	}
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var result error

	if c.RPCAddr == nil {
		result = multierror.Append(result, fmt.Errorf("an RPC address is required"))
	}
	if len(c.Providers) == 0 {
		result = multierror.Append(result, fmt.Errorf("at least one provider is required"))
	}
	seen := make(map[structs.ProviderID]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if _, ok := seen[p.ID]; ok {
			result = multierror.Append(result, fmt.Errorf("provider %d is configured more than once", p.ID))
		}
		seen[p.ID] = struct{}{}
	}
	if c.Size < 1 {
		result = multierror.Append(result, fmt.Errorf("collective size must be at least 1, got %d", c.Size))
	}
	if c.Rank < 0 || (c.Size >= 1 && c.Rank >= c.Size) {
		result = multierror.Append(result, fmt.Errorf("rank %d is outside a collective of size %d", c.Rank, c.Size))
	}
	if c.Rank > 0 && c.RootAddr == nil {
		result = multierror.Append(result, fmt.Errorf("rank %d requires the address of the rank 0 server", c.Rank))
	}
	if c.ReduceTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("reduce timeout must not be negative"))
	}
	if c.RetryInterval < 0 {
		result = multierror.Append(result, fmt.Errorf("retry interval must not be negative"))
	}
	return result
}
