// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package api is the client library for AMS servers. It wraps the RPC
// endpoints of a server in Admin and NodeHandle values and turns remote
// failures into Go errors.
package api

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/ams/agent/pool"
	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/types"
)

// ErrClientClosed is returned by calls made after Close.
var ErrClientClosed = errors.New("client closed")

// Config is used to configure the creation of a client
type Config struct {
	// Logger receives transport and fire-and-forget call logs. Defaults to
	// a null logger.
	Logger hclog.Logger

	// MaxStreams is the number of idle streams kept per server.
	MaxStreams int

	// MaxTime closes connections idle for longer. Zero keeps them open
	// until Close.
	MaxTime time.Duration
}

// DefaultConfig returns a default configuration for the client
func DefaultConfig() *Config {
	return &Config{
		MaxStreams: 32,
		MaxTime:    2 * time.Minute,
	}
}

// Client provides a client to one or more AMS servers. It is safe for
// concurrent use.
type Client struct {
	logger hclog.Logger
	pool   *pool.ConnPool

	// inflight tracks calls whose result nobody waits for.
	inflight sync.WaitGroup

	closeLock sync.RWMutex
	closed    bool
}

// NewClient returns a new client
func NewClient(config *Config) (*Client, error) {
	defConfig := DefaultConfig()
	if config == nil {
		config = defConfig
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}
	if config.MaxStreams <= 0 {
		config.MaxStreams = defConfig.MaxStreams
	}

	return &Client{
		logger: config.Logger,
		pool: &pool.ConnPool{
			Logger:     config.Logger.Named("pool"),
			MaxStreams: config.MaxStreams,
			MaxTime:    config.MaxTime,
		},
	}, nil
}

// Close waits for outstanding fire-and-forget calls and closes every
// connection.
func (c *Client) Close() error {
	c.closeLock.Lock()
	if c.closed {
		c.closeLock.Unlock()
		return nil
	}
	c.closed = true
	c.closeLock.Unlock()

	c.inflight.Wait()
	return c.pool.Shutdown()
}

// call performs one RPC against the server at addr.
func (c *Client) call(addr, method string, args, reply interface{}) error {
	c.closeLock.RLock()
	defer c.closeLock.RUnlock()
	if c.closed {
		return ErrClientClosed
	}

	tcpAddr, err := resolve(addr)
	if err != nil {
		return err
	}
	return c.pool.RPC(tcpAddr, method, args, reply)
}

// goCall performs an RPC in the background and returns a request that
// completes with its result. apply, if set, runs on the first Wait after a
// successful call.
func (c *Client) goCall(addr, method string, args, reply interface{}, apply func()) *AsyncRequest {
	return newAsyncRequest(func() error {
		return c.call(addr, method, args, reply)
	}, apply)
}

// fireAndForget performs an RPC in the background and only logs a
// failure. Close waits for it.
func (c *Client) fireAndForget(addr, method string, args interface{}) {
	c.closeLock.RLock()
	defer c.closeLock.RUnlock()
	if c.closed {
		return
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		tcpAddr, err := resolve(addr)
		if err == nil {
			var out struct{}
			err = c.pool.RPC(tcpAddr, method, args, &out)
		}
		if err != nil {
			c.logger.Warn("call failed", "method", method, "address", addr, "error", err)
		}
	}()
}

// Ping checks that the server at addr is reachable and serving.
func (c *Client) Ping(addr string) error {
	var out struct{}
	return c.call(addr, "Status.Ping", struct{}{}, &out)
}

// Admin returns a handle to the token gated operations.
func (c *Client) Admin() *Admin {
	return &Admin{c: c}
}

// MakeNodeHandle returns a handle to the node id held by provider at addr.
// With check set, the server is asked whether the node exists first.
func (c *Client) MakeNodeHandle(addr string, provider structs.ProviderID, id types.NodeID, check bool) (*NodeHandle, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("invalid node id %q", id)
	}
	h := &NodeHandle{
		c:        c,
		addr:     addr,
		provider: provider,
		id:       id,
	}
	if check {
		var out struct{}
		if err := c.call(addr, "Node.Check", h.request(), &out); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func resolve(addr string) (*net.TCPAddr, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
	}
	return tcpAddr, nil
}
