// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package dummy implements a backend that performs no visualization. It
// validates its payloads, records what it was asked to do and can be told
// to fail selected operations, which makes it the backend used by tests
// and by operators checking a deployment.
package dummy

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/hashicorp/ams/agent/backend"
)

const TypeName = "dummy"

// Operation names accepted by Config.FailOn and recorded in the journal.
const (
	OpOpen       = "open"
	OpClose      = "close"
	OpPublish    = "publish"
	OpExecute    = "execute"
	OpComputeSum = "compute_sum"
	OpDestroy    = "destroy"
)

type Config struct {
	Path   string   `mapstructure:"path"`
	FailOn []string `mapstructure:"fail_on"`
}

// Entry is one journal record.
type Entry struct {
	Op     string
	Detail string
}

type Node struct {
	logger hclog.Logger
	config Config

	lock      sync.Mutex
	opened    bool
	options   map[string]interface{}
	mesh      interface{}
	journal   []Entry
	destroyed bool
}

// Register adds the dummy type to r.
func Register(r *backend.Registry) error {
	return r.Register(TypeName, New, Open)
}

func decodeConfig(raw map[string]interface{}) (Config, error) {
	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &config,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return config, err
	}
	if err := decoder.Decode(raw); err != nil {
		return config, fmt.Errorf("invalid dummy configuration: %w", err)
	}
	for _, op := range config.FailOn {
		switch op {
		case OpOpen, OpClose, OpPublish, OpExecute, OpComputeSum, OpDestroy:
		default:
			return config, fmt.Errorf("invalid dummy configuration: unknown operation %q in fail_on", op)
		}
	}
	return config, nil
}

// New creates a fresh dummy node.
func New(logger hclog.Logger, raw map[string]interface{}) (backend.Backend, error) {
	config, err := decodeConfig(raw)
	if err != nil {
		return nil, err
	}
	logger.Debug("created dummy node", "path", config.Path)
	return &Node{logger: logger, config: config}, nil
}

// Open attaches to the dummy node stored at the configured path.
func Open(logger hclog.Logger, raw map[string]interface{}) (backend.Backend, error) {
	config, err := decodeConfig(raw)
	if err != nil {
		return nil, err
	}
	if config.Path == "" {
		return nil, fmt.Errorf("a path is required to open a dummy node")
	}
	logger.Debug("opened dummy node", "path", config.Path)
	return &Node{logger: logger, config: config}, nil
}

func (n *Node) fails(op string) error {
	for _, f := range n.config.FailOn {
		if f == op {
			return fmt.Errorf("dummy %s failure", op)
		}
	}
	return nil
}

func (n *Node) record(op, detail string) {
	n.journal = append(n.journal, Entry{Op: op, Detail: detail})
}

func (n *Node) SayHello() {
	n.logger.Info("Hello World")
}

func (n *Node) Open(options string) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.openLocked(options)
}

func (n *Node) openLocked(options string) error {
	if err := n.fails(OpOpen); err != nil {
		return err
	}
	parsed := make(map[string]interface{})
	if err := yaml.Unmarshal([]byte(options), &parsed); err != nil {
		return fmt.Errorf("invalid open options: %w", err)
	}
	n.options = parsed
	n.opened = true
	n.record(OpOpen, options)
	return nil
}

func (n *Node) Close() error {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.closeLocked()
}

func (n *Node) closeLocked() error {
	if err := n.fails(OpClose); err != nil {
		return err
	}
	n.opened = false
	n.options = nil
	n.record(OpClose, "")
	return nil
}

func (n *Node) Publish(mesh string) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.publishLocked(mesh)
}

func (n *Node) publishLocked(mesh string) error {
	if err := n.fails(OpPublish); err != nil {
		return err
	}
	var parsed interface{}
	if err := yaml.Unmarshal([]byte(mesh), &parsed); err != nil {
		return fmt.Errorf("invalid mesh: %w", err)
	}
	n.mesh = parsed
	n.record(OpPublish, mesh)
	return nil
}

func (n *Node) Execute(actions string) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.executeLocked(actions)
}

func (n *Node) executeLocked(actions string) error {
	if err := n.fails(OpExecute); err != nil {
		return err
	}
	var parsed interface{}
	if err := yaml.Unmarshal([]byte(actions), &parsed); err != nil {
		return fmt.Errorf("invalid actions: %w", err)
	}
	n.logger.Debug("executing actions", "opened", n.opened, "has_mesh", n.mesh != nil)
	n.record(OpExecute, actions)
	return nil
}

func (n *Node) PublishAndExecute(mesh, actions string) error {
	n.lock.Lock()
	defer n.lock.Unlock()

	if err := n.publishLocked(mesh); err != nil {
		return err
	}
	return n.executeLocked(actions)
}

// OpenPublishExecute refuses a mesh whose declared size does not match the
// payload before the node is opened.
func (n *Node) OpenPublishExecute(options, mesh string, meshSize uint64, actions string) error {
	n.lock.Lock()
	defer n.lock.Unlock()

	if meshSize != 0 && meshSize != uint64(len(mesh)) {
		return fmt.Errorf("mesh size mismatch: declared %d bytes, received %d", meshSize, len(mesh))
	}
	if err := n.openLocked(options); err != nil {
		return err
	}

	var result error
	if err := n.publishLocked(mesh); err != nil {
		result = multierror.Append(result, err)
	} else if err := n.executeLocked(actions); err != nil {
		result = multierror.Append(result, err)
	}
	if err := n.closeLocked(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

func (n *Node) ComputeSum(x, y int32) (int32, error) {
	n.lock.Lock()
	defer n.lock.Unlock()

	if err := n.fails(OpComputeSum); err != nil {
		return 0, err
	}
	n.record(OpComputeSum, fmt.Sprintf("%d+%d", x, y))
	return x + y, nil
}

func (n *Node) Destroy() error {
	n.lock.Lock()
	defer n.lock.Unlock()

	if err := n.fails(OpDestroy); err != nil {
		return err
	}
	n.destroyed = true
	n.record(OpDestroy, n.config.Path)
	return nil
}

// Journal returns a copy of every operation the node completed.
func (n *Node) Journal() []Entry {
	n.lock.Lock()
	defer n.lock.Unlock()

	out := make([]Entry, len(n.journal))
	copy(out, n.journal)
	return out
}

// Executions returns the actions of every completed execute, in order.
func (n *Node) Executions() []string {
	n.lock.Lock()
	defer n.lock.Unlock()

	var out []string
	for _, e := range n.journal {
		if e.Op == OpExecute {
			out = append(out, e.Detail)
		}
	}
	return out
}

func (n *Node) Destroyed() bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.destroyed
}
