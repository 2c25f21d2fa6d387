// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package backend

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"

	"github.com/hashicorp/ams/agent/structs"
)

// Backend is the capability set every node type implements. A Backend is
// owned by exactly one node table entry and is never shared between
// providers.
type Backend interface {
	SayHello()
	Open(options string) error
	Close() error
	Publish(mesh string) error
	Execute(actions string) error
	PublishAndExecute(mesh, actions string) error

	// OpenPublishExecute runs open, publish, execute and close as one
	// sequence that no other call on the same node can interleave with.
	// meshSize is the size in bytes the submitter declared for mesh, zero
	// when it declared none.
	OpenPublishExecute(options, mesh string, meshSize uint64, actions string) error

	ComputeSum(x, y int32) (int32, error)

	// Destroy releases everything the node holds. The node is not used
	// again afterwards.
	Destroy() error
}

// Factory builds a Backend from its decoded configuration.
type Factory func(logger hclog.Logger, config map[string]interface{}) (Backend, error)

// ConstructionError is returned when a backend's create or open function
// fails.
type ConstructionError struct {
	Type string
	Op   string
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("%s: %s %q: %v", structs.ErrBackendConstruction, e.Op, e.Type, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

func (e *ConstructionError) Is(target error) bool {
	return target == structs.ErrBackendConstruction
}

// ParseConfig decodes a node configuration document. JSON is accepted as
// well as YAML. An empty document yields an empty configuration.
func ParseConfig(raw string) (map[string]interface{}, error) {
	config := make(map[string]interface{})
	if strings.TrimSpace(raw) == "" {
		return config, nil
	}
	if err := yaml.Unmarshal([]byte(raw), &config); err != nil {
		return nil, fmt.Errorf("%w: %v", structs.ErrConfigParse, err)
	}
	return config, nil
}
