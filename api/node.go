// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package api

import (
	"gopkg.in/yaml.v3"

	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/types"
)

// NodeHandle addresses one node held by a provider on one server.
type NodeHandle struct {
	c        *Client
	addr     string
	provider structs.ProviderID
	id       types.NodeID
}

// Submission is one request submitted with OpenPublishExecute. Every
// server must receive the same TaskID for it to be executed. MeshSize
// defaults to the length of Mesh; a backend may refuse a mesh whose size
// does not match it.
type Submission struct {
	OpenOptions string
	Mesh        string
	MeshSize    uint64
	Actions     string
	TaskID      int64
	Timestamp   int64
}

func (h *NodeHandle) ID() types.NodeID { return h.id }

func (h *NodeHandle) Addr() string { return h.addr }

func (h *NodeHandle) Provider() structs.ProviderID { return h.provider }

func (h *NodeHandle) request() *structs.NodeRequest {
	return &structs.NodeRequest{ProviderID: h.provider, NodeID: h.id}
}

func (h *NodeHandle) payload(p string) *structs.NodePayloadRequest {
	return &structs.NodePayloadRequest{ProviderID: h.provider, NodeID: h.id, Payload: p}
}

// SayHello asks the node to greet in the server's log. The call is not
// waited for; Client.Close waits for it.
func (h *NodeHandle) SayHello() {
	h.c.fireAndForget(h.addr, "Node.SayHello", h.request())
}

// ComputeSum returns x+y as computed by the node.
func (h *NodeHandle) ComputeSum(x, y int32) (int32, error) {
	var sum int32
	req := h.ComputeSumAsync(x, y, &sum)
	if err := req.Wait(); err != nil {
		return 0, err
	}
	return sum, nil
}

// ComputeSumAsync starts the computation of x+y. The result is stored in
// result by the first Wait on the returned request.
func (h *NodeHandle) ComputeSumAsync(x, y int32, result *int32) *AsyncRequest {
	args := &structs.ComputeSumRequest{
		ProviderID: h.provider,
		NodeID:     h.id,
		X:          x,
		Y:          y,
	}
	var out structs.ComputeSumResponse
	return h.c.goCall(h.addr, "Node.ComputeSum", args, &out, func() {
		if result != nil {
			*result = out.Sum
		}
	})
}

// Open opens the node with the given options document.
func (h *NodeHandle) Open(options string) error {
	var out struct{}
	return h.c.call(h.addr, "Node.Open", h.payload(options), &out)
}

func (h *NodeHandle) Close() error {
	var out struct{}
	return h.c.call(h.addr, "Node.Close", h.request(), &out)
}

func (h *NodeHandle) Publish(mesh string) error {
	var out struct{}
	return h.c.call(h.addr, "Node.Publish", h.payload(mesh), &out)
}

func (h *NodeHandle) Execute(actions string) error {
	var out struct{}
	return h.c.call(h.addr, "Node.Execute", h.payload(actions), &out)
}

func (h *NodeHandle) PublishAndExecute(mesh, actions string) error {
	args := &structs.PublishExecuteRequest{
		ProviderID: h.provider,
		NodeID:     h.id,
		Mesh:       mesh,
		Actions:    actions,
	}
	var out struct{}
	return h.c.call(h.addr, "Node.PublishAndExecute", args, &out)
}

// OpenPublishExecute submits s to the server's pending queue. The returned
// request completes when the server has queued it, not when it has run.
func (h *NodeHandle) OpenPublishExecute(s Submission) *AsyncRequest {
	if s.MeshSize == 0 {
		s.MeshSize = uint64(len(s.Mesh))
	}
	args := &structs.SubmitRequest{
		ProviderID:  h.provider,
		NodeID:      h.id,
		OpenOptions: s.OpenOptions,
		Mesh:        s.Mesh,
		MeshSize:    s.MeshSize,
		Actions:     s.Actions,
		TaskID:      s.TaskID,
		Timestamp:   s.Timestamp,
	}
	var out struct{}
	return h.c.goCall(h.addr, "Node.OpenPublishExecute", args, &out, nil)
}

// ExecutePendingRequests runs agreement rounds on the server until its
// pending queue for this provider is empty. Every server of the
// collective must be drained for the rounds to complete.
func (h *NodeHandle) ExecutePendingRequests() error {
	var out struct{}
	return h.c.call(h.addr, "Node.ExecutePendingRequests", h.request(), &out)
}

// PendingStatus reports the pending queue of the node's provider.
func (h *NodeHandle) PendingStatus() (*structs.PendingStatusResponse, error) {
	var out structs.PendingStatusResponse
	if err := h.c.call(h.addr, "Node.PendingStatus", h.request(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EncodePayload renders v as a YAML document suitable for Open, Publish and
// Execute payloads.
func EncodePayload(v interface{}) (string, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
