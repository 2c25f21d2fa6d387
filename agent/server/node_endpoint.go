// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"fmt"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp/ams/agent/backend"
	"github.com/hashicorp/ams/agent/pending"
	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/types"
)

// Node endpoint routes operations to the backend addressed by a request.
type Node struct {
	srv    *Server
	logger hclog.Logger
}

func (n *Node) resolve(providerID structs.ProviderID, id types.NodeID) (*provider, backend.Backend, error) {
	p, err := n.srv.provider(providerID)
	if err != nil {
		return nil, nil, err
	}
	b, err := p.nodes.Lookup(id)
	if err != nil {
		return nil, nil, err
	}
	return p, b, nil
}

func operationFailed(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", structs.ErrOperationFailed, op, err)
}

// Check succeeds if the node exists.
func (n *Node) Check(args *structs.NodeRequest, reply *struct{}) error {
	_, _, err := n.resolve(args.ProviderID, args.NodeID)
	return err
}

func (n *Node) SayHello(args *structs.NodeRequest, reply *struct{}) error {
	_, b, err := n.resolve(args.ProviderID, args.NodeID)
	if err != nil {
		return err
	}
	b.SayHello()
	return nil
}

func (n *Node) ComputeSum(args *structs.ComputeSumRequest, reply *structs.ComputeSumResponse) error {
	_, b, err := n.resolve(args.ProviderID, args.NodeID)
	if err != nil {
		return err
	}
	sum, err := b.ComputeSum(args.X, args.Y)
	if err != nil {
		return operationFailed("compute sum", err)
	}
	reply.Sum = sum
	return nil
}

func (n *Node) Open(args *structs.NodePayloadRequest, reply *struct{}) error {
	_, b, err := n.resolve(args.ProviderID, args.NodeID)
	if err != nil {
		return err
	}
	return operationFailed("open", b.Open(args.Payload))
}

func (n *Node) Close(args *structs.NodeRequest, reply *struct{}) error {
	_, b, err := n.resolve(args.ProviderID, args.NodeID)
	if err != nil {
		return err
	}
	return operationFailed("close", b.Close())
}

func (n *Node) Publish(args *structs.NodePayloadRequest, reply *struct{}) error {
	_, b, err := n.resolve(args.ProviderID, args.NodeID)
	if err != nil {
		return err
	}
	return operationFailed("publish", b.Publish(args.Payload))
}

func (n *Node) Execute(args *structs.NodePayloadRequest, reply *struct{}) error {
	_, b, err := n.resolve(args.ProviderID, args.NodeID)
	if err != nil {
		return err
	}
	return operationFailed("execute", b.Execute(args.Payload))
}

func (n *Node) PublishAndExecute(args *structs.PublishExecuteRequest, reply *struct{}) error {
	_, b, err := n.resolve(args.ProviderID, args.NodeID)
	if err != nil {
		return err
	}
	return operationFailed("publish and execute", b.PublishAndExecute(args.Mesh, args.Actions))
}

// OpenPublishExecute queues the request and returns as soon as it is
// queued. It is executed once every server agrees it is next.
func (n *Node) OpenPublishExecute(args *structs.SubmitRequest, reply *struct{}) error {
	p, _, err := n.resolve(args.ProviderID, args.NodeID)
	if err != nil {
		return err
	}

	p.queue.Push(&pending.Request{
		NodeID:      args.NodeID,
		TaskID:      args.TaskID,
		Timestamp:   args.Timestamp,
		OpenOptions: args.OpenOptions,
		Mesh:        args.Mesh,
		MeshSize:    args.MeshSize,
		Actions:     args.Actions,
	})
	labels := []metrics.Label{{Name: "group", Value: args.ProviderID.ReductionGroup()}}
	metrics.IncrCounterWithLabels([]string{"pending", "enqueued"}, 1, labels)
	metrics.SetGaugeWithLabels([]string{"pending", "queue_length"}, float32(p.queue.Len()), labels)

	n.logger.Debug("queued request",
		"provider", args.ProviderID,
		"node", args.NodeID,
		"task_id", args.TaskID,
		"timestamp", args.Timestamp,
	)

	if n.srv.config.EagerRounds {
		p.protocol.Schedule()
	}
	return nil
}

// ExecutePendingRequests runs agreement rounds until the provider's queue
// is empty. It blocks until then or until the server shuts down.
func (n *Node) ExecutePendingRequests(args *structs.NodeRequest, reply *struct{}) error {
	p, _, err := n.resolve(args.ProviderID, args.NodeID)
	if err != nil {
		return err
	}
	if err := p.protocol.Drain(n.srv.ctx); err != nil {
		if n.srv.ctx.Err() != nil {
			return structs.ErrShuttingDown
		}
		return err
	}
	return nil
}

// PendingStatus reports the provider's queue and round counters.
func (n *Node) PendingStatus(args *structs.NodeRequest, reply *structs.PendingStatusResponse) error {
	p, _, err := n.resolve(args.ProviderID, args.NodeID)
	if err != nil {
		return err
	}
	stats := p.protocol.Stats()
	reply.QueueLength = p.protocol.QueueLength()
	reply.Rounds = stats.Rounds
	reply.Agreed = stats.Agreed
	reply.Disagreed = stats.Disagreed
	reply.Executed = stats.Executed
	reply.ExecuteFailed = stats.ExecuteFailed
	reply.Discarded = stats.Discarded
	return nil
}
