// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package pending

import (
	"container/heap"
	"sync"
	"time"

	"github.com/hashicorp/ams/types"
)

// Request is a submitted open-publish-execute call waiting for every server
// to agree on it.
type Request struct {
	NodeID      types.NodeID
	TaskID      int64
	Timestamp   int64
	OpenOptions string
	Mesh        string
	MeshSize    uint64
	Actions     string

	// Received is when the local server queued the request.
	Received time.Time

	seq   uint64
	index int
}

// less orders by timestamp, then task id, then local arrival.
func (r *Request) less(o *Request) bool {
	if r.Timestamp != o.Timestamp {
		return r.Timestamp < o.Timestamp
	}
	if r.TaskID != o.TaskID {
		return r.TaskID < o.TaskID
	}
	return r.seq < o.seq
}

type requestHeap []*Request

func (h requestHeap) Len() int           { return len(h) }
func (h requestHeap) Less(i, j int) bool { return h[i].less(h[j]) }
func (h requestHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *requestHeap) Push(x interface{}) {
	r := x.(*Request)
	r.index = len(*h)
	*h = append(*h, r)
}

func (h *requestHeap) Pop() interface{} {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	*h = old[:n-1]
	return r
}

// Queue is a server's local min-priority queue of pending requests. It is
// safe for concurrent use.
type Queue struct {
	lock sync.Mutex
	heap requestHeap
	seq  uint64
}

func NewQueue() *Queue {
	return &Queue{}
}

// Push queues r. The request must not be modified afterwards.
func (q *Queue) Push(r *Request) {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.seq++
	r.seq = q.seq
	if r.Received.IsZero() {
		r.Received = time.Now()
	}
	heap.Push(&q.heap, r)
}

// Peek returns the head of the queue without removing it.
func (q *Queue) Peek() (*Request, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if len(q.heap) == 0 {
		return nil, false
	}
	return q.heap[0], true
}

// Pop removes and returns the head of the queue.
func (q *Queue) Pop() (*Request, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if len(q.heap) == 0 {
		return nil, false
	}
	return heap.Pop(&q.heap).(*Request), true
}

// Remove takes r out of the queue. It reports false if r is no longer
// queued.
func (q *Queue) Remove(r *Request) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	if r.index < 0 || r.index >= len(q.heap) || q.heap[r.index] != r {
		return false
	}
	heap.Remove(&q.heap, r.index)
	return true
}

func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.heap)
}

// DiscardAll empties the queue and returns what it held, in order.
func (q *Queue) DiscardAll() []*Request {
	q.lock.Lock()
	defer q.lock.Unlock()

	out := make([]*Request, 0, len(q.heap))
	for len(q.heap) > 0 {
		out = append(out, heap.Pop(&q.heap).(*Request))
	}
	return out
}
