// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package pool

import (
	"fmt"
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	msgpackrpc "github.com/hashicorp/net-rpc-msgpackrpc/v2"
	"github.com/hashicorp/yamux"
	"golang.org/x/sync/singleflight"

	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/lib"
)

const (
	defaultDialTimeout = 10 * time.Second
	defaultMaxStreams  = 64
	reapInterval       = time.Second
)

// streamClient is one yamux stream with an RPC codec on top. A stream
// carries one call at a time.
type streamClient struct {
	stream net.Conn
	codec  rpc.ClientCodec
}

func (sc *streamClient) close() {
	sc.stream.Close()
	sc.codec.Close()
}

// conn is the session to one server, shared by every call to it.
type conn struct {
	addr    net.Addr
	session *yamux.Session

	lock     sync.Mutex
	idle     []*streamClient
	refs     int
	lastUsed time.Time
	broken   bool
}

func (c *conn) hold() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.refs++
	c.lastUsed = time.Now()
}

func (c *conn) release() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.refs--
	if c.refs == 0 && c.broken {
		c.session.Close()
	}
}

// markBroken closes the session once its last user lets go.
func (c *conn) markBroken() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.broken = true
	if c.refs == 0 {
		c.session.Close()
	}
}

// reapable reports whether nobody has used c since before cutoff.
func (c *conn) reapable(cutoff time.Time) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.refs == 0 && c.lastUsed.Before(cutoff)
}

func (c *conn) getStream() (*streamClient, error) {
	c.lock.Lock()
	if c.session.IsClosed() {
		idle := c.idle
		c.idle = nil
		c.lock.Unlock()
		for _, sc := range idle {
			sc.close()
		}
		return nil, yamux.ErrSessionShutdown
	}
	if n := len(c.idle); n > 0 {
		sc := c.idle[n-1]
		c.idle = c.idle[:n-1]
		c.lock.Unlock()
		return sc, nil
	}
	c.lock.Unlock()

	stream, err := c.session.Open()
	if err != nil {
		return nil, err
	}
	return &streamClient{
		stream: stream,
		codec:  msgpackrpc.NewCodecFromHandle(true, true, stream, structs.MsgpackHandle),
	}, nil
}

func (c *conn) putStream(sc *streamClient, limit int) {
	c.lock.Lock()
	if !c.broken && len(c.idle) < limit {
		if ys, ok := sc.stream.(*yamux.Stream); ok {
			ys.Shrink()
		}
		c.idle = append(c.idle, sc)
		c.lock.Unlock()
		return
	}
	c.lock.Unlock()
	sc.close()
}

// ConnPool keeps one multiplexed session per server address and reuses
// streams on it. The zero value is ready to use.
type ConnPool struct {
	// SrcAddr is the local address outgoing connections are bound to.
	SrcAddr *net.TCPAddr

	// Logger receives the yamux session logs.
	Logger hclog.Logger

	// MaxTime closes sessions nobody has used for this long. Zero keeps
	// them until Shutdown.
	MaxTime time.Duration

	// MaxStreams caps the idle streams kept per session.
	MaxStreams int

	once  sync.Once
	dials singleflight.Group

	lock       sync.Mutex
	conns      map[string]*conn
	shutdown   bool
	shutdownCh chan struct{}
}

func (p *ConnPool) init() {
	p.conns = make(map[string]*conn)
	p.shutdownCh = make(chan struct{})
	if p.Logger == nil {
		p.Logger = hclog.NewNullLogger()
	}
	if p.MaxStreams <= 0 {
		p.MaxStreams = defaultMaxStreams
	}
	if p.MaxTime > 0 {
		go p.reap()
	}
}

// Shutdown closes every session. Calls made afterwards fail with
// structs.ErrShuttingDown.
func (p *ConnPool) Shutdown() error {
	p.once.Do(p.init)

	p.lock.Lock()
	defer p.lock.Unlock()
	if p.shutdown {
		return nil
	}
	p.shutdown = true
	close(p.shutdownCh)
	for _, c := range p.conns {
		c.markBroken()
	}
	p.conns = make(map[string]*conn)
	return nil
}

// acquire returns the session to addr, dialing it if there is none.
// Concurrent callers for the same address share one dial.
func (p *ConnPool) acquire(addr net.Addr) (*conn, error) {
	key := addr.String()

	lookup := func() (*conn, error) {
		p.lock.Lock()
		defer p.lock.Unlock()
		if p.shutdown {
			return nil, fmt.Errorf("rpc error: %w", structs.ErrShuttingDown)
		}
		return p.conns[key], nil
	}

	c, err := lookup()
	if err != nil {
		return nil, err
	}
	if c == nil {
		v, err, _ := p.dials.Do(key, func() (interface{}, error) {
			if c, err := lookup(); err != nil || c != nil {
				return c, err
			}
			c, err := p.dial(addr)
			if err != nil {
				return nil, err
			}

			p.lock.Lock()
			defer p.lock.Unlock()
			if p.shutdown {
				c.session.Close()
				return nil, fmt.Errorf("rpc error: %w", structs.ErrShuttingDown)
			}
			p.conns[key] = c
			return c, nil
		})
		if err != nil {
			return nil, err
		}
		c = v.(*conn)
	}
	c.hold()
	return c, nil
}

// discard forgets c so the next call dials a fresh session.
func (p *ConnPool) discard(c *conn) {
	key := c.addr.String()
	p.lock.Lock()
	if p.conns[key] == c {
		delete(p.conns, key)
	}
	p.lock.Unlock()
	c.markBroken()
}

// DialTimeout establishes a raw connection to the given server and writes
// the protocol byte.
func (p *ConnPool) DialTimeout(addr net.Addr, rpcType RPCType) (net.Conn, error) {
	d := &net.Dialer{LocalAddr: p.SrcAddr, Timeout: defaultDialTimeout}
	nc, err := d.Dial("tcp", addr.String())
	if err != nil {
		return nil, err
	}

	if tcp, ok := nc.(*net.TCPConn); ok {
		_ = tcp.SetKeepAlive(true)
		_ = tcp.SetNoDelay(true)
	}

	if _, err := nc.Write([]byte{byte(rpcType)}); err != nil {
		nc.Close()
		return nil, err
	}
	return nc, nil
}

func (p *ConnPool) dial(addr net.Addr) (*conn, error) {
	nc, err := p.DialTimeout(addr, RPCMultiplexV2)
	if err != nil {
		return nil, err
	}

	conf := yamux.DefaultConfig()
	conf.LogOutput = p.Logger.StandardWriter(&hclog.StandardLoggerOptions{InferLevels: true})

	session, err := yamux.Client(nc, conf)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to start session with %s: %w", addr, err)
	}
	return &conn{addr: addr, session: session, lastUsed: time.Now()}, nil
}

// stream returns a held session to addr and a stream on it. A session
// that can no longer open streams is replaced once.
func (p *ConnPool) stream(addr net.Addr) (*conn, *streamClient, error) {
	for attempt := 0; ; attempt++ {
		c, err := p.acquire(addr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get conn: %w", err)
		}
		sc, err := c.getStream()
		if err == nil {
			return c, sc, nil
		}
		p.discard(c)
		c.release()
		if attempt > 0 {
			return nil, nil, fmt.Errorf("failed to start stream: %w", err)
		}
	}
}

// RPC calls method on the server at addr. Errors returned by the remote
// endpoint arrive as rpc.ServerError.
func (p *ConnPool) RPC(addr net.Addr, method string, args interface{}, reply interface{}) error {
	p.once.Do(p.init)

	c, sc, err := p.stream(addr)
	if err != nil {
		return fmt.Errorf("rpc error getting client: %w", err)
	}
	defer c.release()

	if err := msgpackrpc.CallWithCodec(sc.codec, method, args, reply); err != nil {
		sc.close()
		if lib.IsErrEOF(err) {
			p.discard(c)
		}
		return fmt.Errorf("rpc error making call: %w", err)
	}
	c.putStream(sc, p.MaxStreams)
	return nil
}

// Ping calls Status.Ping on addr.
func (p *ConnPool) Ping(addr net.Addr) (bool, error) {
	var out struct{}
	err := p.RPC(addr, "Status.Ping", struct{}{}, &out)
	return err == nil, err
}

func (p *ConnPool) reap() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.shutdownCh:
			return
		case now := <-ticker.C:
			cutoff := now.Add(-p.MaxTime)
			p.lock.Lock()
			for key, c := range p.conns {
				if c.reapable(cutoff) {
					delete(p.conns, key)
					c.markBroken()
				}
			}
			p.lock.Unlock()
		}
	}
}
