// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	msgpackrpc "github.com/hashicorp/net-rpc-msgpackrpc/v2"
	"github.com/hashicorp/yamux"

	"github.com/hashicorp/ams/agent/pool"
	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/lib"
	"github.com/hashicorp/ams/logging"
)

// listen accepts connections until the listener is closed.
func (s *Server) listen(listener net.Listener) {
	defer close(s.listenerDone)
	logger := s.logger.Named(logging.RPC)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isShutdown() || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error("failed to accept RPC conn", "error", err)
			continue
		}

		go s.handleConn(conn)
		metrics.IncrCounter([]string{"rpc", "accept_conn"}, 1)
	}
}

func logConn(conn net.Conn) string {
	return "from=" + conn.RemoteAddr().String()
}

// handleConn reads the protocol byte and hands the connection to the
// matching handler.
func (s *Server) handleConn(conn net.Conn) {
	logger := s.logger.Named(logging.RPC)

	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err != nil {
		if err != io.EOF {
			logger.Error("failed to read byte", "conn", logConn(conn), "error", err)
		}
		conn.Close()
		return
	}
	typ := pool.RPCType(buf[0])

	switch typ {
	case pool.RPCSingle:
		s.handleRPCConn(conn)

	case pool.RPCMultiplexV2:
		s.handleMultiplexV2(conn)

	default:
		logger.Error("unrecognized RPC byte", "byte", typ, "conn", logConn(conn))
		conn.Close()
	}
}

// handleMultiplexV2 is used to multiplex a single incoming connection using
// the Yamux multiplexer
func (s *Server) handleMultiplexV2(conn net.Conn) {
	defer conn.Close()
	logger := s.logger.Named(logging.RPC)

	conf := yamux.DefaultConfig()
	conf.LogOutput = logger.StandardWriter(&hclog.StandardLoggerOptions{InferLevels: true})
	server, err := yamux.Server(conn, conf)
	if err != nil {
		logger.Error("failed to create yamux server", "conn", logConn(conn), "error", err)
		return
	}
	defer server.Close()

	for {
		sub, err := server.Accept()
		if err != nil {
			if err != io.EOF && !lib.IsErrEOF(err) {
				logger.Error("multiplex conn accept failed", "conn", logConn(conn), "error", err)
			}
			return
		}
		go s.handleRPCConn(sub)
	}
}

// handleRPCConn serves requests on a single connection or stream until the
// peer hangs up or the server shuts down.
func (s *Server) handleRPCConn(conn net.Conn) {
	defer conn.Close()
	logger := s.logger.Named(logging.RPC)

	codec := msgpackrpc.NewCodecFromHandle(true, true, conn, structs.MsgpackHandle)
	for {
		select {
		case <-s.shutdownCh:
			return
		default:
		}

		if err := s.rpcServer.ServeRequest(codec); err != nil {
			if err != io.EOF && !lib.IsErrEOF(err) && !strings.Contains(err.Error(), "closed") {
				logger.Error("RPC error", "conn", logConn(conn), "error", err)
				metrics.IncrCounter([]string{"rpc", "request_error"}, 1)
			}
			return
		}
		metrics.IncrCounter([]string{"rpc", "request"}, 1)
	}
}
