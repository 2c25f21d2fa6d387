// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"fmt"
	"net"
	"net/rpc"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp/ams/agent/backend"
	"github.com/hashicorp/ams/agent/backend/dummy"
	"github.com/hashicorp/ams/agent/collective"
	"github.com/hashicorp/ams/agent/pool"
	"github.com/hashicorp/ams/agent/structs"
	"github.com/hashicorp/ams/lib/routine"
	"github.com/hashicorp/ams/logging"
)

// Server hosts the providers of one member of the collective and serves
// their nodes over RPC.
type Server struct {
	config *Config
	logger hclog.InterceptLogger

	registry  *backend.Registry
	providers map[structs.ProviderID]*provider

	// rendezvous is only set on rank 0.
	rendezvous *collective.Rendezvous
	reducer    collective.Reducer
	connPool   *pool.ConnPool

	rpcServer *rpc.Server
	listener  net.Listener
	routines  *routine.Manager

	ctx    context.Context
	cancel context.CancelFunc

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
	listenerDone chan struct{}
}

// DefaultRegistry returns a registry holding the built-in backend types.
func DefaultRegistry(logger hclog.Logger) (*backend.Registry, error) {
	r := backend.NewRegistry(logger)
	if err := dummy.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

// NewServer validates config, binds the RPC listener and starts serving.
func NewServer(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = hclog.NewInterceptLogger(&hclog.LoggerOptions{Name: config.NodeName})
	}

	registry := config.Registry
	if registry == nil {
		var err error
		registry, err = DefaultRegistry(logger.Named(logging.Backend))
		if err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:       config,
		logger:       logger,
		registry:     registry,
		providers:    make(map[structs.ProviderID]*provider),
		rpcServer:    rpc.NewServer(),
		routines:     routine.NewManager(logger.Named(logging.Routine)),
		ctx:          ctx,
		cancel:       cancel,
		shutdownCh:   make(chan struct{}),
		listenerDone: make(chan struct{}),
	}

	s.connPool = &pool.ConnPool{
		Logger:     logger.Named(logging.Pool),
		MaxStreams: config.ConnPoolMaxStreams,
		MaxTime:    config.ConnPoolMaxTime,
	}

	if config.Rank == 0 {
		s.rendezvous = collective.NewRendezvous(config.Size, logger.Named(logging.Collective))
		s.reducer = collective.NewLocalMember(s.rendezvous, 0)
	} else {
		s.reducer = collective.NewRPCMember(config.Rank, config.Size, config.RootAddr, s.connPool, logger.Named(logging.Collective))
	}

	for _, pc := range config.Providers {
		plogger := logger.Named(logging.Pending).With("provider", pc.ID)
		s.providers[pc.ID] = newProvider(pc, config, s.reducer, plogger)
	}

	if err := s.registerEndpoints(); err != nil {
		s.abort()
		return nil, fmt.Errorf("failed to register endpoints: %w", err)
	}

	listener, err := net.ListenTCP("tcp", config.RPCAddr)
	if err != nil {
		s.abort()
		return nil, fmt.Errorf("failed to start RPC listener: %w", err)
	}
	s.listener = listener
	go s.listen(listener)

	if config.EagerRounds {
		for _, p := range s.providers {
			s.routines.Start(s.ctx, fmt.Sprintf("agreement-rounds-%d", p.id), p.protocol.Run)
		}
	}

	s.logger.Info("server started",
		"address", s.Addr(),
		"rank", config.Rank,
		"size", config.Size,
		"providers", len(s.providers),
		"eager_rounds", config.EagerRounds,
	)
	return s, nil
}

func (s *Server) abort() {
	s.cancel()
	if s.rendezvous != nil {
		s.rendezvous.Close()
	}
	s.connPool.Shutdown()
	close(s.listenerDone)
}

// Addr returns the address the RPC listener is bound to.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// ShutdownCh is closed once Shutdown has started.
func (s *Server) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

func (s *Server) provider(id structs.ProviderID) (*provider, error) {
	p, ok := s.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", structs.ErrProviderNotFound, id)
	}
	return p, nil
}

// Shutdown stops serving, discards pending requests and destroys every
// node still owned by the server. It is safe to call more than once.
func (s *Server) Shutdown() error {
	s.shutdownLock.Lock()
	if s.shutdown {
		s.shutdownLock.Unlock()
		return nil
	}
	s.shutdown = true
	close(s.shutdownCh)
	s.shutdownLock.Unlock()

	s.logger.Info("shutting down server")

	s.cancel()
	if s.rendezvous != nil {
		s.rendezvous.Close()
	}
	s.routines.StopAll()

	if s.listener != nil {
		s.listener.Close()
		<-s.listenerDone
	}

	var result error
	for _, p := range s.providers {
		if n := p.protocol.Discard(); n > 0 {
			p.logger.Warn("discarded pending requests", "count", n)
		}
		if err := p.nodes.DestroyAll(); err != nil {
			result = multierror.Append(result, fmt.Errorf("provider %d: %w", p.id, err))
		}
	}

	if err := s.connPool.Shutdown(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

func (s *Server) isShutdown() bool {
	s.shutdownLock.Lock()
	defer s.shutdownLock.Unlock()
	return s.shutdown
}
