// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"github.com/hashicorp/ams/agent/structs"
)

// Status endpoint is used to check on server status
type Status struct {
	srv *Server
}

// Ping is used to just check for connectivity
func (s *Status) Ping(args struct{}, reply *struct{}) error {
	return nil
}

// Shutdown stops the server after replying. The token of the addressed
// provider is required.
func (s *Status) Shutdown(args *structs.ShutdownRequest, reply *struct{}) error {
	p, err := s.srv.provider(args.ProviderID)
	if err != nil {
		return err
	}
	if err := p.checkToken(args.Token); err != nil {
		return err
	}

	s.srv.logger.Info("remote shutdown requested", "provider", args.ProviderID)
	go func() {
		if err := s.srv.Shutdown(); err != nil {
			s.srv.logger.Error("error during shutdown", "error", err)
		}
	}()
	return nil
}
