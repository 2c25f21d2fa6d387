// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"github.com/hashicorp/ams/logging"
)

// registerEndpoints registers every RPC service the server exposes.
func (s *Server) registerEndpoints() error {
	endpoints := map[string]interface{}{
		"Admin":      &Admin{srv: s, logger: s.logger.Named(logging.Admin)},
		"Node":       &Node{srv: s, logger: s.logger.Named(logging.Node)},
		"Status":     &Status{srv: s},
		"Collective": &Collective{srv: s},
	}
	for name, endpoint := range endpoints {
		if err := s.rpcServer.RegisterName(name, endpoint); err != nil {
			return err
		}
	}
	return nil
}
