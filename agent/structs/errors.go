// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package structs

import (
	"errors"
	"strings"
)

const (
	errInvalidToken        = "Invalid security token"
	errNodeNotFound        = "Node not found"
	errProviderNotFound    = "Provider not found"
	errUnknownBackendType  = "Unknown backend type"
	errBackendConstruction = "Backend construction failed"
	errConfigParse         = "Failed to parse node configuration"
	errOperationFailed     = "Backend operation failed"
	errNotRendezvousRoot   = "Server is not the rendezvous root"
	errShuttingDown        = "Server is shutting down"
)

var (
	ErrInvalidToken        = errors.New(errInvalidToken)
	ErrNodeNotFound        = errors.New(errNodeNotFound)
	ErrProviderNotFound    = errors.New(errProviderNotFound)
	ErrUnknownBackendType  = errors.New(errUnknownBackendType)
	ErrBackendConstruction = errors.New(errBackendConstruction)
	ErrConfigParse         = errors.New(errConfigParse)
	ErrOperationFailed     = errors.New(errOperationFailed)
	ErrNotRendezvousRoot   = errors.New(errNotRendezvousRoot)
	ErrShuttingDown        = errors.New(errShuttingDown)
)

// The IsErr helpers match on the message rather than with errors.Is since
// errors returned by a remote endpoint only survive the RPC layer as text.

func IsErrInvalidToken(err error) bool {
	return err != nil && strings.Contains(err.Error(), errInvalidToken)
}

func IsErrNodeNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), errNodeNotFound)
}

func IsErrProviderNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), errProviderNotFound)
}

func IsErrUnknownBackendType(err error) bool {
	return err != nil && strings.Contains(err.Error(), errUnknownBackendType)
}

func IsErrBackendConstruction(err error) bool {
	return err != nil && strings.Contains(err.Error(), errBackendConstruction)
}

func IsErrConfigParse(err error) bool {
	return err != nil && strings.Contains(err.Error(), errConfigParse)
}

func IsErrOperationFailed(err error) bool {
	return err != nil && strings.Contains(err.Error(), errOperationFailed)
}

func IsErrNotRendezvousRoot(err error) bool {
	return err != nil && strings.Contains(err.Error(), errNotRendezvousRoot)
}
