// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

//go:build !linux && !darwin
// +build !linux,!darwin

package dscp

import (
	"errors"
	"net"

	"github.com/aristanetworks/keybucket/logger"
)

// ListenTCPWithTOS is similar to net.Listen("tcp", address) but the
// ToS byte can't be set on this platform; a non-zero tos is refused
// rather than silently ignored.
func ListenTCPWithTOS(address string, tos byte, l logger.Logger) (net.Listener, error) {
	if tos != 0 {
		return nil, errors.New("dscp: ToS is not supported on this platform")
	}
	return net.Listen("tcp", address)
}
