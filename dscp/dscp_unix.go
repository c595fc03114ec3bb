// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

//go:build linux || darwin
// +build linux darwin

// Package dscp configures the DSCP/ToS byte on the server's listening
// socket, so replication and client traffic can be placed in distinct
// QoS classes by an operator's network.
package dscp

import (
	"context"
	"net"
	"os"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/aristanetworks/keybucket/logger"
)

// ListenTCPWithTOS is like net.Listen("tcp", address) but configures the
// socket with the given ToS (DSCP/ECN class of service) byte.
func ListenTCPWithTOS(address string, tos byte, l logger.Logger) (net.Listener, error) {
	cfg := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return setTOS(network, c, tos, l)
		},
	}
	return cfg.Listen(context.Background(), "tcp", address)
}

func setTOS(network string, c syscall.RawConn, tos byte, l logger.Logger) error {
	return c.Control(func(fd uintptr) {
		// IP_TOS applies to v4 connections and to v4-over-v6 sockets alike.
		if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, int(tos)); err != nil {
			l.Errorf("dscp: setting IP_TOS: %v", os.NewSyscallError("setsockopt", err))
		}
		if strings.HasSuffix(network, "4") {
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_TCLASS, int(tos)); err != nil {
			l.Errorf("dscp: setting IPV6_TCLASS: %v", os.NewSyscallError("setsockopt", err))
		}
	})
}
