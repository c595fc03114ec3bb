// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package kafkafeed

import (
	"encoding/json"
	"sync"

	kcp "github.com/xtaci/kcp-go"

	"github.com/aristanetworks/glog"
	"github.com/aristanetworks/keybucket/kafka"
)

// kcpFECDataShards and kcpFECParityShards pick the same forward error
// correction parameters the teacher's OpenTSDB UDP transport dials with.
const (
	kcpFECDataShards   = 10
	kcpFECParityShards = 3
)

// KCPFollowers forwards commands to replica instances over raw KCP
// sessions instead of through a Kafka topic: lower latency, no broker
// dependency, at the cost of at-most-once delivery per replica.
type KCPFollowers struct {
	mu    sync.Mutex
	conns []*kcp.UDPSession
}

// DialKCPFollowers opens a KCP session to every address in addrs.
// Addresses that fail to dial are logged and skipped; Feed best-efforts
// delivery to whichever sessions remain.
func DialKCPFollowers(addrs []string) *KCPFollowers {
	f := &KCPFollowers{}
	for _, addr := range addrs {
		conn, err := kcp.DialWithOptions(addr, nil, kcpFECDataShards, kcpFECParityShards)
		if err != nil {
			glog.Errorf("keybucket: dialing follower %s: %v", addr, err)
			continue
		}
		f.conns = append(f.conns, conn)
	}
	return f
}

// Feed implements collab.Followers.
func (f *KCPFollowers) Feed(dbID int, argv []string) error {
	body, err := json.Marshal(kafka.Record{DBID: dbID, Argv: argv})
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conn := range f.conns {
		if _, err := conn.Write(body); err != nil {
			glog.Errorf("keybucket: feeding follower %s: %v", conn.RemoteAddr(), err)
		}
	}
	return nil
}

// Close tears down every follower session.
func (f *KCPFollowers) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conn := range f.conns {
		conn.Close()
	}
}

// KCPFollowerListener accepts incoming KCP sessions from a leader and
// decodes each as a kafka.Record, invoking handle for every record
// received. It mirrors the accept-loop shape of the teacher's
// octsdb UDP server.
type KCPFollowerListener struct {
	lis *kcp.Listener
}

// ListenKCP opens a KCP listener on addr.
func ListenKCP(addr string) (*KCPFollowerListener, error) {
	lis, err := kcp.ListenWithOptions(addr, nil, kcpFECDataShards, kcpFECParityShards)
	if err != nil {
		return nil, err
	}
	return &KCPFollowerListener{lis: lis}, nil
}

// Serve accepts sessions forever, decoding the stream of concatenated
// JSON records from each and passing them to handle.
func (l *KCPFollowerListener) Serve(handle func(kafka.Record)) error {
	for {
		conn, err := l.lis.AcceptKCP()
		if err != nil {
			return err
		}
		go func() {
			defer conn.Close()
			dec := json.NewDecoder(conn)
			for {
				var rec kafka.Record
				if err := dec.Decode(&rec); err != nil {
					return
				}
				handle(rec)
			}
		}()
	}
}

// Close stops accepting new sessions.
func (l *KCPFollowerListener) Close() error { return l.lis.Close() }
