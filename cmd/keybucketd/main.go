// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Command keybucketd is the keyspace server: it wires the bucket table,
// the per-database stores, the WAL/follower collaborators, and the
// dispatcher behind a line-oriented TCP listener, and hosts the
// Prometheus/pprof/expvar monitor endpoint alongside it.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/aristanetworks/glog"
	"github.com/prometheus/client_golang/prometheus"

	glogger "github.com/aristanetworks/keybucket/glog"
	"github.com/aristanetworks/keybucket/collab"
	"github.com/aristanetworks/keybucket/dispatch"
	"github.com/aristanetworks/keybucket/dscp"
	"github.com/aristanetworks/keybucket/kafka"
	"github.com/aristanetworks/keybucket/kafkafeed"
	"github.com/aristanetworks/keybucket/logger"
	"github.com/aristanetworks/keybucket/metrics"
	"github.com/aristanetworks/keybucket/monitor"
	"github.com/aristanetworks/keybucket/server"
)

var configPath = flag.String("config", "", "path to the YAML server config file")

func main() {
	flag.Parse()

	cfg := server.DefaultConfig()
	if *configPath != "" {
		loaded, err := server.LoadConfig(*configPath)
		if err != nil {
			glog.Fatalf("keybucket: loading config %s: %v", *configPath, err)
		}
		cfg = loaded
		if _, err := server.WatchReloadable(*configPath, cfg, &glogger.Glog{}); err != nil {
			glog.Errorf("keybucket: watching %s for reload: %v", *configPath, err)
		}
	} else if *kafka.Addresses != "" {
		// No config file: fall back to the -kafka flag for a minimal
		// standalone deployment against a single broker list.
		cfg.KafkaBrokers = strings.Split(*kafka.Addresses, ",")
	}

	log := logger.Logger(&glogger.Glog{})
	bundle := collab.Default(nil)
	wireCollaborators(cfg, bundle, log)

	state := server.NewState(cfg, bundle, log)
	d := dispatch.New(state)

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry, state); err != nil {
		glog.Errorf("keybucket: registering metrics: %v", err)
	}
	go monitor.NewMonitorServerWithMetrics(cfg.MetricsAddress, registry).Run()

	lis, err := listen(cfg, log)
	if err != nil {
		glog.Fatalf("keybucket: listening on %s: %v", cfg.ListenAddress, err)
	}
	glog.Infof("keybucket: listening on %s", cfg.ListenAddress)
	serve(lis, d)
}

// listen opens the client-facing socket, tagging it with cfg.ListenTOS
// when set so an operator can place migration/replication traffic in a
// distinct QoS class from ordinary client traffic.
func listen(cfg *server.Config, log logger.Logger) (net.Listener, error) {
	if cfg.ListenTOS == 0 {
		return net.Listen("tcp", cfg.ListenAddress)
	}
	return dscp.ListenTCPWithTOS(cfg.ListenAddress, cfg.ListenTOS, log)
}

// wireCollaborators replaces the Bundle's WAL with a Kafka-backed one
// whenever brokers are configured, and its Followers with a Kafka- or
// KCP-backed implementation per cfg.FeedTransport. A config with no
// Kafka brokers and no follower addresses leaves the no-op defaults in
// place, which is the single-instance, no-replication mode.
func wireCollaborators(cfg *server.Config, bundle *collab.Bundle, log logger.Logger) {
	if len(cfg.KafkaBrokers) > 0 {
		wal, err := kafkafeed.NewKafkaWAL(cfg.KafkaBrokers, "keybucket-wal")
		if err != nil {
			glog.Errorf("keybucket: starting WAL producer: %v", err)
		} else {
			bundle.WAL = wal
		}
	}

	switch cfg.FeedTransport {
	case "kcp":
		if len(cfg.FollowerAddresses) > 0 {
			bundle.Followers = kafkafeed.DialKCPFollowers(cfg.FollowerAddresses)
		}
	case "kafka":
		if len(cfg.KafkaBrokers) > 0 {
			followers, err := kafkafeed.NewKafkaFollowers(cfg.KafkaBrokers, "keybucket-feed")
			if err != nil {
				glog.Errorf("keybucket: starting follower producer: %v", err)
			} else {
				bundle.Followers = followers
			}
		}
	}

	bundle.Events = metrics.KeyspaceEvents{Next: collab.LogEvents{Log: log}}
}

// serve accepts connections forever, handling each on its own
// goroutine. Every connection gets its own server.Session, but all of
// them share the single Dispatcher -- per §5, Exec is never called
// concurrently, so every connection hands its commands to execCh and a
// single goroutine draining that channel runs them one at a time. That
// serializes all commands without requiring every command handler to
// know about concurrency.
func serve(lis net.Listener, d *dispatch.Dispatcher) {
	execCh := make(chan func())
	go func() {
		for fn := range execCh {
			fn()
		}
	}()
	for {
		conn, err := lis.Accept()
		if err != nil {
			glog.Errorf("keybucket: accept: %v", err)
			continue
		}
		go handleConn(conn, d, execCh)
	}
}

func handleConn(conn net.Conn, d *dispatch.Dispatcher, execCh chan func()) {
	defer conn.Close()
	sess := d.State.NewSession()
	defer d.State.CloseSession(sess.ID)

	scanner := bufio.NewScanner(conn)
	w := bufio.NewWriter(conn)
	for scanner.Scan() {
		argv := strings.Fields(scanner.Text())
		if len(argv) == 0 {
			continue
		}
		result := make(chan dispatch.Reply, 1)
		execCh <- func() { result <- d.Exec(sess, argv) }
		writeReply(w, <-result)
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func writeReply(w io.Writer, r dispatch.Reply) {
	switch r.Kind {
	case dispatch.KindOK:
		fmt.Fprint(w, "+OK\r\n")
	case dispatch.KindInt:
		fmt.Fprintf(w, ":%d\r\n", r.Int)
	case dispatch.KindBulk:
		fmt.Fprintf(w, "$%d\r\n%s\r\n", len(r.Bulk), r.Bulk)
	case dispatch.KindNil:
		fmt.Fprint(w, "$-1\r\n")
	case dispatch.KindMulti:
		fmt.Fprintf(w, "*%d\r\n", len(r.Multi))
		for _, item := range r.Multi {
			writeReply(w, item)
		}
	case dispatch.KindError:
		fmt.Fprintf(w, "-ERR %s\r\n", r.Err)
	}
}
