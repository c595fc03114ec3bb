// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package server holds the process-wide keyspace handle: configuration,
// the session registry driving migration role gating, and the State
// struct threaded into every dispatched command instead of package
// globals (§9 design note).
package server

import (
	"os"
	"sync"

	"github.com/aristanetworks/fsnotify"
	"gopkg.in/yaml.v2"

	"github.com/aristanetworks/keybucket/logger"
)

// DefaultBuckets is the reference bucket count B (§ GLOSSARY).
const DefaultBuckets = 420000

// Config is the on-disk server configuration.
type Config struct {
	DBNum             int      `yaml:"dbnum"`
	Buckets           uint32   `yaml:"buckets"`
	KafkaBrokers      []string `yaml:"kafka_brokers"`
	FeedTransport     string   `yaml:"feed_transport"` // "kafka" or "kcp"
	FollowerAddresses []string `yaml:"follower_addresses"`
	ListenAddress     string   `yaml:"listen_address"`
	ListenTOS         uint8    `yaml:"listen_tos"` // 0 leaves the socket's default ToS untouched
	MetricsAddress    string   `yaml:"metrics_address"`
}

// DefaultConfig returns a Config usable standalone, with no Kafka
// brokers configured (the WAL/follower collaborators become no-ops).
func DefaultConfig() *Config {
	return &Config{
		DBNum:          16,
		Buckets:        DefaultBuckets,
		FeedTransport:  "kafka",
		ListenAddress:  ":6400",
		MetricsAddress: ":6401",
	}
}

// LoadConfig reads and parses a YAML config file, starting from
// DefaultConfig so a partial file only overrides what it sets.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WatchReloadable hot-reloads the Kafka broker list, feed transport and
// listen address from path whenever it changes on disk. Buckets (B) is
// read once at startup by LoadConfig and never touched again here: the
// bucket count is invariant for the process lifetime (§3), unlike the
// transport-level settings a config watcher can safely swap.
func WatchReloadable(path string, cfg *Config, log logger.Logger) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}
	var mu sync.Mutex
	go func() {
		for ev := range w.Events {
			if ev.Op&fsnotify.Write == 0 {
				continue
			}
			fresh, err := LoadConfig(path)
			if err != nil {
				if log != nil {
					log.Errorf("keybucket: reload %s: %v", path, err)
				}
				continue
			}
			mu.Lock()
			cfg.KafkaBrokers = fresh.KafkaBrokers
			cfg.FeedTransport = fresh.FeedTransport
			cfg.FollowerAddresses = fresh.FollowerAddresses
			cfg.ListenAddress = fresh.ListenAddress
			cfg.ListenTOS = fresh.ListenTOS
			mu.Unlock()
		}
	}()
	return w, nil
}
