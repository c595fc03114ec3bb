// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package metrics exports the server's state as Prometheus metrics, as
// periodic InfluxDB snapshots, and as Splunk HEC audit events.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aristanetworks/keybucket/bucket"
	"github.com/aristanetworks/keybucket/server"
)

var (
	expiredKeysTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "keybucket",
		Name:      "expired_keys_total",
		Help:      "Keys evicted by lazy TTL expiry.",
	})
	scanLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "keybucket",
		Name:      "scan_latency_seconds",
		Help:      "Latency of a single SCAN cursor step.",
		Buckets:   prometheus.DefBuckets,
	})
	dirtyCounter = prometheus.NewDesc(
		"keybucket_dirty_keys_total",
		"Writes applied since the process started.",
		nil, nil,
	)
	bucketStatusGauge = prometheus.NewDesc(
		"keybucket_buckets",
		"Number of buckets in each migration status.",
		[]string{"status"}, nil,
	)
)

// ExpiredKey increments the expired-key counter. Call it from
// store.Database's expiry path via a collab.KeyspaceEvents adapter.
func ExpiredKey() { expiredKeysTotal.Inc() }

// ObserveScanLatency records how long one SCAN step took, in seconds.
func ObserveScanLatency(seconds float64) { scanLatencySeconds.Observe(seconds) }

// Collector implements prometheus.Collector over a live server.State,
// mirroring the teacher's ocprometheus collector shape: a struct holding
// the thing being observed plus whatever bookkeeping Describe/Collect
// need, registered once with a prometheus.Registry.
type Collector struct {
	mu    sync.Mutex
	state *server.State
}

// NewCollector wraps state for Prometheus scraping.
func NewCollector(state *server.State) *Collector {
	return &Collector{state: state}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- dirtyCounter
	ch <- bucketStatusGauge
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch <- prometheus.MustNewConstMetric(dirtyCounter, prometheus.CounterValue,
		float64(c.state.DirtyCounter))

	counts := map[bucket.Status]int{}
	for id := uint32(0); id < c.state.Buckets.Len(); id++ {
		counts[c.state.Buckets.Bucket(id).Status]++
	}
	for status, n := range counts {
		ch <- prometheus.MustNewConstMetric(bucketStatusGauge, prometheus.GaugeValue,
			float64(n), status.String())
	}
}

// Register registers the package counters/histograms and a Collector
// for state with reg.
func Register(reg *prometheus.Registry, state *server.State) error {
	for _, c := range []prometheus.Collector{expiredKeysTotal, scanLatencySeconds, NewCollector(state)} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
