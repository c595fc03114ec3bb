// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package metrics

import (
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/aristanetworks/keybucket/bucket"
	"github.com/aristanetworks/keybucket/server"
)

// InfluxExporter periodically snapshots bucket-status counts and the
// dirty counter into an InfluxDB database, for operators who graph
// migration progress over time rather than scrape Prometheus.
type InfluxExporter struct {
	c        client.Client
	database string
	state    *server.State
}

// NewInfluxExporter dials addr (e.g. "http://localhost:8086").
func NewInfluxExporter(addr, username, password, database string, state *server.State) (*InfluxExporter, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     addr,
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	return &InfluxExporter{c: c, database: database, state: state}, nil
}

// Run writes one snapshot every interval until stop is closed.
func (e *InfluxExporter) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = e.snapshot()
		case <-stop:
			return
		}
	}
}

// Close releases the underlying HTTP client.
func (e *InfluxExporter) Close() error { return e.c.Close() }

func (e *InfluxExporter) snapshot() error {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{Database: e.database})
	if err != nil {
		return err
	}

	now := time.Now()
	counts := map[bucket.Status]int{}
	for id := uint32(0); id < e.state.Buckets.Len(); id++ {
		counts[e.state.Buckets.Bucket(id).Status]++
	}
	for status, n := range counts {
		p, err := client.NewPoint("keybucket_buckets",
			map[string]string{"status": status.String()},
			map[string]interface{}{"count": n},
			now)
		if err != nil {
			return err
		}
		bp.AddPoint(p)
	}

	dirty, err := client.NewPoint("keybucket_dirty_keys",
		nil, map[string]interface{}{"count": e.state.DirtyCounter}, now)
	if err != nil {
		return err
	}
	bp.AddPoint(dirty)

	return e.c.Write(bp)
}
