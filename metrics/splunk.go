// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package metrics

import (
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	hec "github.com/aristanetworks/splunk-hec-go"
)

// AuditSink forwards RCTRANSBEGIN/RCTRANSEND/RCRESETBUCKETS outcomes to
// Splunk as HEC events, for operators who want a durable audit trail of
// migration activity distinct from the WAL.
type AuditSink struct {
	cluster hec.Cluster
	host    string
	index   *string
}

// NewAuditSink connects to the comma-separated Splunk HEC urls with
// token, indexing events under index (empty means the HEC default).
func NewAuditSink(urls, token, host, index string, insecureSkipVerify bool) *AuditSink {
	cluster := hec.NewCluster(strings.Split(urls, ","), token)
	cluster.SetHTTPClient(&http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: insecureSkipVerify},
		},
	})
	var idx *string
	if index != "" {
		idx = &index
	}
	return &AuditSink{cluster: cluster, host: host, index: idx}
}

// Record writes one migration-command audit event.
func (s *AuditSink) Record(command string, fields map[string]interface{}) error {
	sourceType := "keybucket-migration"
	event := &hec.Event{
		Host:       &s.host,
		Index:      s.index,
		Source:     &command,
		SourceType: &sourceType,
		Event:      fields,
	}
	event.SetTime(time.Now())
	return s.cluster.WriteEvent(event)
}
