// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package kafkafeed implements collab.WAL and collab.Followers over
// Kafka (durable write-ahead log, replica feed) and, as an alternative
// low-latency follower transport, raw KCP datagram sessions.
package kafkafeed

import (
	"github.com/aristanetworks/keybucket/kafka"
	"github.com/aristanetworks/keybucket/kafka/producer"
)

// KafkaWAL publishes each command passed to Append to a Kafka topic.
// Append hands the record to an asynchronous producer and returns
// without waiting for delivery.
type KafkaWAL struct {
	p       producer.Producer
	records chan kafka.Record
}

// NewKafkaWAL dials brokers through kafka.NewClient and starts a
// producer publishing to topic.
func NewKafkaWAL(brokers []string, topic string) (*KafkaWAL, error) {
	client, err := kafka.NewClient(brokers)
	if err != nil {
		return nil, err
	}
	records := make(chan kafka.Record, 64)
	p, err := producer.NewFromClient(records, kafka.JSONEncoder{Topic: topic}, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	p.Start()
	return &KafkaWAL{p: p, records: records}, nil
}

// Append implements collab.WAL.
func (w *KafkaWAL) Append(dbID int, argv []string) error {
	w.p.Write(kafka.Record{DBID: dbID, Argv: append([]string(nil), argv...)})
	return nil
}

// Close stops the underlying producer.
func (w *KafkaWAL) Close() { w.p.Stop() }

// KafkaFollowers forwards each command passed to Feed to a Kafka topic
// that replica instances subscribe to.
type KafkaFollowers struct {
	p producer.Producer
}

// NewKafkaFollowers dials brokers through kafka.NewClient and starts a
// producer publishing to the replica feed topic.
func NewKafkaFollowers(brokers []string, topic string) (*KafkaFollowers, error) {
	client, err := kafka.NewClient(brokers)
	if err != nil {
		return nil, err
	}
	records := make(chan kafka.Record, 64)
	p, err := producer.NewFromClient(records, kafka.JSONEncoder{Topic: topic}, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	p.Start()
	return &KafkaFollowers{p: p}, nil
}

// Feed implements collab.Followers.
func (f *KafkaFollowers) Feed(dbID int, argv []string) error {
	f.p.Write(kafka.Record{DBID: dbID, Argv: append([]string(nil), argv...)})
	return nil
}

// Close stops the underlying producer.
func (f *KafkaFollowers) Close() { f.p.Stop() }
