// Copyright (c) 2016 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package producer

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/Shopify/sarama"

	"github.com/aristanetworks/keybucket/kafka"
)

type mockAsyncProducer struct {
	input     chan *sarama.ProducerMessage
	successes chan *sarama.ProducerMessage
	errors    chan *sarama.ProducerError
}

func newMockAsyncProducer() *mockAsyncProducer {
	return &mockAsyncProducer{
		input:     make(chan *sarama.ProducerMessage),
		successes: make(chan *sarama.ProducerMessage),
		errors:    make(chan *sarama.ProducerError)}
}

func (p *mockAsyncProducer) AsyncClose() {
	panic("Not implemented")
}

func (p *mockAsyncProducer) Close() error {
	close(p.successes)
	close(p.errors)
	return nil
}

func (p *mockAsyncProducer) Input() chan<- *sarama.ProducerMessage {
	return p.input
}

func (p *mockAsyncProducer) Successes() <-chan *sarama.ProducerMessage {
	return p.successes
}

func (p *mockAsyncProducer) Errors() <-chan *sarama.ProducerError {
	return p.errors
}

func TestKafkaProducer(t *testing.T) {
	mock := newMockAsyncProducer()
	toWAL := make(chan kafka.Record)
	topic := "keybucket-wal"
	toWALProducer := &producer{
		recordsChan:   toWAL,
		kafkaProducer: mock,
		encoder:       kafka.JSONEncoder{Topic: topic},
		done:          make(chan struct{}),
		wg:            sync.WaitGroup{},
	}

	toWALProducer.Start()

	rec := kafka.Record{DBID: 3, Argv: []string{"SET", "alpha", "1"}}
	toWAL <- rec

	kafkaMessage := <-mock.input
	if kafkaMessage.Topic != topic {
		t.Errorf("Unexpected Topic: %s, expecting %s", kafkaMessage.Topic, topic)
	}
	key, err := kafkaMessage.Key.Encode()
	if err != nil {
		t.Fatalf("Error encoding key: %s", err)
	}
	if string(key) != "3" {
		t.Errorf("Kafka message didn't have expected key: %s, expecting %q", string(key), "3")
	}

	valueBytes, err := kafkaMessage.Value.Encode()
	if err != nil {
		t.Fatalf("Error encoding value: %s", err)
	}
	var got kafka.Record
	if err := json.Unmarshal(valueBytes, &got); err != nil {
		t.Errorf("Error decoding into JSON: %s", err)
	}
	if got.DBID != rec.DBID || len(got.Argv) != len(rec.Argv) {
		t.Errorf("record sent from Kafka producer does not match original.\nOriginal: %#v\nNew: %#v", rec, got)
	}
	toWALProducer.Stop()
}

func TestProducerStartStop(t *testing.T) {
	// this test checks that Start() followed by Stop() doesn't cause any race conditions.

	mock := newMockAsyncProducer()
	toWAL := make(chan kafka.Record)
	p := &producer{
		recordsChan:   toWAL,
		kafkaProducer: mock,
		encoder:       kafka.JSONEncoder{Topic: "keybucket-wal"},
		done:          make(chan struct{}),
	}

	rec := kafka.Record{DBID: 0, Argv: []string{"DEL", "foo"}}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-mock.input:
			case <-done:
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			p.Write(rec)
		}
	}()
	p.Start()
	p.Write(rec)
	p.Stop()
	close(done)
	wg.Wait()
}
