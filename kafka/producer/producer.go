// Copyright (C) 2016  Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package producer

import (
	"os"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/aristanetworks/glog"

	"github.com/aristanetworks/keybucket/kafka"
)

// Producer forwards records recvd on a channel to kafka.
type Producer interface {
	Start()
	Write(kafka.Record)
	Stop()
}

type producer struct {
	recordsChan   chan kafka.Record
	kafkaProducer sarama.AsyncProducer
	kafkaClient   sarama.Client
	encoder       kafka.MessageEncoder
	done          chan struct{}
	wg            sync.WaitGroup
}

// New creates new Kafka producer.
func New(recordsChan chan kafka.Record, encoder kafka.MessageEncoder,
	kafkaAddresses []string, kafkaConfig *sarama.Config) (Producer, error) {
	if recordsChan == nil {
		recordsChan = make(chan kafka.Record)
	}

	if kafkaConfig == nil {
		kafkaConfig = sarama.NewConfig()
		hostname, err := os.Hostname()
		if err != nil {
			hostname = ""
		}
		kafkaConfig.ClientID = hostname
		kafkaConfig.Producer.Compression = sarama.CompressionSnappy
		kafkaConfig.Producer.Return.Successes = true
		kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	}

	kafkaProducer, err := sarama.NewAsyncProducer(kafkaAddresses, kafkaConfig)
	if err != nil {
		return nil, err
	}

	p := &producer{
		recordsChan:   recordsChan,
		kafkaProducer: kafkaProducer,
		encoder:       encoder,
		done:          make(chan struct{}),
		wg:            sync.WaitGroup{},
	}
	return p, nil
}

// NewFromClient creates a producer from an already-dialed sarama.Client.
// kafkafeed's WAL and follower-feed constructors each dial their own
// client with kafka.NewClient and pass it here.
func NewFromClient(recordsChan chan kafka.Record, encoder kafka.MessageEncoder,
	client sarama.Client) (Producer, error) {
	if recordsChan == nil {
		recordsChan = make(chan kafka.Record)
	}

	kafkaProducer, err := sarama.NewAsyncProducerFromClient(client)
	if err != nil {
		return nil, err
	}

	p := &producer{
		recordsChan:   recordsChan,
		kafkaProducer: kafkaProducer,
		kafkaClient:   client,
		encoder:       encoder,
		done:          make(chan struct{}),
		wg:            sync.WaitGroup{},
	}
	return p, nil
}

// Start makes producer to start processing writes.
// This method is non-blocking.
func (p *producer) Start() {
	p.wg.Add(3)
	go p.handleSuccesses()
	go p.handleErrors()
	go p.run()
}

func (p *producer) run() {
	defer p.wg.Done()
	for {
		select {
		case rec, open := <-p.recordsChan:
			if !open {
				return
			}
			if err := p.produceRecord(rec); err != nil {
				glog.Errorf("keybucket: producing record: %v", err)
			}
		case <-p.done:
			return
		}
	}
}

func (p *producer) Write(r kafka.Record) {
	p.recordsChan <- r
}

func (p *producer) Stop() {
	close(p.done)
	p.kafkaProducer.Close()
	if p.kafkaClient != nil {
		p.kafkaClient.Close()
	}
	p.wg.Wait()
}

func (p *producer) produceRecord(r kafka.Record) error {
	message, err := p.encoder.Encode(r)
	if err != nil {
		return err
	}
	select {
	case p.kafkaProducer.Input() <- message:
		glog.V(9).Infof("Record produced to Kafka: %s", message)
		return nil
	case <-p.done:
		return nil
	}
}

// handleSuccesses reads from the producer's successes channel and collects some
// information for monitoring
func (p *producer) handleSuccesses() {
	defer p.wg.Done()
	for msg := range p.kafkaProducer.Successes() {
		p.encoder.HandleSuccess(msg)
	}
}

// handleErrors reads from the producer's errors channel and collects some information
// for monitoring
func (p *producer) handleErrors() {
	defer p.wg.Done()
	for msg := range p.kafkaProducer.Errors() {
		p.encoder.HandleError(msg)
	}
}
