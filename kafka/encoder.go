// Copyright (C) 2017  Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package kafka

import (
	"encoding/json"
	"strconv"

	"github.com/Shopify/sarama"
)

// Record is a single command to durably record: the database it ran
// against and its argv, the same shape Dispatcher.Exec takes.
type Record struct {
	DBID int      `json:"db"`
	Argv []string `json:"argv"`
}

// MessageEncoder handles encoding a Record to a sarama.ProducerMessage
// and reports back on its eventual delivery.
type MessageEncoder interface {
	Encode(Record) (*sarama.ProducerMessage, error)
	HandleSuccess(*sarama.ProducerMessage)
	HandleError(*sarama.ProducerError)
}

// JSONEncoder is the default MessageEncoder: one JSON document per
// record, keyed by database id so a single partition preserves ordering
// of writes within a database.
type JSONEncoder struct {
	Topic string
}

// Encode implements MessageEncoder.
func (e JSONEncoder) Encode(r Record) (*sarama.ProducerMessage, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return &sarama.ProducerMessage{
		Topic: e.Topic,
		Key:   sarama.StringEncoder(strconv.Itoa(r.DBID)),
		Value: sarama.ByteEncoder(body),
	}, nil
}

// HandleSuccess is a no-op; callers that care about delivery should wrap
// JSONEncoder rather than rely on side effects here.
func (e JSONEncoder) HandleSuccess(*sarama.ProducerMessage) {}

// HandleError is a no-op for the same reason.
func (e JSONEncoder) HandleError(*sarama.ProducerError) {}
