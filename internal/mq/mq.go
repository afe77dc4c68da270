package mq

import (
	"context"
	"errors"

	"github.com/cozy-creator/medpredict/internal/config"
)

var (
	ErrTopicNotExists = errors.New("topic does not exist")
	ErrQueueFull      = errors.New("queue is full")
	ErrQueueClosed    = errors.New("queue closed")
	ErrTopicClosed    = errors.New("topic closed")
)

const (
	MQTypeInMemory = "inmemory"
	MQTypePulsar   = "pulsar"
)

const DefaultInMemorySize = 64

// Message is a received payload that must be acknowledged once handled.
type Message interface {
	Data() []byte
}

type MQ interface {
	Publish(ctx context.Context, topic string, message []byte) error
	Receive(ctx context.Context, topic string) (Message, error)
	Ack(topic string, message Message) error
	CloseTopic(topic string) error
	Close() error
}

// NewMQ returns a Pulsar-backed queue when pulsar.url is set and an
// in-process one otherwise.
func NewMQ(cfg *config.Config) (MQ, error) {
	if cfg != nil && cfg.Pulsar != nil && cfg.Pulsar.URL != "" {
		return NewPulsarMQ(cfg.Pulsar)
	}
	return NewInMemoryMQ(DefaultInMemorySize)
}

// Type names the backend of q.
func Type(q MQ) string {
	if _, ok := q.(*PulsarMQ); ok {
		return MQTypePulsar
	}
	return MQTypeInMemory
}
