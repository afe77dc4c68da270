package mq

import (
	"context"
	"sync"
)

type inMemoryMessage []byte

func (m inMemoryMessage) Data() []byte {
	return m
}

type InMemoryMQ struct {
	maxSize   int
	topics    sync.Map
	closeCh   chan struct{}
	closeOnce sync.Once
}

func NewInMemoryMQ(maxSize int) (*InMemoryMQ, error) {
	if maxSize <= 0 {
		maxSize = DefaultInMemorySize
	}

	return &InMemoryMQ{
		maxSize: maxSize,
		closeCh: make(chan struct{}),
	}, nil
}

func (q *InMemoryMQ) topic(name string) chan []byte {
	value, _ := q.topics.LoadOrStore(name, make(chan []byte, q.maxSize))
	return value.(chan []byte)
}

// Publish never blocks; a full topic yields ErrQueueFull.
func (q *InMemoryMQ) Publish(ctx context.Context, topic string, message []byte) error {
	select {
	case <-q.closeCh:
		return ErrQueueClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.topic(topic) <- message:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *InMemoryMQ) Receive(ctx context.Context, topic string) (Message, error) {
	ch := q.topic(topic)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closeCh:
		return nil, ErrQueueClosed
	case data, ok := <-ch:
		if !ok {
			q.topics.Delete(topic)
			return nil, ErrTopicClosed
		}
		return inMemoryMessage(data), nil
	}
}

// Ack is a no-op; delivery is at most once.
func (q *InMemoryMQ) Ack(string, Message) error {
	return nil
}

func (q *InMemoryMQ) CloseTopic(topic string) error {
	value, ok := q.topics.Load(topic)
	if !ok {
		return ErrTopicNotExists
	}

	close(value.(chan []byte))
	return nil
}

func (q *InMemoryMQ) Close() error {
	q.closeOnce.Do(func() { close(q.closeCh) })
	return nil
}
