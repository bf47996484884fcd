// Package mqtest 提供内存版的 Kafka Reader/Writer，供各个消费者适配器的测试使用。
package mqtest

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

// FakeWriter 记录写入的消息；Err 非空时每次写入都失败
type FakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	Err  error
}

func (w *FakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *FakeWriter) Written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

// FakeReader 依次返回预置的消息，用完后关闭 Drained 并阻塞直到 ctx 被取消。
type FakeReader struct {
	topic, group string

	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
	drained   chan struct{}
	once      sync.Once
}

func NewFakeReader(topic, group string, msgs ...kafka.Message) *FakeReader {
	return &FakeReader{topic: topic, group: group, pending: msgs, drained: make(chan struct{})}
}

func (r *FakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	r.once.Do(func() { close(r.drained) })
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *FakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *FakeReader) Config() kafka.ReaderConfig {
	return kafka.ReaderConfig{Topic: r.topic, GroupID: r.group}
}

func (r *FakeReader) Close() error { return nil }

func (r *FakeReader) Commits() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kafka.Message(nil), r.committed...)
}

// Drained 在所有预置消息都被取走之后关闭
func (r *FakeReader) Drained() <-chan struct{} {
	return r.drained
}
