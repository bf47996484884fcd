// internal/pkg/mq/kafka.go
package mq

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter 是 *kafka.Writer 的最小抽象，便于在测试中替换。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// MessageReader 是 *kafka.Reader 的最小抽象。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
	Close() error
}

// NewKafkaWriter 创建一个写入指定主题的 Writer。
// 分区由 PartitionKeyBalancer 决定：优先使用 x-partition-key 头，其次是消息 Key。
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &PartitionKeyBalancer{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaReader 创建一个加入消费组的 Reader。每个消费组独立维护 offset。
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0, // 同步提交，只有处理完成后才提交 offset
		StartOffset:    kafka.FirstOffset,
	})
}

// ProduceMessage 发送一条消息，并自动把当前追踪上下文注入消息头。
func ProduceMessage(ctx context.Context, writer MessageWriter, key, value []byte, headers ...kafka.Header) error {
	msg := kafka.Message{
		Key:     key,
		Value:   value,
		Headers: append([]kafka.Header(nil), headers...),
		Time:    time.Now().UTC(),
	}
	InjectTraceContext(ctx, &msg.Headers)
	return writer.WriteMessages(ctx, msg)
}

// PartitionKeyBalancer 按 x-partition-key 头做哈希分区。
// 路由 Key 只有少数几个取值，直接按 Key 分区会让同类事件挤在一个分区里。
type PartitionKeyBalancer struct {
	hash kafka.Hash
}

func (b *PartitionKeyBalancer) Balance(msg kafka.Message, partitions ...int) int {
	if key := GetHeader(msg.Headers, HeaderPartitionKey); key != "" {
		msg.Key = []byte(key)
	}
	return b.hash.Balance(msg, partitions...)
}
