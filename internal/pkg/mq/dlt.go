package mq

import (
	"context"

	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/logger"
)

// NewDeadLetterConsumer 监听死信主题并记录结构化日志。
// 死信消息总是直接提交，因为它们已经被“处理”了（即记录日志）。
func NewDeadLetterConsumer(reader MessageReader) *Consumer {
	return NewConsumer("dead-letter-logger", reader, logDeadLetter, nil, ConsumerOptions{MaxAttempts: 1})
}

func logDeadLetter(ctx context.Context, msg kafka.Message) error {
	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", GetHeader(msg.Headers, HeaderOriginalTopic)).
		Str("original_partition", GetHeader(msg.Headers, HeaderOriginalPartition)).
		Str("original_offset", GetHeader(msg.Headers, HeaderOriginalOffset)).
		Str("consumer_group", GetHeader(msg.Headers, HeaderConsumerGroup)).
		Str("exception_fqcn", GetHeader(msg.Headers, HeaderExceptionFqcn)).
		Str("exception_message", GetHeader(msg.Headers, HeaderExceptionMessage)).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
	return nil
}
