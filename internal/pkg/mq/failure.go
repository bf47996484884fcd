package mq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/metrics"
)

// DeadLetterTopic 返回某个消费组专属的死信主题名。
// 两个消费组共享同一个业务主题，因此死信必须按组隔离，不能回投到原主题。
func DeadLetterTopic(topic, group string) string {
	return fmt.Sprintf("%s.%s.dlt", topic, group)
}

// FailureHandler 负责处理重试耗尽的消息：附加诊断信息后投递到死信主题。
type FailureHandler struct {
	writer   MessageWriter
	dltTopic string
	group    string
	// maxElapsed 限制投递死信本身的重试时长
	maxElapsed time.Duration
}

func NewFailureHandler(writer MessageWriter, dltTopic, group string) *FailureHandler {
	return &FailureHandler{
		writer:     writer,
		dltTopic:   dltTopic,
		group:      group,
		maxElapsed: time.Minute,
	}
}

// Handle 把失败的消息写入死信主题。返回错误表示死信也没能写入，调用方不能提交 offset。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error, attempts int) error {
	dlt := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header(nil), msg.Headers...),
			kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
			kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: HeaderConsumerGroup, Value: []byte(h.group)},
			kafka.Header{Key: HeaderExceptionFqcn, Value: []byte(fmt.Sprintf("%T", errors.Cause(cause)))},
			kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
			kafka.Header{Key: HeaderAttempts, Value: []byte(strconv.Itoa(attempts))},
		),
		Time: time.Now().UTC(),
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = h.maxElapsed
	err := backoff.Retry(func() error {
		return h.writer.WriteMessages(ctx, dlt)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return errors.Wrapf(err, "write dead letter to %s", h.dltTopic)
	}

	metrics.DeadLettered.WithLabelValues(h.dltTopic).Inc()
	logger.Ctx(ctx).Warn().
		Err(cause).
		Str("dlt_topic", h.dltTopic).
		Str("key", string(msg.Key)).
		Int64("offset", msg.Offset).
		Int("attempts", attempts).
		Msg("Message routed to dead letter topic")
	return nil
}
