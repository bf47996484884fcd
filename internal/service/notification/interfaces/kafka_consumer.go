// internal/service/notification/interfaces/kafka_consumer.go
package interfaces

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/metrics"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/notification/application"
	"orderflow/internal/service/notification/domain"
)

// NotificationConsumerAdapter 以独立消费组订阅同一个生命周期主题，驱动 NotificationDispatcher
type NotificationConsumerAdapter struct {
	consumers []*mq.Consumer
}

func NewNotificationConsumerAdapter(readers []mq.MessageReader, dispatcher *application.NotificationDispatcher, failure *mq.FailureHandler, opts mq.ConsumerOptions) *NotificationConsumerAdapter {
	opts.Retryable = IsRetryable
	a := &NotificationConsumerAdapter{}
	for _, reader := range readers {
		group := reader.Config().GroupID
		handle := func(ctx context.Context, msg kafka.Message) error {
			start := time.Now()
			err := dispatcher.HandleMessage(ctx, string(msg.Key), msg.Value)
			metrics.MessageHandleDuration.WithLabelValues(group).Observe(time.Since(start).Seconds())
			result := "ok"
			if err != nil {
				result = "error"
			}
			metrics.MessagesConsumed.WithLabelValues(group, string(msg.Key), result).Inc()
			return err
		}
		a.consumers = append(a.consumers, mq.NewConsumer("notification-dispatcher", reader, handle, failure, opts))
	}
	return a
}

func (a *NotificationConsumerAdapter) Start(ctx context.Context) error {
	for _, c := range a.consumers {
		if err := c.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *NotificationConsumerAdapter) Stop(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range a.consumers {
		wg.Add(1)
		go func(c *mq.Consumer) {
			defer wg.Done()
			c.Stop(ctx)
		}(c)
	}
	wg.Wait()
}

// IsRetryable 无法解码或订单、用户不存在的消息直接进入死信
func IsRetryable(err error) bool {
	return !errors.Is(err, domain.ErrMalformedEvent) && !errors.Is(err, domain.ErrNotFound)
}
