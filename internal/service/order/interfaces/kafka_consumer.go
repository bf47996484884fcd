// internal/service/order/interfaces/kafka_consumer.go
package interfaces

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/metrics"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
)

// OrderEventConsumerAdapter 是一个驱动适配器，它监听生命周期事件并驱动 OrderEventConsumer。
// 多个 Reader 加入同一个消费组，分区被分摊到各个 Reader 上并发处理。
type OrderEventConsumerAdapter struct {
	consumers []*mq.Consumer
}

func NewOrderEventConsumerAdapter(readers []mq.MessageReader, consumer *application.OrderEventConsumer, failure *mq.FailureHandler, opts mq.ConsumerOptions) *OrderEventConsumerAdapter {
	opts.Retryable = IsRetryable
	a := &OrderEventConsumerAdapter{}
	for _, reader := range readers {
		group := reader.Config().GroupID
		handle := func(ctx context.Context, msg kafka.Message) error {
			start := time.Now()
			err := consumer.HandleMessage(ctx, string(msg.Key), msg.Value)
			metrics.MessageHandleDuration.WithLabelValues(group).Observe(time.Since(start).Seconds())
			metrics.MessagesConsumed.WithLabelValues(group, string(msg.Key), resultLabel(err)).Inc()
			return err
		}
		a.consumers = append(a.consumers, mq.NewConsumer("order-event-consumer", reader, handle, failure, opts))
	}
	return a
}

func (a *OrderEventConsumerAdapter) Start(ctx context.Context) error {
	for _, c := range a.consumers {
		if err := c.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop 并行停止所有 Reader，正在结算的消息被取消且不会提交
func (a *OrderEventConsumerAdapter) Stop(ctx context.Context) {
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

// IsRetryable 判断失败的消息是否值得在进程内重投递。
// 无法解码、订单不存在、发布失败（状态已推进，重放只会被跳过）直接进入死信。
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrMalformedEvent),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrPublishFailure),
		errors.Is(err, domain.ErrInvalidState):
		return false
	}
	return true
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
