package mq

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/logger"
)

// Handler 处理一条消息。返回 nil 表示处理成功，可以提交 offset。
type Handler func(ctx context.Context, msg kafka.Message) error

// ConsumerOptions 控制进程内的重投递策略。
type ConsumerOptions struct {
	// MaxAttempts 是一条消息最多被处理的次数（含第一次），<=0 时为 1。
	MaxAttempts int
	// InitialBackoff 是第一次重试前的等待时间。
	InitialBackoff time.Duration
	// Retryable 判断错误是否值得重试，nil 表示所有错误都重试。
	Retryable func(error) bool
	// MaxRedeliveryInterval 限制死信写入失败后的重试间隔，<=0 时为 30s。
	MaxRedeliveryInterval time.Duration
}

// Consumer 是一个通用的 Kafka 驱动适配器：拉取 → 处理 → 提交。
// 处理失败会先在进程内按退避策略重投递，耗尽后交给 FailureHandler 写入死信主题。
type Consumer struct {
	name    string
	reader  MessageReader
	handle  Handler
	failure *FailureHandler
	opts    ConsumerOptions

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewConsumer(name string, reader MessageReader, handle Handler, failure *FailureHandler, opts ConsumerOptions) *Consumer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	if opts.MaxRedeliveryInterval <= 0 {
		opts.MaxRedeliveryInterval = 30 * time.Second
	}
	return &Consumer{
		name:    name,
		reader:  reader,
		handle:  handle,
		failure: failure,
		opts:    opts,
	}
}

// Start 开始监听主题，立即返回。
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
	return nil
}

// Stop 优雅地停止消费者：取消正在进行的处理（不会提交），等待循环退出后关闭 Reader。
func (c *Consumer) Stop(ctx context.Context) {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if err := c.reader.Close(); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("Failed to close kafka reader")
	}
	logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("✅ Kafka consumer stopped.")
}

func (c *Consumer) run(ctx context.Context) {
	cfg := c.reader.Config()
	logger.Ctx(ctx).Info().
		Str("consumer", c.name).
		Str("topic", cfg.Topic).
		Str("group", cfg.GroupID).
		Msg("✅ Kafka consumer started.")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("🛑 Kafka consumer shutting down.")
				return
			}
			logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("Could not fetch message, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		msgCtx := ExtractTraceContext(ctx, msg.Headers)
		if !c.deliver(msgCtx, msg) {
			// 只有关停才会走到这里：不提交，等待 Kafka 在重启或再平衡后重新投递
			return
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("Failed to commit message")
		}
	}
}

// deliver 直到消息终结（处理成功或写入死信）才返回 true，只有 ctx 结束时返回 false。
// 死信写入失败或没有 FailureHandler 时按退避持续重试，不会跳过这条消息，也不会让读循环退出。
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message) bool {
	wait := backoff.NewExponentialBackOff()
	wait.InitialInterval = c.opts.InitialBackoff
	wait.MaxInterval = c.opts.MaxRedeliveryInterval
	wait.MaxElapsedTime = 0

	for {
		attempts, err := c.process(ctx, msg)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("consumer", c.name).Msg("Handling interrupted, message left uncommitted")
			return false
		}
		if c.failure != nil {
			return c.deadLetter(ctx, msg, err, attempts, wait)
		}
		logger.Ctx(ctx).Error().Err(err).
			Str("consumer", c.name).
			Int64("offset", msg.Offset).
			Msg("No failure handler, redelivering message")
		if !sleep(ctx, wait.NextBackOff()) {
			return false
		}
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error, attempts int, wait backoff.BackOff) bool {
	for {
		ferr := c.failure.Handle(ctx, msg, cause, attempts)
		if ferr == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		logger.Ctx(ctx).Error().Err(ferr).
			Str("consumer", c.name).
			Int64("offset", msg.Offset).
			Msg("🚨 CRITICAL: dead letter write failed, retrying")
		if !sleep(ctx, wait.NextBackOff()) {
			return false
		}
	}
}

// process 按 ConsumerOptions 在进程内重投递，返回处理次数和最后一次的错误
func (c *Consumer) process(ctx context.Context, msg kafka.Message) (int, error) {
	attempts := 0
	op := func() error {
		attempts++
		err := c.handle(ctx, msg)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || (c.opts.Retryable != nil && !c.opts.Retryable(err)) {
			return backoff.Permanent(err)
		}
		logger.Ctx(ctx).Warn().Err(err).
			Str("consumer", c.name).
			Str("key", string(msg.Key)).
			Int("attempt", attempts).
			Msg("Message handling failed")
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxAttempts-1)), ctx)

	err := backoff.Retry(op, policy)
	return attempts, err
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
