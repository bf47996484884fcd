// internal/service/order/application/sweeper.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/metrics"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// SweepResult 汇总一次超时回收
type SweepResult struct {
	Expired int // 成功转为 EXPIRED 的订单数
	Skipped int // 复查时已不满足条件（被结算抢先）
	Failed  int // 存储或发布失败
}

// ExpirationSweeper 定期把创建时间早于 now-threshold 且仍在 PROCESSING 的订单转为 EXPIRED。
// 每个订单单独一个事务，一个订单失败不影响其他订单。
type ExpirationSweeper struct {
	orders    domain.OrderRepository
	uow       domain.UnitOfWork
	publisher port.EventPublisher
	threshold time.Duration
	schedule  string
	lock      port.SweepLock
	tracer    trace.Tracer
	now       func() time.Time

	cron *cron.Cron
}

func NewExpirationSweeper(orders domain.OrderRepository, uow domain.UnitOfWork, publisher port.EventPublisher, threshold time.Duration, schedule string, tracer trace.Tracer) *ExpirationSweeper {
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &ExpirationSweeper{
		orders:    orders,
		uow:       uow,
		publisher: publisher,
		threshold: threshold,
		schedule:  schedule,
		tracer:    tracer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithLock 设置跨副本互斥锁，未抢到锁的副本跳过本轮
func (s *ExpirationSweeper) WithLock(lock port.SweepLock) *ExpirationSweeper {
	s.lock = lock
	return s
}

// RunOnce 执行一轮回收。没有超时订单时什么也不做。
func (s *ExpirationSweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.SweepExpiredOrders")
	defer span.End()

	var result SweepResult
	cutoff := s.now().Add(-s.threshold)
	stale, err := s.orders.FindByStatusOlderThan(ctx, domain.StatusProcessing, cutoff)
	if err != nil {
		return result, recordErr(span, err, "query stale orders failed")
	}
	span.SetAttributes(attribute.Int("sweep.candidates", len(stale)))
	if len(stale) == 0 {
		return result, nil
	}

	for _, candidate := range stale {
		if ctx.Err() != nil {
			break
		}
		log := logger.Ctx(ctx).With().Str("order_id", candidate.ID).Logger()

		expired, err := s.expire(ctx, candidate.ID, cutoff)
		if err != nil {
			result.Failed++
			log.Error().Err(err).Msg("Failed to expire order")
			continue
		}
		if expired == nil {
			result.Skipped++
			log.Debug().Msg("Order no longer eligible for expiration")
			continue
		}
		result.Expired++
		metrics.OrdersExpired.Inc()

		if err := s.publisher.PublishExpired(ctx, expired); err != nil {
			result.Failed++
			log.Error().Err(err).Msg("🚨 Order expired but OrderExpired was not published")
			continue
		}
		log.Info().Time("created_at", expired.CreatedAt).Msg("Order expired")
	}

	span.SetAttributes(
		attribute.Int("sweep.expired", result.Expired),
		attribute.Int("sweep.failed", result.Failed),
	)
	logger.Ctx(ctx).Info().
		Int("expired", result.Expired).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Expiration sweep finished")
	return result, ctx.Err()
}

// expire 在事务内复查状态和创建时间。结算抢先完成时返回 nil 订单。
func (s *ExpirationSweeper) expire(ctx context.Context, orderID string, cutoff time.Time) (*domain.Order, error) {
	var expired *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		order, err := repos.Orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusProcessing || !order.CreatedAt.Before(cutoff) {
			return nil
		}
		if err := order.Expire(s.now()); err != nil {
			return err
		}
		if err := repos.Orders.Save(ctx, order); err != nil {
			return err
		}
		expired = order
		return nil
	})
	if errors.Is(err, domain.ErrConcurrentUpdate) || errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return expired, err
}

// Start 按 schedule 周期执行回收；上一轮未结束时跳过本轮。
func (s *ExpirationSweeper) Start(ctx context.Context) error {
	cl := cronLogger{log: logger.Ctx(ctx).With().Str("component", "expiration-sweeper").Logger()}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(s.schedule, func() { s.tick(ctx) }); err != nil {
		return errors.Wrapf(err, "invalid sweep schedule %q", s.schedule)
	}
	s.cron.Start()
	logger.Ctx(ctx).Info().
		Str("schedule", s.schedule).
		Dur("threshold", s.threshold).
		Msg("✅ Expiration sweeper started")
	return nil
}

// Stop 停止调度并等待正在执行的一轮结束
func (s *ExpirationSweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		logger.Ctx(ctx).Info().Msg("🛑 Expiration sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ExpirationSweeper) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.lock != nil {
		release, acquired, err := s.lock.TryAcquire(ctx)
		if err != nil {
			metrics.SweepRuns.WithLabelValues("error").Inc()
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to acquire sweep lock")
			return
		}
		if !acquired {
			metrics.SweepRuns.WithLabelValues("skipped").Inc()
			logger.Ctx(ctx).Debug().Msg("Another replica holds the sweep lock, skipping")
			return
		}
		defer release()
	}

	if _, err := s.RunOnce(ctx); err != nil {
		metrics.SweepRuns.WithLabelValues("error").Inc()
		logger.Ctx(ctx).Error().Err(err).Msg("Expiration sweep failed")
		return
	}
	metrics.SweepRuns.WithLabelValues("ok").Inc()
}

// cronLogger 把 cron 的日志接到 zerolog 上
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
