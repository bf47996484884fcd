// internal/service/notification/module.go
package notification

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/pkg/redis"
	"orderflow/internal/service/notification/application"
	"orderflow/internal/service/notification/domain"
	"orderflow/internal/service/notification/domain/port"
	"orderflow/internal/service/notification/infrastructure"
	"orderflow/internal/service/notification/infrastructure/adapter"
	"orderflow/internal/service/notification/infrastructure/memory"
	"orderflow/internal/service/notification/interfaces"
	orderdomain "orderflow/internal/service/order/domain"
)

// Deps 是组装通知模块所需的外部依赖。DB 为 nil 时通知只保存在内存里。
type Deps struct {
	Config *bootstrap.Config
	Orders orderdomain.OrderRepository
	Users  orderdomain.UserRepository
	DB     *gorm.DB
	Tracer trace.Tracer
}

// Module 是组装好的通知分发器及其 HTTP 路由和后台 Worker，
// 独立的 notification-service 与合并部署的 order-service 共用。
type Module struct {
	Dispatcher *application.NotificationDispatcher
	Handler    *interfaces.NotificationHandler
	Workers    []bootstrap.Worker

	closers []func() error
}

func NewModule(d Deps) (*Module, error) {
	cfg := d.Config
	m := &Module{}

	var repo domain.NotificationRepository = memory.NewNotificationRepository()
	if d.DB != nil {
		if err := infrastructure.AutoMigrate(d.DB); err != nil {
			return nil, err
		}
		repo = infrastructure.NewGormNotificationRepository(d.DB)
	}

	var email port.EmailSender = adapter.NewSimulatedEmailSender(cfg.Notification.EmailLatency)
	if cfg.Notification.EmailWebhook != "" {
		email = adapter.NewWebhookEmailSender(httpclient.NewClient(d.Tracer), cfg.Notification.EmailWebhook)
	}

	hub := adapter.NewHub()
	dispatcher := application.NewNotificationDispatcher(repo, adapter.NewOrderDirectoryAdapter(d.Orders, d.Users), email, d.Tracer).
		WithPusher(hub)

	if cfg.Notification.Dedupe {
		redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs, cfg.Infra.Redis.Password)
		if err != nil {
			return nil, errors.Wrap(err, "notification dedupe requires redis")
		}
		m.closers = append(m.closers, redisClient.Close)
		dispatcher.WithDeduplicator(adapter.NewDedupeRedisAdapter(redisClient, cfg.Notification.DedupeTTL))
	}

	kafkaCfg := cfg.Infra.Kafka
	group := cfg.Notification.ConsumerGroup
	dltTopic := mq.DeadLetterTopic(kafkaCfg.Topic, group)
	dltWriter := mq.NewKafkaWriter(kafkaCfg.Brokers, dltTopic)
	m.closers = append(m.closers, dltWriter.Close)

	readers := make([]mq.MessageReader, 0, cfg.Notification.ConsumerConcurrency)
	for i := 0; i < max(1, cfg.Notification.ConsumerConcurrency); i++ {
		readers = append(readers, mq.NewKafkaReader(kafkaCfg.Brokers, kafkaCfg.Topic, group))
	}
	consumer := interfaces.NewNotificationConsumerAdapter(readers, dispatcher, mq.NewFailureHandler(dltWriter, dltTopic, group), mq.ConsumerOptions{
		MaxAttempts:    cfg.Notification.MaxAttempts,
		InitialBackoff: cfg.Notification.RetryBackoff,
	})
	dltLogger := mq.NewDeadLetterConsumer(mq.NewKafkaReader(kafkaCfg.Brokers, dltTopic, group+"-dlt-logger"))

	m.Dispatcher = dispatcher
	m.Handler = interfaces.NewNotificationHandler(dispatcher, hub.ServeWS)
	m.Workers = []bootstrap.Worker{
		{
			Name: "websocket-hub",
			Start: func(ctx context.Context) error {
				go func() {
					if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Ctx(ctx).Error().Err(err).Msg("websocket hub stopped")
					}
				}()
				return nil
			},
			Stop: func(context.Context) {},
		},
		{Name: "notification-consumer", Start: consumer.Start, Stop: consumer.Stop},
		{Name: "notification-dlt-logger", Start: dltLogger.Start, Stop: dltLogger.Stop},
	}
	return m, nil
}

// Close 释放模块持有的连接，在所有 Worker 停止后调用
func (m *Module) Close(ctx context.Context) {
	for _, closeFn := range m.closers {
		if err := closeFn(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("failed to close notification resource")
		}
	}
}
