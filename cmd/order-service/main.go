// cmd/order-service/main.go
package main

import (
	"context"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/database"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/pkg/zookeeper"
	"orderflow/internal/service/notification"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/infrastructure"
	"orderflow/internal/service/order/infrastructure/adapter"
	"orderflow/internal/service/order/infrastructure/memory"
	"orderflow/internal/service/order/interfaces"
)

const (
	serviceName     = "order-service"
	sweepLockName   = "order-expiration-sweeper"
	dltLoggerSuffix = "-dlt-logger"
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg := bootstrap.Init(serviceName)
	ctx := context.Background()
	log := logger.Ctx(ctx)
	tracer := otel.Tracer(serviceName)

	var closers []func(ctx context.Context)

	// 1. 存储：内存或 MySQL
	repos, uow, db := openStore(cfg)
	if err := infrastructure.Seed(ctx, uow, cfg.Seed); err != nil {
		log.Fatal().Err(err).Msg("🛑 failed to seed catalog")
	}

	// 2. 生命周期事件的生产者
	kafkaCfg := cfg.Infra.Kafka
	writer := mq.NewKafkaWriter(kafkaCfg.Brokers, kafkaCfg.Topic)
	closers = append(closers, closeWith("kafka writer", writer.Close))
	publisher := infrastructure.NewOrderEventProducerAdapter(writer, kafkaCfg.Topic)

	appSvc := application.NewOrderApplicationService(repos, uow, publisher, tracer)

	// 3. 订单事件消费者：N 个 Reader 加入同一个消费组
	group := cfg.Order.ConsumerGroup
	dltTopic := mq.DeadLetterTopic(kafkaCfg.Topic, group)
	dltWriter := mq.NewKafkaWriter(kafkaCfg.Brokers, dltTopic)
	closers = append(closers, closeWith("dlt writer", dltWriter.Close))

	readers := make([]mq.MessageReader, 0, cfg.Order.ConsumerConcurrency)
	for i := 0; i < max(1, cfg.Order.ConsumerConcurrency); i++ {
		readers = append(readers, mq.NewKafkaReader(kafkaCfg.Brokers, kafkaCfg.Topic, group))
	}
	eventConsumer := application.NewOrderEventConsumer(uow, publisher,
		application.NewSettlementSimulator(cfg.Order.SettlementDelay, nil), tracer)
	consumerAdapter := interfaces.NewOrderEventConsumerAdapter(readers, eventConsumer,
		mq.NewFailureHandler(dltWriter, dltTopic, group), mq.ConsumerOptions{
			MaxAttempts:    cfg.Order.MaxAttempts,
			InitialBackoff: cfg.Order.RetryBackoff,
		})
	dltLogger := mq.NewDeadLetterConsumer(mq.NewKafkaReader(kafkaCfg.Brokers, dltTopic, group+dltLoggerSuffix))

	// 4. 超时回收，多副本部署时用 ZooKeeper 锁互斥
	sweeper := application.NewExpirationSweeper(repos.Orders, uow, publisher,
		cfg.Order.ExpirationThreshold, cfg.Order.SweepSchedule, tracer)
	if cfg.Order.SweepLock {
		zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("🛑 failed to connect zookeeper")
		}
		closers = append(closers, func(context.Context) { zkConn.Close() })
		sweeper.WithLock(adapter.NewSweepLockZKAdapter(zkConn, sweepLockName).WithWait(cfg.Order.SweepLockWait))
	}

	workers := []bootstrap.Worker{
		{Name: "order-event-consumer", Start: consumerAdapter.Start, Stop: consumerAdapter.Stop},
		{Name: "order-dlt-logger", Start: dltLogger.Start, Stop: dltLogger.Stop},
		{
			Name:  "expiration-sweeper",
			Start: sweeper.Start,
			Stop: func(ctx context.Context) {
				if err := sweeper.Stop(ctx); err != nil {
					logger.Ctx(ctx).Warn().Err(err).Msg("sweeper did not stop cleanly")
				}
			},
		},
	}

	// 5. 可选：在同一进程内运行通知分发器
	var notifications *notification.Module
	if cfg.Notification.Embedded {
		module, err := notification.NewModule(notification.Deps{
			Config: cfg,
			Orders: repos.Orders,
			Users:  repos.Users,
			DB:     db,
			Tracer: otel.Tracer("notification-dispatcher"),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("🛑 failed to build notification dispatcher")
		}
		notifications = module
		workers = append(workers, module.Workers...)
		closers = append(closers, module.Close)
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.Order.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			interfaces.NewOrderHandler(appSvc).RegisterRoutes(appCtx.Mux)
			if notifications != nil {
				notifications.Handler.RegisterAPIRoutes(appCtx.Mux)
			}
		},
		Workers: workers,
		OnShutdown: func(ctx context.Context) {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i](ctx)
			}
		},
	})
}

// openStore 按配置选择存储实现。返回的 db 只在 MySQL 模式下非 nil。
func openStore(cfg *bootstrap.Config) (domain.Repositories, domain.UnitOfWork, *gorm.DB) {
	log := logger.Ctx(context.Background())
	if cfg.Infra.Store == "mysql" {
		db, err := database.NewGormDB(cfg.Infra.MySQL)
		if err != nil {
			log.Fatal().Err(err).Msg("🛑 failed to connect mysql")
		}
		if err := infrastructure.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("🛑 failed to migrate order schema")
		}
		store := infrastructure.NewGormStore(db)
		return domain.Repositories{Orders: store.Orders, Products: store.Products, Users: store.Users}, store.UoW, db
	}

	log.Warn().Msg("⚠️ Using in-memory store, data is lost on restart")
	store := memory.NewStore()
	return domain.Repositories{Orders: store.Orders(), Products: store.Products(), Users: store.Users()}, store, nil
}

func closeWith(name string, closeFn func() error) func(ctx context.Context) {
	return func(ctx context.Context) {
		if err := closeFn(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("resource", name).Msg("failed to close")
		}
	}
}
