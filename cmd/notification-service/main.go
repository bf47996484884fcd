// cmd/notification-service/main.go
package main

import (
	"context"

	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/database"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/notification"
	orderinfra "orderflow/internal/service/order/infrastructure"
)

const serviceName = "notification-service"

// main 是独立部署的通知服务。它通过共享的 MySQL 读取订单和用户，
// 内存存储只能在 order-service 中以 notification.embedded 方式运行。
func main() {
	cfg := bootstrap.Init(serviceName)
	log := logger.Ctx(context.Background())

	if cfg.Infra.Store != "mysql" {
		log.Fatal().Str("store", cfg.Infra.Store).
			Msg("🛑 standalone notification-service requires infra.store=mysql; use notification.embedded with the memory store")
	}
	db, err := database.NewGormDB(cfg.Infra.MySQL)
	if err != nil {
		log.Fatal().Err(err).Msg("🛑 failed to connect mysql")
	}
	orders := orderinfra.NewGormStore(db)

	module, err := notification.NewModule(notification.Deps{
		Config: cfg,
		Orders: orders.Orders,
		Users:  orders.Users,
		DB:     db,
		Tracer: otel.Tracer(serviceName),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("🛑 failed to build notification dispatcher")
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.Notification.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			module.Handler.RegisterRoutes(appCtx.Mux)
		},
		Workers:    module.Workers,
		OnShutdown: module.Close,
	})
}
