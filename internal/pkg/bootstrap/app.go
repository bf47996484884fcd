// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/nacos"
	"orderflow/internal/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

type AppCtx struct {
	Mux    *http.ServeMux
	Nacos  *nacos.Client
	Config *Config
}

// Worker 是随服务一起启动和关停的后台组件，例如 Kafka 消费者和定时任务。
// Start 不应阻塞，Stop 在 HTTP 服务关闭后按注册的逆序调用。
type Worker struct {
	Name  string
	Start func(ctx context.Context) error
	Stop  func(ctx context.Context)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 允许每个服务注册自己独特的 HTTP 路由
	Workers          []Worker
	// OnShutdown 在所有 Worker 停止后调用，用于关闭连接等资源
	OnShutdown func(ctx context.Context)
}

var nacosClient *nacos.Client

// Init 加载配置并初始化日志。CONFIG_FILE 指定配置文件路径。
// 启用 Nacos 且配置了 data_id 时，远程配置会叠加在本地配置之上并持续监听变更。
func Init(serviceName string) *Config {
	cfg, err := LoadConfig(getEnv("CONFIG_FILE", "configs/config.yaml"))
	if err != nil {
		logger.Init(serviceName, "info", true)
		logger.Ctx(context.Background()).Fatal().Err(err).Msg("🛑 failed to load config")
	}
	logger.Init(serviceName, cfg.App.LogLevel, cfg.App.LogPretty)
	setCurrentConfig(cfg)

	if cfg.Infra.Nacos.Enabled {
		client, err := nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			logger.Ctx(context.Background()).Fatal().Err(err).Msg("🛑 failed to initialize nacos client")
		}
		nacosClient = client
		if dataID := cfg.Infra.Nacos.DataID; dataID != "" {
			cfg = loadRemoteConfig(client, dataID, cfg)
		}
	}
	return cfg
}

func loadRemoteConfig(client *nacos.Client, dataID string, local *Config) *Config {
	log := logger.Ctx(context.Background())
	content, err := client.GetConfig(dataID)
	if err != nil {
		log.Warn().Err(err).Str("data_id", dataID).Msg("remote config unavailable, using local config")
		return local
	}
	cfg := local
	if strings.TrimSpace(content) != "" {
		if next, err := overlay(local, content); err != nil {
			log.Warn().Err(err).Msg("remote config rejected, using local config")
		} else {
			cfg = next
			setCurrentConfig(cfg)
			applyLogLevel(cfg.App.LogLevel)
		}
	}

	err = client.ListenConfig(dataID, func(content string) {
		next, err := overlay(GetCurrentConfig(), content)
		if err != nil {
			log.Error().Err(err).Msg("🚨 ignoring invalid remote config")
			return
		}
		setCurrentConfig(next)
		applyLogLevel(next.App.LogLevel)
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to listen remote config")
	}
	return cfg
}

func applyLogLevel(level string) {
	if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		zerolog.SetGlobalLevel(lvl)
	}
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	log := logger.Ctx(context.Background())
	cfg := GetCurrentConfig()

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("🛑 failed to initialize tracer provider")
	}

	var ip string
	if nacosClient != nil {
		if ip, err = getOutboundIP(); err != nil {
			log.Fatal().Err(err).Msg("🛑 failed to get outbound IP address")
		}
		if err := nacosClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Fatal().Err(err).Msg("🛑 failed to register service with nacos")
		}
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: nacosClient, Config: cfg})
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	var started []Worker
	var startErr error
	for _, w := range info.Workers {
		if err := w.Start(gctx); err != nil {
			startErr = errors.Wrapf(err, "start worker %s", w.Name)
			stop()
			break
		}
		log.Info().Str("worker", w.Name).Msg("worker started")
		started = append(started, w)
	}

	g.Go(func() error {
		log.Info().Int("port", info.Port).Msgf("✅ %s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "listen on %s", server.Addr)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msgf("Shutting down service %s...", info.ServiceName)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if nacosClient != nil {
			if err := nacosClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
				log.Error().Err(err).Msg("error deregistering from nacos")
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down http server")
		}
		for i := len(started) - 1; i >= 0; i-- {
			started[i].Stop(shutdownCtx)
			log.Info().Str("worker", started[i].Name).Msg("worker stopped")
		}
		if info.OnShutdown != nil {
			info.OnShutdown(shutdownCtx)
		}
		if nacosClient != nil {
			nacosClient.Close()
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
		return startErr
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msgf("🚨 service %s exited with error", info.ServiceName)
		os.Exit(1)
	}
	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}

// getOutboundIP 通过一次 UDP "连接" 获取本机对外通信使用的地址，不会真正发包
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", errors.Wrap(err, "dial udp")
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
