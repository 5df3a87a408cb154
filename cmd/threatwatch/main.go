package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/threatwatch/internal/connectivity"
	"github.com/xela07ax/threatwatch/internal/console/handler"
	"github.com/xela07ax/threatwatch/internal/console/server"
	"github.com/xela07ax/threatwatch/internal/domain"
	"github.com/xela07ax/threatwatch/internal/engine"
	"github.com/xela07ax/threatwatch/internal/fetch"
	"github.com/xela07ax/threatwatch/internal/infra"
	"github.com/xela07ax/threatwatch/internal/publish"
	"github.com/xela07ax/threatwatch/internal/timeline"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid display timezone", zap.Error(err))
	}

	// Контекст для управления жизненным циклом фоновых горутин
	// SIGTERM/SIGINT отменяет его и останавливает опрос и слушателей
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	metricsSrv := &http.Server{
		Addr:    cfg.Metrics.Addr,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// 3. Приемники обновлений: WebSocket всегда, Redis по конфигу
	hub := publish.NewHub(metrics, logger)
	sinks := publish.Fanout{hub}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(appCtx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, publisher will keep retrying", zap.Error(err))
		}
		cancel()

		redisPub := publish.NewRedisPublisher(rdb, logger)
		go redisPub.Run(appCtx)
		sinks = append(sinks, redisPub)
	}

	// 4. Связь и шлюз
	monitor := connectivity.NewMonitor(metrics, logger)
	monitor.Subscribe(sinks)

	errLog := engine.NewErrorLog(metrics, logger)
	gateway, err := fetch.NewGateway(cfg.Source, monitor, errLog, metrics, logger)
	if err != nil {
		logger.Fatal("failed to init gateway", zap.Error(err))
	}
	client := fetch.NewClient(gateway, errLog)

	// 5. Ядро: детектор, агрегатор, оркестратор
	detector := engine.NewDetector(cfg.Poller.CriticalThreshold)
	aggregator := timeline.NewAggregator(loc, time.Now)
	poller := engine.NewPoller(cfg.Poller, client, detector, aggregator, sinks, monitor.Resume(), metrics, logger)

	if rdb != nil {
		instanceID := uuid.NewString()
		logger.Info("redis command bus enabled", zap.String("instance", instanceID))
		go publish.ListenCommands(appCtx, rdb, logger, poller, poller.MaxRangeHours(),
			infra.RedisChanCommands,
			infra.GetInstanceChannel(infra.RedisChanCommands, instanceID))
	}

	// 6. HTTP API для виджетов
	api := server.NewConsoleServer(logger,
		handler.NewDashboardHandler(poller, monitor),
		handler.NewSourceHandler(client, gateway),
		hub.Handler(),
	)
	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("threatwatch api started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 7. Проверка источника перед первым циклом. Неудача не фатальна: повтором служит таймер
	if err := connectivity.WaitHealthy(appCtx, client, cfg.Poller.StartupProbeAttempts, cfg.Poller.StartupProbeDelay, logger); err != nil && appCtx.Err() == nil {
		logger.Warn("threat source is not healthy, polling anyway", zap.Error(err))
		sinks.PublishNotice(domain.Notice{
			Level:        domain.NoticeError,
			Title:        "Threat source unavailable",
			Message:      "Could not reach the threat source, retrying on schedule",
			DismissAfter: 5 * time.Second,
		})
	}

	poller.Run(appCtx) // Блокируется до сигнала

	// 8. Graceful Shutdown
	logger.Info("threatwatch stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}
	logger.Info("threatwatch exited properly")
}
