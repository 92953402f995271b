package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dhazehtx/pup-connect-finds-sub002/internal/config"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/db"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/events"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/goroutine"
	httpHandlers "github.com/dhazehtx/pup-connect-finds-sub002/internal/http/handlers"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/http/middleware"
	httpRouter "github.com/dhazehtx/pup-connect-finds-sub002/internal/http/router"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/logger"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/metrics"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/repository"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/service"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/settlement"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/storage"
	"github.com/dhazehtx/pup-connect-finds-sub002/internal/ws"
)

// paymentGateway расчёт споров и исполнение возвратов одним провайдером.
type paymentGateway interface {
	settlement.Settler
	settlement.RefundProcessor
}

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if !cfg.IsProduction() {
		logger.SetTextFormatter()
	}
	mainLog := logger.Component("main")

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLog.WithError(err).Fatal("Ошибка подключения к базе")
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(dbConn); err != nil {
		mainLog.WithError(err).Fatal("Ошибка миграций")
	}

	// Redis опционален: без него rate limiter держит счётчики в памяти процесса.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer closeRedis(redisClient)
	}
	rateStore, err := middleware.NewRateLimitStore(redisClient)
	if err != nil {
		mainLog.WithError(err).Fatal("Не удалось создать хранилище rate limiter")
	}

	gateway, err := newPaymentGateway(cfg)
	if err != nil {
		mainLog.WithError(err).Fatal("Не удалось создать платёжный шлюз")
	}

	publisher, closePublisher := newPublisher(cfg)
	defer closePublisher()

	appMetrics := metrics.New(prometheus.DefaultRegisterer)

	evidence, err := storage.NewEvidenceStorage(cfg.Evidence.StoragePath, cfg.Evidence.MaxUploadSizeMB)
	if err != nil {
		mainLog.WithError(err).Fatal("Не удалось подготовить хранилище доказательств")
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	// Вебсокеты.
	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, hub.Run)

	// Репозитории.
	escrowRepo := repository.NewEscrowRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	refundRepo := repository.NewRefundRepository(dbConn)
	fraudRepo := repository.NewFraudRepository(dbConn)
	checkRepo := repository.NewBackgroundCheckRepository(dbConn)

	// Сервисы.
	escrowService := service.NewEscrowService(escrowRepo, disputeRepo, refundRepo, gateway, publisher, hub, appMetrics, service.EscrowSettings{
		CommissionRate: cfg.Escrow.CommissionRate(),
		Currency:       cfg.Stripe.Currency,
		ClaimTTL:       cfg.Escrow.ClaimTTL,
	})
	disputeService := service.NewDisputeService(escrowRepo, disputeRepo, refundRepo, evidence, gateway, publisher, hub, appMetrics, cfg.Escrow.ClaimTTL)
	refundService := service.NewRefundService(refundRepo, escrowRepo, gateway, publisher, hub, appMetrics)
	fraudService := service.NewFraudService(fraudRepo, publisher, hub, appMetrics)
	checkService := service.NewBackgroundCheckService(checkRepo, publisher, hub)

	// HTTP хэндлеры.
	var healthRedis redis.UniversalClient
	if redisClient != nil {
		healthRedis = redisClient
	}
	handlers := httpRouter.Handlers{
		Health:          httpHandlers.NewHealthHandler(dbConn, healthRedis),
		WS:              httpHandlers.NewWSHandler(hub, tokenManager),
		Transaction:     httpHandlers.NewTransactionHandler(escrowService),
		Dispute:         httpHandlers.NewDisputeHandler(disputeService),
		Refund:          httpHandlers.NewRefundHandler(refundService),
		Fraud:           httpHandlers.NewFraudHandler(fraudService),
		BackgroundCheck: httpHandlers.NewBackgroundCheckHandler(checkService),
	}

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, handlers, tokenManager, rateStore, promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			mainLog.WithError(err).Error("Ошибка остановки http сервера")
		}
	}()

	mainLog.WithFields(logrus.Fields{
		"port":  cfg.HTTPPort,
		"env":   cfg.Env,
		"redis": redisClient != nil,
		"kafka": len(cfg.Kafka.Brokers()) > 0,
	}).Info("HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		mainLog.WithError(err).Fatal("Сервер завершился с ошибкой")
	}
}

// newPaymentGateway без ключа Stripe возвращает dry-run шлюз (config не пропускает это в production).
func newPaymentGateway(cfg *config.Config) (paymentGateway, error) {
	if cfg.Stripe.SecretKey == "" {
		logger.Component("main").Warn("STRIPE_SECRET_KEY не задан, расчёты выполняются в dry-run режиме")
		return settlement.NewDryRunGateway()
	}
	return settlement.NewStripeGateway(cfg.Stripe.SecretKey, nil), nil
}

// newPublisher возвращает Kafka publisher или no-op, если брокеры не настроены.
func newPublisher(cfg *config.Config) (events.Publisher, func()) {
	brokers := cfg.Kafka.Brokers()
	if len(brokers) == 0 {
		return events.NopPublisher{}, func() {}
	}

	kafka := events.NewKafkaPublisher(brokers, cfg.Kafka.Topic)
	return kafka, func() {
		if err := kafka.Close(); err != nil {
			logger.Component("main").WithError(err).Warn("Ошибка закрытия kafka writer")
		}
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Component("main").WithError(err).Warn("Ошибка закрытия базы")
	}
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		logger.Component("main").WithError(err).Warn("Ошибка закрытия redis")
	}
}
