// Package billingcore собирает приложение биллинга: хранилище, кеш,
// очередь событий, платёжный шлюз, сервисы и HTTP-сервер.
package billingcore

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/billing-core/internal/billing"
	"github.com/magabrotheeeer/billing-core/internal/cache"
	"github.com/magabrotheeeer/billing-core/internal/config"
	"github.com/magabrotheeeer/billing-core/internal/lib/jwt"
	"github.com/magabrotheeeer/billing-core/internal/migrations"
	"github.com/magabrotheeeer/billing-core/internal/rabbitmq"
	checkoutservice "github.com/magabrotheeeer/billing-core/internal/services/checkout"
	couponservice "github.com/magabrotheeeer/billing-core/internal/services/coupon"
	reconcilerservice "github.com/magabrotheeeer/billing-core/internal/services/reconciler"
	subscriptionservice "github.com/magabrotheeeer/billing-core/internal/services/subscription"
	trialservice "github.com/magabrotheeeer/billing-core/internal/services/trial"
	"github.com/magabrotheeeer/billing-core/internal/storage/repository"
)

// App инкапсулирует HTTP-сервер и соединения приложения.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *repository.Storage
	amqpConn *amqp.Connection
}

// New инициализирует все зависимости приложения и возвращает готовый App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}
	if err = repository.CheckDatabaseReady(db); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	amqpConn, err := rabbitmq.Connect(cfg.RabbitMQConnection, 5, 2*time.Second)
	if err != nil {
		return nil, err
	}
	channel, err := rabbitmq.SetupChannel(amqpConn, rabbitmq.GetBillingQueues())
	if err != nil {
		return nil, err
	}

	stripeCfg, err := cfg.StripeSecrets.Resolve(cfg.Env)
	if err != nil {
		return nil, err
	}
	gateway := billing.NewStripeGateway(stripeCfg.SecretKey, stripeCfg.WebhookSecret)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	checkoutSvc := checkoutservice.New(db, db, gateway, stripeCfg, logger)
	trialSvc := trialservice.New(db, channel, logger)
	couponSvc := couponservice.New(db, logger)
	reconcilerSvc := reconcilerservice.New(db, gateway, cacheRedis, channel, logger)
	subscriptionSvc := subscriptionservice.New(db, cacheRedis, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, jwtMaker, gateway,
		checkoutSvc, trialSvc, couponSvc, reconcilerSvc, subscriptionSvc)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		logger:   logger,
		db:       db,
		amqpConn: amqpConn,
	}, nil
}

// Run запускает HTTP-сервер и корректно останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		_ = a.db.DB.Close()
		_ = a.amqpConn.Close()
		return err
	}
}
