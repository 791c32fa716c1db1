package chatquota

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/chat-quota-service/internal/answer/mock"
	"github.com/magabrotheeeer/chat-quota-service/internal/cache"
	"github.com/magabrotheeeer/chat-quota-service/internal/config"
	"github.com/magabrotheeeer/chat-quota-service/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/chat-quota-service/internal/lib/sl"
	"github.com/magabrotheeeer/chat-quota-service/internal/migrations"
	"github.com/magabrotheeeer/chat-quota-service/internal/services/billing"
	chatservice "github.com/magabrotheeeer/chat-quota-service/internal/services/chat"
	"github.com/magabrotheeeer/chat-quota-service/internal/services/quota"
	subservice "github.com/magabrotheeeer/chat-quota-service/internal/services/subscription"
	"github.com/magabrotheeeer/chat-quota-service/internal/storage/repository"
)

// App собирает HTTP-сервис квот: хранилище, кеш, брокер событий и
// все бизнес-сервисы поверх них.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New создает приложение из конфигурации. Брокер событий опционален:
// при пустом rabbitmq_url биллинговые события не публикуются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	var (
		conn   *amqp.Connection
		ch     *amqp.Channel
		events billing.Publisher
	)
	if cfg.RabbitMQURL != "" {
		conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			return nil, err
		}
		ch, err = rabbitmq.SetupChannel(conn, rabbitmq.GetBillingQueues())
		if err != nil {
			return nil, err
		}
		events = rabbitmq.NewPublisher(ch)
	} else {
		logger.Warn("rabbitmq_url is empty, billing events are disabled")
	}

	billingEngine := billing.New(db, billing.NewRandomPayment(cfg.PaymentFailureRate), events, logger)
	allocator := quota.New(db, billingEngine, cacheRedis, cfg.FreeMonthlyLimit, logger)
	subscriptionService := subservice.New(db, billingEngine, cacheRedis, logger)
	answerProvider := mock.New(logger)
	chatService := chatservice.New(allocator, answerProvider, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, chatService, subscriptionService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до ошибки или отмены ctx.
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
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
