// Package scheduler содержит сборку приложения фонового обхода продлений.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/chat-quota-service/internal/config"
	"github.com/magabrotheeeer/chat-quota-service/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/chat-quota-service/internal/services/billing"
	schedulerservice "github.com/magabrotheeeer/chat-quota-service/internal/services/scheduler"
	"github.com/magabrotheeeer/chat-quota-service/internal/storage/repository"
)

// App представляет приложение планировщика продлений.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	conn             *amqp.Connection
	ch               *amqp.Channel
	db               *repository.Storage
	logger           *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	var (
		conn   *amqp.Connection
		ch     *amqp.Channel
		events billing.Publisher
		err    error
	)
	if cfg.RabbitMQURL != "" {
		conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}

		ch, err = rabbitmq.SetupChannel(conn, rabbitmq.GetBillingQueues())
		if err != nil {
			closeResources(nil, conn, logger)
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		events = rabbitmq.NewPublisher(ch)
	} else {
		logger.Warn("rabbitmq_url is empty, billing events are disabled")
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	billingEngine := billing.New(db, billing.NewRandomPayment(cfg.PaymentFailureRate), events, logger)
	schedulerService := schedulerservice.NewSchedulerService(
		db, billingEngine, cfg.RenewalCheckInterval, cfg.RenewalBatchSize, logger)

	return &App{
		schedulerService: schedulerService,
		conn:             conn,
		ch:               ch,
		db:               db,
		logger:           logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает планировщик и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	go a.schedulerService.ProcessDueSubscriptions(ctx)

	<-ctx.Done()

	a.logger.Info("shutting down scheduler service")

	closeResources(a.ch, a.conn, a.logger)
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}

	return nil
}
