// Package scheduler содержит фоновый обход подписок с наступившим
// концом периода. Ленивое продление в аллокаторе покрывает активных
// пользователей, планировщик добирает остальных: истечения и отказы
// платежа фиксируются даже без входящих запросов.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/chat-quota-service/internal/lib/sl"
	"github.com/magabrotheeeer/chat-quota-service/internal/models"
)

// SubscriptionRepository выбирает подписки, требующие обработки.
type SubscriptionRepository interface {
	ListDueSubscriptions(ctx context.Context, now time.Time, limit int) ([]*models.Subscription, error)
}

// Lifecycle продвигает подписку по биллинговому циклу.
type Lifecycle interface {
	ProcessDue(ctx context.Context, sub *models.Subscription, now time.Time) (*models.Subscription, error)
}

// SchedulerService периодически обрабатывает наступившие продления.
type SchedulerService struct {
	repo      SubscriptionRepository
	lifecycle Lifecycle
	interval  time.Duration
	batchSize int
	log       *slog.Logger
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo SubscriptionRepository, lifecycle Lifecycle,
	interval time.Duration, batchSize int, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:      repo,
		lifecycle: lifecycle,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
	}
}

// ProcessDueSubscriptions запускает цикл обработки с заданным
// интервалом. Первый проход выполняется сразу, выход по отмене ctx.
func (s *SchedulerService) ProcessDueSubscriptions(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход: выбирает пачку подписок с наступившим
// концом периода и продвигает каждую. Ошибка по одной подписке не
// останавливает проход.
func (s *SchedulerService) RunOnce(ctx context.Context) {
	s.log.Info("starting service to process due subscriptions")

	now := time.Now()
	subs, err := s.repo.ListDueSubscriptions(ctx, now, s.batchSize)
	if err != nil {
		s.log.Error("failed to list due subscriptions", sl.Err(err))
		return
	}
	if len(subs) == 0 {
		s.log.Info("no due subscriptions found")
		return
	}
	s.log.Info("found due subscriptions", "count", len(subs))

	for _, sub := range subs {
		if _, err := s.lifecycle.ProcessDue(ctx, sub, now); err != nil {
			s.log.Error("failed to process due subscription",
				slog.String("subscription_id", sub.ID), sl.Err(err))
		}
	}
}
