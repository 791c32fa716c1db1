// Package subscription содержит бизнес-логику жизненного цикла подписок:
// создание, чтение, отмену с проверкой владельца и ручную симуляцию
// платежа. Переходы состояний делегируются биллинговому движку,
// прочитанные подписки кешируются.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/chat-quota-service/internal/lib/sl"
	"github.com/magabrotheeeer/chat-quota-service/internal/models"
	"github.com/magabrotheeeer/chat-quota-service/internal/services/billing"
	"github.com/magabrotheeeer/chat-quota-service/internal/storage/repository"
)

// Ошибки бизнес-уровня, транслируемые обработчиками в HTTP-статусы.
var (
	// ErrNotFound подписка с заданным ID не существует.
	ErrNotFound = errors.New("subscription not found")
	// ErrForbidden подписка принадлежит другому пользователю.
	ErrForbidden = errors.New("subscription belongs to another user")
	// ErrNotActive подписка в терминальном состоянии.
	ErrNotActive = billing.ErrSubscriptionNotActive
)

// SubscriptionRepository определяет методы для работы с подписками в хранилище.
type SubscriptionRepository interface {
	// CreateSubscription добавляет новую подписку и возвращает её ID.
	CreateSubscription(ctx context.Context, sub models.Subscription) (string, error)
	// GetSubscription возвращает подписку по ID.
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	// ListSubscriptionsByUsername возвращает подписки пользователя,
	// старейшие первыми.
	ListSubscriptionsByUsername(ctx context.Context, username string) ([]*models.Subscription, error)
}

// Lifecycle определяет переходы состояний, выполняемые биллинговым движком.
type Lifecycle interface {
	AttemptPayment(ctx context.Context, sub *models.Subscription, now time.Time) (*models.Subscription, error)
	Cancel(ctx context.Context, sub *models.Subscription) (*models.Subscription, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service реализует координацию жизненного цикла подписок.
type Service struct {
	repo      SubscriptionRepository
	lifecycle Lifecycle
	cache     Cache
	log       *slog.Logger
}

// New создает новый Service.
func New(repo SubscriptionRepository, lifecycle Lifecycle, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		lifecycle: lifecycle,
		cache:     cache,
		log:       log,
	}
}

func cacheKey(id string) string {
	return fmt.Sprintf("subscription:%s", id)
}

// Create создает активную подписку с нулевым использованием. Первый
// биллинговый период начинается немедленно и заканчивается через одну
// единицу цикла.
func (s *Service) Create(ctx context.Context, username string, req models.DummySubscription, now time.Time) (*models.Subscription, error) {
	const op = "subscription.Create"

	cycle := models.BillingCycle(req.BillingCycle)
	sub := models.Subscription{
		ID:               uuid.New().String(),
		Username:         username,
		Tier:             models.Tier(req.Tier),
		BillingCycle:     cycle,
		StartDate:        now,
		CurrentPeriodEnd: cycle.Advance(now),
		AutoRenew:        req.AutoRenew,
		Status:           models.StatusActiveCurrent,
	}

	id, err := s.repo.CreateSubscription(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.ID = id

	s.log.Info("created new subscription",
		slog.String("subscription_id", id),
		slog.String("tier", req.Tier))

	if err := s.cache.Set(cacheKey(id), sub, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey(id)), sl.Err(err))
	}

	return &sub, nil
}

// List возвращает все подписки пользователя, включая отменённые и
// истёкшие: их история остаётся читаемой.
func (s *Service) List(ctx context.Context, username string) ([]*models.Subscription, error) {
	const op = "subscription.List"

	subs, err := s.repo.ListSubscriptionsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// Read возвращает подписку по ID, используя кеш или репозиторий.
// Доступ разрешён только владельцу.
func (s *Service) Read(ctx context.Context, username, id string) (*models.Subscription, error) {
	const op = "subscription.Read"

	var cached *models.Subscription
	found, err := s.cache.Get(cacheKey(id), &cached)
	if err != nil {
		s.log.Warn("failed to read subscription cache", slog.String("key", cacheKey(id)), sl.Err(err))
	}
	if found && cached != nil {
		if cached.Username != username {
			return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
		}
		return cached, nil
	}

	sub, err := s.fetch(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if sub.Username != username {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := s.cache.Set(cacheKey(id), sub, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey(id)), sl.Err(err))
	}
	return sub, nil
}

// Cancel переводит подписку владельца в терминальное состояние
// cancelled. Счётчики использования не очищаются. Запрос чужой
// подписки отклоняется с ErrForbidden, повторная отмена — с ErrNotActive.
func (s *Service) Cancel(ctx context.Context, username, id string) (*models.Subscription, error) {
	const op = "subscription.Cancel"

	sub, err := s.fetch(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if sub.Username != username {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	cancelled, err := s.lifecycle.Cancel(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(id)
	return cancelled, nil
}

// SimulatePayment повторяет симулированный платёж по подписке и
// возвращает её новое состояние. Количество попыток не ограничено,
// триггер всегда внешний.
func (s *Service) SimulatePayment(ctx context.Context, id string, now time.Time) (*models.Subscription, error) {
	const op = "subscription.SimulatePayment"

	sub, err := s.fetch(ctx, op, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.lifecycle.AttemptPayment(ctx, sub, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(id)
	return updated, nil
}

func (s *Service) fetch(ctx context.Context, op, id string) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, id)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

func (s *Service) invalidate(id string) {
	if err := s.cache.Invalidate(cacheKey(id)); err != nil {
		s.log.Warn("failed to invalidate subscription cache",
			slog.String("key", cacheKey(id)), sl.Err(err))
	}
}
