// Package quota реализует ядро распределения операций: сначала
// бесплатная месячная квота, затем подписки в порядке от старейшей к
// новейшей. Перед выбором подписки лениво обрабатываются наступившие
// продления и истечения, поэтому фоновый планировщик для движка не
// обязателен.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/chat-quota-service/internal/lib/sl"
	"github.com/magabrotheeeer/chat-quota-service/internal/lib/yearmonth"
	"github.com/magabrotheeeer/chat-quota-service/internal/models"
)

// ErrQuotaExceeded возвращается, когда ни бесплатная квота, ни одна из
// подписок пользователя не может принять операцию. Это ожидаемый
// бизнес-результат, а не сбой.
var ErrQuotaExceeded = errors.New("quota exceeded")

// Repository определяет методы хранилища, нужные аллокатору.
// Оба инкремента атомарны на уровне строки: проверка лимита и
// увеличение счётчика выполняются одним условным UPDATE.
type Repository interface {
	GetOrCreateUsagePeriod(ctx context.Context, username, yearMonth string) (*models.UsagePeriod, error)
	TryIncrementFreeUsed(ctx context.Context, username, yearMonth string, limit int) (bool, error)
	ListSubscriptionsByUsername(ctx context.Context, username string) ([]*models.Subscription, error)
	TryIncrementUsage(ctx context.Context, id string, quotaCap int) (bool, error)
}

// Lifecycle обрабатывает наступившие продления и истечения подписки.
type Lifecycle interface {
	ProcessDue(ctx context.Context, sub *models.Subscription, now time.Time) (*models.Subscription, error)
}

// Cache инвалидирует закешированные подписки после списания.
type Cache interface {
	Invalidate(key string) error
}

// Allocator решает, разрешена ли операция и с какого пула она списывается.
type Allocator struct {
	repo      Repository
	lifecycle Lifecycle
	cache     Cache
	freeLimit int
	log       *slog.Logger
}

// New создает новый Allocator. freeLimit — размер бесплатной месячной квоты.
func New(repo Repository, lifecycle Lifecycle, cache Cache, freeLimit int, log *slog.Logger) *Allocator {
	return &Allocator{
		repo:      repo,
		lifecycle: lifecycle,
		cache:     cache,
		freeLimit: freeLimit,
		log:       log,
	}
}

// Allocate списывает одну операцию для пользователя на момент now.
// Порядок строго детерминирован: сначала бесплатная квота текущего
// календарного месяца, затем подписки от старейшей по дате начала.
// Если ни один пул не принял операцию, возвращается ErrQuotaExceeded
// без каких-либо изменений состояния.
func (a *Allocator) Allocate(ctx context.Context, username string, now time.Time) (*models.AllocationResult, error) {
	const op = "quota.Allocate"

	period, err := a.repo.GetOrCreateUsagePeriod(ctx, username, yearmonth.Key(now))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	granted, err := a.repo.TryIncrementFreeUsed(ctx, username, period.YearMonth, a.freeLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if granted {
		a.log.Info("operation charged to free quota",
			slog.String("username", username),
			slog.String("year_month", period.YearMonth))
		return &models.AllocationResult{
			ChargedAgainst: models.ChargedFree,
			RemainingHint:  a.freeLimit - period.FreeUsed - 1,
		}, nil
	}

	subs, err := a.repo.ListSubscriptionsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, sub := range subs {
		sub, err = a.lifecycle.ProcessDue(ctx, sub, now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if !a.eligible(sub, now) {
			continue
		}

		charged, err := a.repo.TryIncrementUsage(ctx, sub.ID, sub.Tier.Cap())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !charged {
			// Проигранная гонка за последний слот, пробуем следующую подписку.
			continue
		}

		a.invalidateCached(sub.ID)
		a.log.Info("operation charged to subscription",
			slog.String("username", username),
			slog.String("subscription_id", sub.ID),
			slog.String("tier", string(sub.Tier)))
		return &models.AllocationResult{
			ChargedAgainst: sub.ID,
			RemainingHint:  remainingHint(sub),
		}, nil
	}

	a.log.Info("quota exceeded", slog.String("username", username))
	return nil, fmt.Errorf("%s: %w", op, ErrQuotaExceeded)
}

// eligible проверяет, может ли подписка принять операцию: активна с
// актуальным биллингом, период не истёк и лимит тарифа не исчерпан.
func (a *Allocator) eligible(sub *models.Subscription, now time.Time) bool {
	if sub.Status != models.StatusActiveCurrent {
		return false
	}
	if !sub.CurrentPeriodEnd.After(now) {
		return false
	}
	if sub.Tier.Unbounded() {
		return true
	}
	if sub.UsedInPeriod > sub.Tier.Cap() {
		// Такого состояния быть не должно, фиксируем и не используем подписку.
		a.log.Error("usage above tier cap detected",
			slog.String("subscription_id", sub.ID),
			slog.Int("used_in_period", sub.UsedInPeriod),
			slog.Int("cap", sub.Tier.Cap()))
		return false
	}
	return sub.UsedInPeriod < sub.Tier.Cap()
}

func remainingHint(sub *models.Subscription) int {
	if sub.Tier.Unbounded() {
		return -1
	}
	remaining := sub.Tier.Cap() - sub.UsedInPeriod - 1
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (a *Allocator) invalidateCached(subscriptionID string) {
	if a.cache == nil {
		return
	}
	cacheKey := fmt.Sprintf("subscription:%s", subscriptionID)
	if err := a.cache.Invalidate(cacheKey); err != nil {
		a.log.Warn("failed to invalidate subscription cache",
			slog.String("key", cacheKey), sl.Err(err))
	}
}
