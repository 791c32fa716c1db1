// Package billing реализует машину состояний биллингового цикла
// подписки: продление по наступлению конца периода, симуляцию платежа,
// переход в past_due при отказе и истечение при выключенном
// автопродлении. Платёжная способность передаётся снаружи функцией,
// чтобы позже подставить реальный платёжный шлюз без изменения
// переходов.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/magabrotheeeer/chat-quota-service/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/chat-quota-service/internal/lib/sl"
	"github.com/magabrotheeeer/chat-quota-service/internal/models"
)

// ErrSubscriptionNotActive возвращается при попытке платежа или отмены
// по подписке в терминальном состоянии.
var ErrSubscriptionNotActive = errors.New("subscription is not active")

// Repository определяет методы хранилища, нужные движку.
type Repository interface {
	// UpdateSubscriptionState сохраняет статус, конец периода и счётчик.
	UpdateSubscriptionState(ctx context.Context, sub *models.Subscription) error
}

// PaymentFunc симулирует попытку платежа по подписке.
// Возвращает true при успешном списании.
type PaymentFunc func(sub *models.Subscription) bool

// Publisher публикует биллинговые события. Может быть nil,
// тогда события не публикуются.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// NewRandomPayment возвращает PaymentFunc с фиксированной вероятностью
// отказа failureRate из диапазона [0, 1].
func NewRandomPayment(failureRate float64) PaymentFunc {
	return func(_ *models.Subscription) bool {
		return rand.Float64() >= failureRate
	}
}

// Engine продвигает подписки по состояниям биллингового цикла.
type Engine struct {
	repo   Repository
	pay    PaymentFunc
	events Publisher
	log    *slog.Logger
}

// New создает новый Engine. events может быть nil.
func New(repo Repository, pay PaymentFunc, events Publisher, log *slog.Logger) *Engine {
	return &Engine{
		repo:   repo,
		pay:    pay,
		events: events,
		log:    log,
	}
}

// ProcessDue обрабатывает подписку с наступившим концом периода:
// истечение при выключенном автопродлении, иначе попытка платежа.
// Успех обнуляет used_in_period и сдвигает конец периода ровно на одну
// единицу цикла; отказ переводит подписку в past_due, не меняя ни
// счётчик, ни конец периода. Подписки не в состоянии active_current
// или с ненаступившим концом периода возвращаются без изменений.
func (e *Engine) ProcessDue(ctx context.Context, sub *models.Subscription, now time.Time) (*models.Subscription, error) {
	const op = "billing.ProcessDue"

	if sub.Status != models.StatusActiveCurrent || sub.CurrentPeriodEnd.After(now) {
		return sub, nil
	}

	if !sub.AutoRenew {
		sub.Status = models.StatusExpired
		if err := e.repo.UpdateSubscriptionState(ctx, sub); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.log.Info("subscription expired",
			slog.String("subscription_id", sub.ID))
		e.publish(rabbitmq.RoutingKeyExpired, sub, "expired")
		return sub, nil
	}

	if e.pay(sub) {
		sub.UsedInPeriod = 0
		sub.CurrentPeriodEnd = sub.BillingCycle.Advance(sub.CurrentPeriodEnd)
		if err := e.repo.UpdateSubscriptionState(ctx, sub); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.log.Info("subscription renewed",
			slog.String("subscription_id", sub.ID),
			slog.Time("current_period_end", sub.CurrentPeriodEnd))
		e.publish(rabbitmq.RoutingKeyRenewed, sub, "renewed")
		return sub, nil
	}

	sub.Status = models.StatusActivePastDue
	if err := e.repo.UpdateSubscriptionState(ctx, sub); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.log.Info("subscription payment failed, marked past due",
		slog.String("subscription_id", sub.ID))
	e.publish(rabbitmq.RoutingKeyPaymentFailed, sub, "payment_failed")
	return sub, nil
}

// AttemptPayment повторяет симулированный платёж по ручному триггеру.
// Для past_due успех возвращает подписку в active_current с обнулением
// счётчика и сдвигом конца периода; повторный отказ оставляет её в
// past_due без ограничения числа попыток. Для active_current с
// наступившим концом периода выполняется обычное продление; для ещё не
// истёкшего периода вызов ничего не меняет. Терминальные состояния
// отвергаются с ErrSubscriptionNotActive.
func (e *Engine) AttemptPayment(ctx context.Context, sub *models.Subscription, now time.Time) (*models.Subscription, error) {
	const op = "billing.AttemptPayment"

	if sub.Status.Terminal() {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotActive)
	}

	if sub.Status == models.StatusActiveCurrent {
		return e.ProcessDue(ctx, sub, now)
	}

	if e.pay(sub) {
		sub.Status = models.StatusActiveCurrent
		sub.UsedInPeriod = 0
		sub.CurrentPeriodEnd = sub.BillingCycle.Advance(sub.CurrentPeriodEnd)
		if err := e.repo.UpdateSubscriptionState(ctx, sub); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.log.Info("past due subscription recovered",
			slog.String("subscription_id", sub.ID),
			slog.Time("current_period_end", sub.CurrentPeriodEnd))
		e.publish(rabbitmq.RoutingKeyRenewed, sub, "renewed")
		return sub, nil
	}

	e.log.Info("retry payment failed, subscription stays past due",
		slog.String("subscription_id", sub.ID))
	e.publish(rabbitmq.RoutingKeyPaymentFailed, sub, "payment_failed")
	return sub, nil
}

// Cancel переводит активную подписку в терминальное состояние
// cancelled. Счётчики замораживаются, не обнуляются.
func (e *Engine) Cancel(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	const op = "billing.Cancel"

	if sub.Status.Terminal() {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotActive)
	}

	sub.Status = models.StatusCancelled
	if err := e.repo.UpdateSubscriptionState(ctx, sub); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.log.Info("subscription cancelled",
		slog.String("subscription_id", sub.ID))
	e.publish(rabbitmq.RoutingKeyCancelled, sub, "cancelled")
	return sub, nil
}

func (e *Engine) publish(routingKey string, sub *models.Subscription, event string) {
	if e.events == nil {
		return
	}
	msg := models.BillingEvent{
		SubscriptionID: sub.ID,
		Username:       sub.Username,
		Event:          event,
		Status:         sub.Status,
	}
	if err := e.events.Publish(routingKey, msg); err != nil {
		e.log.Warn("failed to publish billing event",
			slog.String("routing_key", routingKey), sl.Err(err))
	}
}
