package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/chat-quota-service/internal/models"
)

// ErrSubscriptionNotFound возвращается, когда подписка с заданным ID отсутствует.
var ErrSubscriptionNotFound = errors.New("subscription not found")

const subscriptionColumns = `id, username, tier, billing_cycle, start_date,
			      current_period_end, auto_renew, status, used_in_period, total_historical_used`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var sub models.Subscription
	err := row.Scan(&sub.ID, &sub.Username, &sub.Tier, &sub.BillingCycle, &sub.StartDate,
		&sub.CurrentPeriodEnd, &sub.AutoRenew, &sub.Status, &sub.UsedInPeriod, &sub.TotalHistoricalUsed)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription вставляет новую подписку и возвращает её ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (string, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (id, username, tier, billing_cycle, start_date,
			      current_period_end, auto_renew, status, used_in_period, total_historical_used)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		sub.ID, sub.Username, sub.Tier, sub.BillingCycle, sub.StartDate,
		sub.CurrentPeriodEnd, sub.AutoRenew, sub.Status, sub.UsedInPeriod, sub.TotalHistoricalUsed).Scan(&newID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetSubscription возвращает подписку по её ID.
func (s *Storage) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ListSubscriptionsByUsername возвращает все подписки пользователя,
// отсортированные по дате начала: старейшая первой, как того требует
// порядок списания квоты.
func (s *Storage) ListSubscriptionsByUsername(ctx context.Context, username string) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptionsByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE username = $1
			  ORDER BY start_date, id`
	rows, err := s.DB.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// TryIncrementUsage атомарно списывает одну операцию с подписки, если
// она активна с актуальным биллингом и лимит тарифа не исчерпан.
// quotaCap <= 0 означает безлимитный тариф. Возвращает true при успехе.
// Один UPDATE проверяет лимит и инкрементирует оба счётчика, поэтому
// даже при конкурентных вызовах used_in_period не превысит лимит.
func (s *Storage) TryIncrementUsage(ctx context.Context, id string, quotaCap int) (bool, error) {
	const op = "storage.TryIncrementUsage"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET used_in_period = used_in_period + 1,
			      total_historical_used = total_historical_used + 1
			  WHERE id = $1
			    AND status = $2
			    AND ($3 <= 0 OR used_in_period < $3)`
	result, err := s.DB.ExecContext(ctx, query, id, models.StatusActiveCurrent, quotaCap)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// UpdateSubscriptionState сохраняет новое состояние подписки: статус,
// конец периода и счётчик операций за период. total_historical_used
// намеренно не трогается — он меняется только при списании операций.
func (s *Storage) UpdateSubscriptionState(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.UpdateSubscriptionState"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $1, current_period_end = $2, used_in_period = $3
			  WHERE id = $4`
	result, err := s.DB.ExecContext(ctx, query, sub.Status, sub.CurrentPeriodEnd, sub.UsedInPeriod, sub.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
	}
	return nil
}

// ListDueSubscriptions возвращает активные подписки с наступившим
// концом периода — кандидатов на продление или истечение.
func (s *Storage) ListDueSubscriptions(ctx context.Context, now time.Time, limit int) ([]*models.Subscription, error) {
	const op = "storage.ListDueSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE status = $1 AND current_period_end <= $2
			  ORDER BY current_period_end
			  LIMIT $3`
	rows, err := s.DB.QueryContext(ctx, query, models.StatusActiveCurrent, now, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
