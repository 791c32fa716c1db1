package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/chat-quota-service/internal/models"
)

// GetOrCreateUsagePeriod возвращает период бесплатного использования
// для пары (username, yearMonth), лениво создавая запись с нулевым
// счётчиком при первом обращении в новом месяце.
func (s *Storage) GetOrCreateUsagePeriod(ctx context.Context, username, yearMonth string) (*models.UsagePeriod, error) {
	const op = "storage.GetOrCreateUsagePeriod"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO usage_periods (username, year_month, free_used)
			  VALUES ($1, $2, 0)
			  ON CONFLICT (username, year_month) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query, username, yearMonth); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var period models.UsagePeriod
	row := s.DB.QueryRowContext(ctx,
		`SELECT username, year_month, free_used
		 FROM usage_periods
		 WHERE username = $1 AND year_month = $2`, username, yearMonth)
	if err := row.Scan(&period.Username, &period.YearMonth, &period.FreeUsed); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &period, nil
}

// TryIncrementFreeUsed атомарно увеличивает счётчик бесплатных операций,
// если он меньше лимита. Возвращает true, если операция списана.
// Проверка и инкремент выполняются одним UPDATE, поэтому конкурентные
// вызовы не могут выдать больше limit операций за период.
func (s *Storage) TryIncrementFreeUsed(ctx context.Context, username, yearMonth string, limit int) (bool, error) {
	const op = "storage.TryIncrementFreeUsed"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE usage_periods
			  SET free_used = free_used + 1
			  WHERE username = $1 AND year_month = $2 AND free_used < $3`
	result, err := s.DB.ExecContext(ctx, query, username, yearMonth, limit)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// ReadUsagePeriod возвращает период использования без создания записи.
// Отсутствие записи означает нулевое использование.
func (s *Storage) ReadUsagePeriod(ctx context.Context, username, yearMonth string) (*models.UsagePeriod, error) {
	const op = "storage.ReadUsagePeriod"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var period models.UsagePeriod
	row := s.DB.QueryRowContext(ctx,
		`SELECT username, year_month, free_used
		 FROM usage_periods
		 WHERE username = $1 AND year_month = $2`, username, yearMonth)
	err := row.Scan(&period.Username, &period.YearMonth, &period.FreeUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.UsagePeriod{Username: username, YearMonth: yearMonth}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &period, nil
}
