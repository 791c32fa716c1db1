package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/chat-quota-service/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) ListDueSubscriptions(ctx context.Context, now time.Time, limit int) ([]*models.Subscription, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

type LifecycleMock struct{ mock.Mock }

func (m *LifecycleMock) ProcessDue(ctx context.Context, sub *models.Subscription, now time.Time) (*models.Subscription, error) {
	args := m.Called(ctx, sub, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func dueSubscription(id string) *models.Subscription {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Subscription{
		ID:               id,
		Username:         "alice",
		Tier:             models.TierBasic,
		BillingCycle:     models.CycleMonthly,
		StartDate:        start,
		CurrentPeriodEnd: start.Add(30 * 24 * time.Hour),
		AutoRenew:        true,
		Status:           models.StatusActiveCurrent,
	}
}

func TestSchedulerService_RunOnce(t *testing.T) {
	t.Run("processes every due subscription in the batch", func(t *testing.T) {
		subs := []*models.Subscription{dueSubscription("sub-1"), dueSubscription("sub-2")}

		repo := new(RepoMock)
		repo.On("ListDueSubscriptions", mock.Anything, mock.Anything, 100).Return(subs, nil).Once()

		lifecycle := new(LifecycleMock)
		for _, sub := range subs {
			lifecycle.On("ProcessDue", mock.Anything, sub, mock.Anything).Return(sub, nil).Once()
		}

		svc := NewSchedulerService(repo, lifecycle, time.Hour, 100, newNoopLogger())
		svc.RunOnce(context.Background())

		repo.AssertExpectations(t)
		lifecycle.AssertExpectations(t)
	})

	t.Run("failure on one subscription does not stop the pass", func(t *testing.T) {
		subs := []*models.Subscription{dueSubscription("sub-1"), dueSubscription("sub-2")}

		repo := new(RepoMock)
		repo.On("ListDueSubscriptions", mock.Anything, mock.Anything, 100).Return(subs, nil).Once()

		lifecycle := new(LifecycleMock)
		lifecycle.On("ProcessDue", mock.Anything, subs[0], mock.Anything).
			Return(nil, errors.New("db down")).Once()
		lifecycle.On("ProcessDue", mock.Anything, subs[1], mock.Anything).
			Return(subs[1], nil).Once()

		svc := NewSchedulerService(repo, lifecycle, time.Hour, 100, newNoopLogger())
		svc.RunOnce(context.Background())

		lifecycle.AssertExpectations(t)
	})

	t.Run("empty batch is a quiet no-op", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("ListDueSubscriptions", mock.Anything, mock.Anything, 100).
			Return([]*models.Subscription{}, nil).Once()

		lifecycle := new(LifecycleMock)

		svc := NewSchedulerService(repo, lifecycle, time.Hour, 100, newNoopLogger())
		svc.RunOnce(context.Background())

		lifecycle.AssertNotCalled(t, "ProcessDue", mock.Anything, mock.Anything, mock.Anything)
	})
}
