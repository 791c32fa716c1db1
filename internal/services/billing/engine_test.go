package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/chat-quota-service/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) UpdateSubscriptionState(ctx context.Context, sub *models.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func alwaysPay(_ *models.Subscription) bool { return true }
func neverPay(_ *models.Subscription) bool  { return false }

func dueSubscription(cycle models.BillingCycle) *models.Subscription {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Subscription{
		ID:               "sub-1",
		Username:         "alice",
		Tier:             models.TierBasic,
		BillingCycle:     cycle,
		StartDate:        start,
		CurrentPeriodEnd: start.Add(30 * 24 * time.Hour),
		AutoRenew:        true,
		Status:           models.StatusActiveCurrent,
		UsedInPeriod:     7,
	}
}

func TestEngine_ProcessDue(t *testing.T) {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		sub         *models.Subscription
		pay         PaymentFunc
		wantStatus  models.Status
		wantUsed    int
		wantEnd     time.Time
		wantPersist bool
		wantEvent   string
	}{
		{
			name:        "successful monthly renewal resets usage and advances 30 days",
			sub:         dueSubscription(models.CycleMonthly),
			pay:         alwaysPay,
			wantStatus:  models.StatusActiveCurrent,
			wantUsed:    0,
			wantEnd:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC).Add(30 * 24 * time.Hour),
			wantPersist: true,
			wantEvent:   "renewed",
		},
		{
			name: "successful yearly renewal advances 365 days",
			sub: func() *models.Subscription {
				s := dueSubscription(models.CycleYearly)
				return s
			}(),
			pay:         alwaysPay,
			wantStatus:  models.StatusActiveCurrent,
			wantUsed:    0,
			wantEnd:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC).Add(365 * 24 * time.Hour),
			wantPersist: true,
			wantEvent:   "renewed",
		},
		{
			name:        "failed payment marks past due without advancing or resetting",
			sub:         dueSubscription(models.CycleMonthly),
			pay:         neverPay,
			wantStatus:  models.StatusActivePastDue,
			wantUsed:    7,
			wantEnd:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			wantPersist: true,
			wantEvent:   "payment_failed",
		},
		{
			name: "auto renew off expires the subscription",
			sub: func() *models.Subscription {
				s := dueSubscription(models.CycleMonthly)
				s.AutoRenew = false
				return s
			}(),
			pay:         alwaysPay,
			wantStatus:  models.StatusExpired,
			wantUsed:    7,
			wantEnd:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			wantPersist: true,
			wantEvent:   "expired",
		},
		{
			name: "not due subscription is untouched",
			sub: func() *models.Subscription {
				s := dueSubscription(models.CycleMonthly)
				s.CurrentPeriodEnd = now.Add(24 * time.Hour)
				return s
			}(),
			pay:         alwaysPay,
			wantStatus:  models.StatusActiveCurrent,
			wantUsed:    7,
			wantEnd:     now.Add(24 * time.Hour),
			wantPersist: false,
		},
		{
			name: "past due subscription is not renewed lazily",
			sub: func() *models.Subscription {
				s := dueSubscription(models.CycleMonthly)
				s.Status = models.StatusActivePastDue
				return s
			}(),
			pay:         alwaysPay,
			wantStatus:  models.StatusActivePastDue,
			wantUsed:    7,
			wantEnd:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			wantPersist: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			events := new(PublisherMock)
			if tt.wantPersist {
				repo.On("UpdateSubscriptionState", mock.Anything, mock.Anything).Return(nil).Once()
			}
			if tt.wantEvent != "" {
				events.On("Publish", mock.Anything, mock.MatchedBy(func(m any) bool {
					ev, ok := m.(models.BillingEvent)
					return ok && ev.Event == tt.wantEvent && ev.SubscriptionID == "sub-1"
				})).Return(nil).Once()
			}

			engine := New(repo, tt.pay, events, newNoopLogger())

			got, err := engine.ProcessDue(context.Background(), tt.sub, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantUsed, got.UsedInPeriod)
			assert.Equal(t, tt.wantEnd, got.CurrentPeriodEnd)

			repo.AssertExpectations(t)
			events.AssertExpectations(t)
		})
	}
}

func TestEngine_ProcessDue_StorageError(t *testing.T) {
	repo := new(RepoMock)
	repo.On("UpdateSubscriptionState", mock.Anything, mock.Anything).
		Return(errors.New("db down")).Once()

	engine := New(repo, alwaysPay, nil, newNoopLogger())

	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := engine.ProcessDue(context.Background(), dueSubscription(models.CycleMonthly), now)
	require.Error(t, err)
	repo.AssertExpectations(t)
}

func TestEngine_AttemptPayment(t *testing.T) {
	now := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	t.Run("past due recovers on successful payment", func(t *testing.T) {
		sub := dueSubscription(models.CycleMonthly)
		sub.Status = models.StatusActivePastDue
		oldEnd := sub.CurrentPeriodEnd

		repo := new(RepoMock)
		repo.On("UpdateSubscriptionState", mock.Anything, mock.Anything).Return(nil).Once()

		engine := New(repo, alwaysPay, nil, newNoopLogger())
		got, err := engine.AttemptPayment(context.Background(), sub, now)
		require.NoError(t, err)

		assert.Equal(t, models.StatusActiveCurrent, got.Status)
		assert.Equal(t, 0, got.UsedInPeriod)
		assert.Equal(t, oldEnd.Add(30*24*time.Hour), got.CurrentPeriodEnd)
		repo.AssertExpectations(t)
	})

	t.Run("repeated failure keeps subscription past due", func(t *testing.T) {
		sub := dueSubscription(models.CycleMonthly)
		sub.Status = models.StatusActivePastDue
		oldEnd := sub.CurrentPeriodEnd

		repo := new(RepoMock)

		engine := New(repo, neverPay, nil, newNoopLogger())
		got, err := engine.AttemptPayment(context.Background(), sub, now)
		require.NoError(t, err)

		assert.Equal(t, models.StatusActivePastDue, got.Status)
		assert.Equal(t, 7, got.UsedInPeriod)
		assert.Equal(t, oldEnd, got.CurrentPeriodEnd)
		repo.AssertExpectations(t)
	})

	t.Run("terminal states are rejected", func(t *testing.T) {
		for _, status := range []models.Status{models.StatusCancelled, models.StatusExpired} {
			sub := dueSubscription(models.CycleMonthly)
			sub.Status = status

			engine := New(new(RepoMock), alwaysPay, nil, newNoopLogger())
			_, err := engine.AttemptPayment(context.Background(), sub, now)
			assert.ErrorIs(t, err, ErrSubscriptionNotActive)
		}
	})

	t.Run("active current not due is a no-op", func(t *testing.T) {
		sub := dueSubscription(models.CycleMonthly)
		sub.CurrentPeriodEnd = now.Add(48 * time.Hour)

		engine := New(new(RepoMock), alwaysPay, nil, newNoopLogger())
		got, err := engine.AttemptPayment(context.Background(), sub, now)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActiveCurrent, got.Status)
		assert.Equal(t, 7, got.UsedInPeriod)
	})
}

func TestEngine_Cancel(t *testing.T) {
	t.Run("active subscription is cancelled with counters frozen", func(t *testing.T) {
		sub := dueSubscription(models.CycleMonthly)
		sub.TotalHistoricalUsed = 42

		repo := new(RepoMock)
		repo.On("UpdateSubscriptionState", mock.Anything, mock.MatchedBy(func(s *models.Subscription) bool {
			return s.Status == models.StatusCancelled && s.UsedInPeriod == 7 && s.TotalHistoricalUsed == 42
		})).Return(nil).Once()

		engine := New(repo, alwaysPay, nil, newNoopLogger())
		got, err := engine.Cancel(context.Background(), sub)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
		repo.AssertExpectations(t)
	})

	t.Run("past due subscription can be cancelled", func(t *testing.T) {
		sub := dueSubscription(models.CycleMonthly)
		sub.Status = models.StatusActivePastDue

		repo := new(RepoMock)
		repo.On("UpdateSubscriptionState", mock.Anything, mock.Anything).Return(nil).Once()

		engine := New(repo, alwaysPay, nil, newNoopLogger())
		got, err := engine.Cancel(context.Background(), sub)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
	})

	t.Run("terminal subscription cannot be cancelled again", func(t *testing.T) {
		sub := dueSubscription(models.CycleMonthly)
		sub.Status = models.StatusExpired

		engine := New(new(RepoMock), alwaysPay, nil, newNoopLogger())
		_, err := engine.Cancel(context.Background(), sub)
		assert.ErrorIs(t, err, ErrSubscriptionNotActive)
	})
}

func TestNewRandomPayment(t *testing.T) {
	sub := dueSubscription(models.CycleMonthly)

	always := NewRandomPayment(0)
	for range 100 {
		assert.True(t, always(sub))
	}

	never := NewRandomPayment(1)
	for range 100 {
		assert.False(t, never(sub))
	}
}
