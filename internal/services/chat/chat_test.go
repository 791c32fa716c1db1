package chat

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

	answermock "github.com/magabrotheeeer/chat-quota-service/internal/answer/mock"
	"github.com/magabrotheeeer/chat-quota-service/internal/models"
	"github.com/magabrotheeeer/chat-quota-service/internal/services/quota"
)

type AllocatorMock struct{ mock.Mock }

func (m *AllocatorMock) Allocate(ctx context.Context, username string, now time.Time) (*models.AllocationResult, error) {
	args := m.Called(ctx, username, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AllocationResult), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestService_Ask(t *testing.T) {
	t.Run("answer carries charge source and remaining hint", func(t *testing.T) {
		allocator := new(AllocatorMock)
		allocator.On("Allocate", mock.Anything, "alice", mock.Anything).
			Return(&models.AllocationResult{ChargedAgainst: models.ChargedFree, RemainingHint: 2}, nil).Once()

		provider := answermock.New(newNoopLogger())
		provider.AnswerResponse = "ответ"

		svc := New(allocator, provider, newNoopLogger())

		got, err := svc.Ask(context.Background(), "alice", "вопрос")
		require.NoError(t, err)
		assert.Equal(t, "ответ", got.Answer)
		assert.Equal(t, models.ChargedFree, got.ChargedAgainst)
		assert.Equal(t, 2, got.RemainingHint)
		assert.Equal(t, 1, provider.AnswerCalls())
	})

	t.Run("quota exceeded skips the provider", func(t *testing.T) {
		allocator := new(AllocatorMock)
		allocator.On("Allocate", mock.Anything, "alice", mock.Anything).
			Return(nil, quota.ErrQuotaExceeded).Once()

		provider := answermock.New(newNoopLogger())

		svc := New(allocator, provider, newNoopLogger())

		_, err := svc.Ask(context.Background(), "alice", "вопрос")
		assert.ErrorIs(t, err, quota.ErrQuotaExceeded)
		assert.Equal(t, 0, provider.AnswerCalls())
	})

	t.Run("provider error propagates", func(t *testing.T) {
		allocator := new(AllocatorMock)
		allocator.On("Allocate", mock.Anything, "alice", mock.Anything).
			Return(&models.AllocationResult{ChargedAgainst: "sub-1", RemainingHint: 5}, nil).Once()

		provider := answermock.New(newNoopLogger())
		provider.AnswerError = errors.New("model unavailable")

		svc := New(allocator, provider, newNoopLogger())

		_, err := svc.Ask(context.Background(), "alice", "вопрос")
		require.Error(t, err)
		assert.NotErrorIs(t, err, quota.ErrQuotaExceeded)
	})
}
