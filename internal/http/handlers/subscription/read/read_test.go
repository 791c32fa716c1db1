package read

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/chat-quota-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/chat-quota-service/internal/models"
	"github.com/magabrotheeeer/chat-quota-service/internal/services/subscription"
)

// MockService реализует интерфейс read.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Read(ctx context.Context, username, id string) (*models.Subscription, error) {
	args := m.Called(ctx, username, id)
	if res := args.Get(0); res != nil {
		return res.(*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestReadHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	sub := &models.Subscription{
		ID:           "c2a7b3f0-0000-0000-0000-000000000001",
		Username:     "alice",
		Tier:         models.TierPro,
		BillingCycle: models.CycleMonthly,
		StartDate:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Status:       models.StatusActiveCurrent,
	}

	tests := []struct {
		name           string
		id             string
		username       string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:     "успешное чтение подписки",
			id:       sub.ID,
			username: "alice",
			setupMock: func(m *MockService) {
				m.On("Read", mock.Anything, "alice", sub.ID).Return(sub, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"tier":"pro"`,
		},
		{
			name:     "подписка не найдена",
			id:       "missing",
			username: "alice",
			setupMock: func(m *MockService) {
				m.On("Read", mock.Anything, "alice", "missing").
					Return(nil, subscription.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `subscription not found`,
		},
		{
			name:     "чужая подписка",
			id:       sub.ID,
			username: "bob",
			setupMock: func(m *MockService) {
				m.On("Read", mock.Anything, "bob", sub.ID).
					Return(nil, subscription.ErrForbidden)
			},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `forbidden`,
		},
		{
			name:     "ошибка сервиса чтения",
			id:       sub.ID,
			username: "alice",
			setupMock: func(m *MockService) {
				m.On("Read", mock.Anything, "alice", sub.ID).
					Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not read subscription`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			tt.setupMock(service)

			handler := New(logger, service)
			router := chi.NewRouter()
			router.Get("/subscriptions/{id}", handler.ServeHTTP)

			req := httptest.NewRequest(http.MethodGet, "/subscriptions/"+tt.id, nil)
			ctx := context.WithValue(req.Context(), middlewarectx.User, tt.username)
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req.WithContext(ctx))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			service.AssertExpectations(t)
		})
	}
}
