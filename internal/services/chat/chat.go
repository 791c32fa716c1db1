// Package chat реализует операцию чата, защищённую квотами: сначала
// списание операции у аллокатора, затем генерация ответа провайдером.
// При исчерпании квоты ответ не генерируется.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/chat-quota-service/internal/answer"
	"github.com/magabrotheeeer/chat-quota-service/internal/models"
)

// Allocator списывает одну операцию для пользователя.
type Allocator interface {
	Allocate(ctx context.Context, username string, now time.Time) (*models.AllocationResult, error)
}

// Service связывает аллокатор квот и провайдер ответов.
type Service struct {
	allocator Allocator
	provider  answer.Provider
	log       *slog.Logger
	now       func() time.Time
}

// New создает новый Service.
func New(allocator Allocator, provider answer.Provider, log *slog.Logger) *Service {
	return &Service{
		allocator: allocator,
		provider:  provider,
		log:       log,
		now:       time.Now,
	}
}

// Ask обрабатывает один вопрос пользователя. Возвращает ответ вместе с
// пулом, с которого была списана операция. Ошибка аллокатора, включая
// quota.ErrQuotaExceeded, возвращается без обращения к провайдеру.
func (s *Service) Ask(ctx context.Context, username, question string) (*models.ChatAnswer, error) {
	const op = "chat.Ask"

	result, err := s.allocator.Allocate(ctx, username, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	text, err := s.provider.Answer(ctx, username, question)
	if err != nil {
		// Операция уже списана, вернуть её нечем: фиксируем и отдаём ошибку.
		s.log.Error("answer provider failed after allocation",
			slog.String("username", username),
			slog.String("charged_against", result.ChargedAgainst))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.ChatAnswer{
		Answer:         text,
		ChargedAgainst: result.ChargedAgainst,
		RemainingHint:  result.RemainingHint,
	}, nil
}
