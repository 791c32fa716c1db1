// Package mock реализует провайдер ответов с каннед-репликами для
// разработки и тестов.
package mock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Задержка ответа по умолчанию, имитирует обращение к модели.
const defaultLatency = 20 * time.Millisecond

// Provider возвращает детерминированные ответы без обращения к модели.
type Provider struct {
	logger *slog.Logger

	// Настраиваемая искусственная задержка ответа. Ноль отключает её.
	Latency time.Duration

	// Переопределяемый ответ и ошибка для тестов.
	AnswerResponse string
	AnswerError    error

	mu          sync.Mutex
	answerCalls int
}

// New создает новый мок-провайдер с задержкой по умолчанию.
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger:  logger,
		Latency: defaultLatency,
	}
}

// Answer возвращает каннед-ответ, эхом повторяющий вопрос. Перед ответом
// выдерживается искусственная задержка, прерываемая отменой ctx.
func (p *Provider) Answer(ctx context.Context, username, question string) (string, error) {
	p.mu.Lock()
	p.answerCalls++
	p.mu.Unlock()

	if p.Latency > 0 {
		timer := time.NewTimer(p.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if p.AnswerError != nil {
		return "", p.AnswerError
	}
	if p.AnswerResponse != "" {
		return p.AnswerResponse, nil
	}

	p.logger.Debug("mock answer generated",
		slog.String("username", username),
		slog.Int("question_len", len(question)))

	return fmt.Sprintf("Это заглушка ответа на вопрос: %q", question), nil
}

// AnswerCalls возвращает число обработанных вопросов.
func (p *Provider) AnswerCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answerCalls
}
