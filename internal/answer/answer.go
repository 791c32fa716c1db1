// Package answer определяет контракт провайдера ответов чата.
// Движок квот не зависит от конкретной модели: провайдер вызывается
// только после успешного списания операции.
package answer

import "context"

// Provider генерирует ответ на вопрос пользователя.
type Provider interface {
	Answer(ctx context.Context, username, question string) (string, error)
}
