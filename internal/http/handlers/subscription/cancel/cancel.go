// Package cancel реализует HTTP-обработчик отмены подписки.
//
// Handler извлекает ID из URL-параметров, проверяет принадлежность подписки
// текущему пользователю и переводит её в терминальное состояние cancelled.
// Счётчики использования замораживаются, история остаётся читаемой.
package cancel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/chat-quota-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/chat-quota-service/internal/http/response"
	"github.com/magabrotheeeer/chat-quota-service/internal/lib/sl"
	"github.com/magabrotheeeer/chat-quota-service/internal/models"
	"github.com/magabrotheeeer/chat-quota-service/internal/services/subscription"
)

// Handler обрабатывает запросы на отмену подписки.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики для отмены подписки
}

// Service описывает интерфейс бизнес-логики отмены подписки.
type Service interface {
	Cancel(ctx context.Context, username, id string) (*models.Subscription, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отменить подписку
// @Description Переводит подписку текущего пользователя в состояние cancelled. Повторная отмена и отмена истёкшей подписки отклоняются.
// @Tags Subscriptions
// @Produce  json
// @Param id path string true "ID подписки"
// @Success 200 {object} map[string]any "Отменённая подписка"
// @Failure 400 {object} response.ErrorResponse "Подписка уже в терминальном состоянии"
// @Failure 401 {object} response.ErrorResponse "Пользователь не идентифицирован"
// @Failure 403 {object} response.ErrorResponse "Подписка принадлежит другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при отмене подписки"
// @Router /subscriptions/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	username, ok := r.Context().Value(middlewarectx.User).(string)
	if !ok || username == "" {
		log.Error("username not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	id := chi.URLParam(r, "id")

	res, err := h.service.Cancel(r.Context(), username, id)
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		log.Info("subscription not found", slog.String("id", id))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("subscription not found"))
		return
	case errors.Is(err, subscription.ErrForbidden):
		log.Info("subscription belongs to another user", slog.String("id", id))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("forbidden"))
		return
	case errors.Is(err, subscription.ErrNotActive):
		log.Info("subscription is not active", slog.String("id", id))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("subscription is not active"))
		return
	case err != nil:
		log.Error("failed to cancel subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not cancel subscription"))
		return
	}

	log.Info("success to cancel subscription", slog.String("id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscription": res,
	}))
}
