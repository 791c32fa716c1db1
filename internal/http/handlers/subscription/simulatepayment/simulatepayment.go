// Package simulatepayment реализует HTTP-обработчик ручной симуляции платежа.
//
// Handler извлекает ID из URL-параметров и повторяет симулированный платёж
// по подписке. Для подписки в состоянии past_due успех возвращает её в
// active_current; для терминальных состояний запрос отклоняется.
package simulatepayment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/chat-quota-service/internal/http/response"
	"github.com/magabrotheeeer/chat-quota-service/internal/lib/sl"
	"github.com/magabrotheeeer/chat-quota-service/internal/models"
	"github.com/magabrotheeeer/chat-quota-service/internal/services/subscription"
)

// Handler обрабатывает запросы на симуляцию платежа по подписке.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики для симуляции платежа
}

// Service описывает интерфейс бизнес-логики симуляции платежа.
type Service interface {
	SimulatePayment(ctx context.Context, id string, now time.Time) (*models.Subscription, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Симулировать платёж
// @Description Повторяет симулированный платёж по подписке. Успех возвращает подписку из past_due в active_current, число попыток не ограничено.
// @Tags Subscriptions
// @Produce  json
// @Param id path string true "ID подписки"
// @Success 200 {object} map[string]any "Новое состояние подписки"
// @Failure 400 {object} response.ErrorResponse "Подписка в терминальном состоянии"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при обработке платежа"
// @Router /subscriptions/{id}/payment [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.simulatepayment"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")

	res, err := h.service.SimulatePayment(r.Context(), id, time.Now())
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		log.Info("subscription not found", slog.String("id", id))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("subscription not found"))
		return
	case errors.Is(err, subscription.ErrNotActive):
		log.Info("subscription is not active", slog.String("id", id))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("subscription is not active"))
		return
	case err != nil:
		log.Error("failed to simulate payment", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not simulate payment"))
		return
	}

	log.Info("payment simulated",
		slog.String("id", id),
		slog.String("status", string(res.Status)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscription": res,
	}))
}
