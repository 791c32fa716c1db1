// Package list реализует HTTP-обработчик для получения всех подписок пользователя.
//
// Handler извлекает имя пользователя из контекста, вызывает бизнес-логику
// чтения списка подписок и возвращает их в JSON-формате, включая
// отменённые и истёкшие.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/chat-quota-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/chat-quota-service/internal/http/response"
	"github.com/magabrotheeeer/chat-quota-service/internal/lib/sl"
	"github.com/magabrotheeeer/chat-quota-service/internal/models"
)

// Handler обрабатывает запросы на получение списка подписок пользователя.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики для чтения подписок
}

// Service описывает интерфейс бизнес-логики чтения списка подписок.
type Service interface {
	List(ctx context.Context, username string) ([]*models.Subscription, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить список подписок
// @Description Возвращает все подписки текущего пользователя от старейшей к новейшей, включая отменённые и истёкшие.
// @Tags Subscriptions
// @Produce  json
// @Success 200 {object} map[string]any "Список подписок"
// @Failure 401 {object} response.ErrorResponse "Пользователь не идентифицирован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при чтении подписок"
// @Router /subscriptions/list [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.list"
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

	subs, err := h.service.List(r.Context(), username)
	if err != nil {
		log.Error("failed to list subscriptions", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list subscriptions"))
		return
	}

	log.Info("success to list subscriptions", slog.Int("count", len(subs)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscriptions": subs,
	}))
}
