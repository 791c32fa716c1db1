// Package ask реализует HTTP-обработчик операции чата.
//
// Handler принимает JSON-запрос с вопросом, валидирует его, извлекает имя
// пользователя из контекста, вызывает бизнес-логику чата через сервис и
// возвращает ответ вместе с источником списания в JSON-формате.
//
// В случае исчерпания квоты возвращает HTTP 403 с кодом QUOTA_EXCEEDED.
package ask

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/chat-quota-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/chat-quota-service/internal/http/response"
	"github.com/magabrotheeeer/chat-quota-service/internal/lib/sl"
	"github.com/magabrotheeeer/chat-quota-service/internal/models"
	"github.com/magabrotheeeer/chat-quota-service/internal/services/quota"
)

// Handler управляет HTTP-запросами операций чата.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики чата
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики чата.
type Service interface {
	Ask(ctx context.Context, username, question string) (*models.ChatAnswer, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Задать вопрос
// @Description Списывает одну операцию с квоты пользователя и возвращает ответ. Сначала расходуется бесплатная месячная квота, затем подписки от старейшей.
// @Tags Chat
// @Accept  json
// @Produce  json
// @Param request body models.DummyQuestion true "Вопрос пользователя"
// @Success 200 {object} map[string]any "Ответ с источником списания"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не идентифицирован"
// @Failure 403 {object} response.ErrorResponse "Квота исчерпана"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /api/v1/chat [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat.ask"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyQuestion
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	username, ok := r.Context().Value(middlewarectx.User).(string)
	if !ok || username == "" {
		log.Error("username not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	res, err := h.service.Ask(r.Context(), username, req.Question)
	if errors.Is(err, quota.ErrQuotaExceeded) {
		log.Info("quota exceeded", slog.String("username", username))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("QUOTA_EXCEEDED"))
		return
	}
	if err != nil {
		log.Error("failed to process question", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not process question"))
		return
	}

	log.Info("question answered",
		slog.String("username", username),
		slog.String("charged_against", res.ChargedAgainst))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"answer":          res.Answer,
		"charged_against": res.ChargedAgainst,
		"remaining_hint":  res.RemainingHint,
	}))
}
