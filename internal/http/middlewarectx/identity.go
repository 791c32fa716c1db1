// Package middlewarectx содержит HTTP middleware запросного конвейера:
// идентификацию пользователя по заголовку и ограничение частоты запросов.
//
// IdentityMiddleware извлекает имя пользователя из заголовка X-User-Id и
// кладёт его в контекст запроса для дальнейшего использования в
// обработчиках. Запрос без заголовка отклоняется с HTTP 401 Unauthorized.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/chat-quota-service/internal/http/response"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// User — ключ для имени пользователя в контексте.
const User Key = "username"

// IdentityMiddleware возвращает HTTP middleware, который читает имя
// пользователя из заголовка X-User-Id.
//
// Если заголовок присутствует и непуст, имя кладётся в контекст запроса,
// иначе возвращается ошибка с HTTP статусом 401 Unauthorized.
func IdentityMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.IdentityMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			username := strings.TrimSpace(r.Header.Get("X-User-Id"))
			if username == "" {
				log.Error("user identification missing")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}

			ctx := context.WithValue(r.Context(), User, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
