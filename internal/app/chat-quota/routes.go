// Package chatquota предоставляет маршруты и сборку основного приложения.
package chatquota

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/chat-quota-service/internal/http/handlers/chat/ask"
	"github.com/magabrotheeeer/chat-quota-service/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/chat-quota-service/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/chat-quota-service/internal/http/handlers/subscription/health"
	"github.com/magabrotheeeer/chat-quota-service/internal/http/handlers/subscription/list"
	"github.com/magabrotheeeer/chat-quota-service/internal/http/handlers/subscription/read"
	"github.com/magabrotheeeer/chat-quota-service/internal/http/handlers/subscription/simulatepayment"
	"github.com/magabrotheeeer/chat-quota-service/internal/http/middlewarectx"
	chatservice "github.com/magabrotheeeer/chat-quota-service/internal/services/chat"
	subservice "github.com/magabrotheeeer/chat-quota-service/internal/services/subscription"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, chatService *chatservice.Service, subscriptionService *subservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/health", health.New(logger).ServeHTTP)

		// Группа с идентификацией пользователя
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.IdentityMiddleware(logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, 50, 100))
			r.Post("/chat", ask.New(logger, chatService).ServeHTTP)
			r.Post("/subscriptions", create.New(logger, subscriptionService).ServeHTTP)
			r.Get("/subscriptions/list", list.New(logger, subscriptionService).ServeHTTP)
			r.Get("/subscriptions/{id}", read.New(logger, subscriptionService).ServeHTTP)
			r.Delete("/subscriptions/{id}", cancel.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscriptions/{id}/payment", simulatepayment.New(logger, subscriptionService).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
