package middlewarectx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	doRequest := func(handler http.Handler) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	t.Run("request above burst is rejected", func(t *testing.T) {
		// Нулевая скорость пополнения: доступен ровно один токен.
		handler := RateLimitMiddleware(newNoopLogger(), 0, 1)(next)

		assert.Equal(t, http.StatusOK, doRequest(handler))
		assert.Equal(t, http.StatusTooManyRequests, doRequest(handler))
	})

	t.Run("instances do not share limiter state", func(t *testing.T) {
		first := RateLimitMiddleware(newNoopLogger(), 0, 1)(next)
		assert.Equal(t, http.StatusOK, doRequest(first))
		assert.Equal(t, http.StatusTooManyRequests, doRequest(first))

		second := RateLimitMiddleware(newNoopLogger(), 0, 1)(next)
		assert.Equal(t, http.StatusOK, doRequest(second))
	})
}
