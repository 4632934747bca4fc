package middleware

import (
	"authgate/internal/logger"
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ContextKey string

const (
	ContextUserID    ContextKey = "user_id"
	ContextUsername  ContextKey = "username"
	ContextRequestID ContextKey = "request_id"
)

// RequestID присваивает каждому запросу идентификатор (или берёт его из
// заголовка X-Request-ID) и кладёт в контекст — для логов.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), ContextRequestID, rid)
		ctx = logger.WithRequestID(ctx, rid)
		w.Header().Set("X-Request-ID", rid)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(ContextUserID).(int)
	return id, ok
}
