package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
	RoleAdmin   Role = "admin"
)

// Caller пользователь, которого передаёт шлюз перед сервисом.
type Caller struct {
	UserID uuid.UUID
	Role   Role
}

func (c Caller) Is(userID uuid.UUID) bool {
	return c.Role == RoleAdmin || c.UserID == userID
}

type callerKey struct{}

func callerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// identity отклоняет запросы без корректного пользователя и кладёт его в контекст.
func identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(headerUserID))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: errUnauthenticated.Error()})
			return
		}

		role := Role(r.Header.Get(headerUserRole))
		switch role {
		case RoleStudent, RoleTutor, RoleAdmin:
		default:
			role = RoleStudent
		}

		ctx := context.WithValue(r.Context(), callerKey{}, Caller{UserID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
