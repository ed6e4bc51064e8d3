package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"github.com/subremind/backend/internal/contextkeys"
	"github.com/subremind/backend/internal/handler"
)

// Recovery catches panics and returns a 500 error instead of crashing the server.
func Recovery(log logrus.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(logrus.Fields{
						"panic":      err,
						"path":       r.URL.Path,
						"request_id": contextkeys.RequestIDFrom(r.Context()),
						"stack":      string(debug.Stack()),
					}).Error("panic recovered")
					handler.JSON(w, http.StatusInternalServerError, map[string]string{
						"error": "internal server error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
