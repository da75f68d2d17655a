package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// CORS allows the configured frontend origin to call the API with credentials.
func CORS(origin string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Access-Control-Allow-Headers, Authorization, X-Requested-With")
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				log.Debug("Handled CORS preflight", zap.String("path", r.URL.Path))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
