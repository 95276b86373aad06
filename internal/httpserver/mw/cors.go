package mw

import (
	"net/http"

	"github.com/go-chi/cors"
)

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsHeaders = []string{"Content-Type"}
)

// CORS opens the API to any origin. Every response, errors and 404s
// included, carries the same three Access-Control headers, and any OPTIONS
// request is answered with 204 before routing.
func CORS() func(http.Handler) http.Handler {
	handler := cors.Handler(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     corsMethods,
		AllowedHeaders:     corsHeaders,
		MaxAge:             300,
		OptionsPassthrough: true,
	})

	return func(next http.Handler) http.Handler {
		return handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// cors.Handler skips requests without an Origin header and echoes
			// the requested method on preflight; the board clients expect the
			// fixed set below on every response, so it is pinned here.
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
