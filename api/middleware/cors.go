package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS answers preflight requests for every origin. Mobile clients and the
// share landing pages call the API from arbitrary hosts and no cookies are used.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Client-Info", "apikey"},
		MaxAge:         300,
	}).Handler
}
