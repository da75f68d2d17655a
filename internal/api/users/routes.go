package users

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Vasu1712/stemhub-backend/internal/middleware"
)

// RegisterUserRoutes registers the account routes. All of them require a token.
func RegisterUserRoutes(r *mux.Router, handler *UserHandler, auth *middleware.Authenticator) {
	r.Handle("/api/v1/users/me", auth.Require(http.HandlerFunc(handler.Me))).Methods(http.MethodGet)
}
