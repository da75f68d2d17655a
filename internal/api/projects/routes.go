package projects

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Vasu1712/stemhub-backend/internal/middleware"
)

// RegisterProjectRoutes registers all project-related HTTP and WebSocket routes.
func RegisterProjectRoutes(r *mux.Router, handler *ProjectHandler, auth *middleware.Authenticator) {
	private := func(fn http.HandlerFunc) http.Handler {
		return auth.Require(fn)
	}

	api := r.PathPrefix("/api/v1/projects").Subrouter()

	// Public reads, plus voting, which must not carry a session.
	api.HandleFunc("/{id}", handler.GetProject).Methods(http.MethodGet)
	api.HandleFunc("/{id}/queue", handler.Tally).Methods(http.MethodGet)
	api.HandleFunc("/{id}/members", handler.Members).Methods(http.MethodGet)
	api.HandleFunc("/{id}/votes", handler.CastVote).Methods(http.MethodPost)

	// Authenticated routes; the caller's user id comes from the bearer token.
	api.Handle("", private(handler.CreateProject)).Methods(http.MethodPost)
	api.Handle("/{id}", private(handler.DeleteProject)).Methods(http.MethodDelete)
	api.Handle("/{id}/collaborators", private(handler.AddCollaborator)).Methods(http.MethodPost)
	api.Handle("/{id}/stems", private(handler.SubmitStem)).Methods(http.MethodPost)
	api.Handle("/{id}/identities", private(handler.RegisterIdentity)).Methods(http.MethodPost)
	api.Handle("/{id}/identities", private(handler.RevokeIdentity)).Methods(http.MethodDelete)
	api.Handle("/{id}/promote", private(handler.Promote)).Methods(http.MethodPost)

	r.HandleFunc("/ws/projects", handler.ServeWS)
}
