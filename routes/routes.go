package routes

import (
	"openmm_server/controllers"

	"github.com/gorilla/mux"
)

// CommunityPrefix is the path prefix of every community-scoped route.
const CommunityPrefix = "/api/communities/{community}"

// RegisterRoutes sets up the root routes for the application
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/welcome", controllers.WelcomeHandler).Methods("GET")
	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
}

func communityRouter(r *mux.Router, path string) *mux.Router {
	return r.PathPrefix(CommunityPrefix + path).Subrouter()
}
