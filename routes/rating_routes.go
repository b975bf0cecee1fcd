package routes

import (
	"openmm_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterRatingRoutes sets up the ledger under /api/communities/{community}/ratings
func RegisterRatingRoutes(r *mux.Router, controller *controllers.RatingController) {
	ratingRouter := communityRouter(r, "/ratings")
	ratingRouter.HandleFunc("", controller.Standings).Methods("GET")
	ratingRouter.HandleFunc("/{participant}", controller.Profile).Methods("GET")
	ratingRouter.HandleFunc("/{participant}", controller.EditStats).Methods("POST")
}
