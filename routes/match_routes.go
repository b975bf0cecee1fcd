package routes

import (
	"openmm_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterMatchRoutes sets up the match lifecycle under /api/communities/{community}/matches
func RegisterMatchRoutes(r *mux.Router, controller *controllers.MatchController) {
	matchRouter := communityRouter(r, "/matches")

	matchRouter.HandleFunc("", controller.CreateMatch).Methods("POST")
	matchRouter.HandleFunc("", controller.ListMatches).Methods("GET")
	matchRouter.HandleFunc("/{id}", controller.GetMatch).Methods("GET")
	matchRouter.HandleFunc("/{id}/resolve", controller.ResolveMatch).Methods("POST")
	matchRouter.HandleFunc("/{id}/cancel", controller.CancelMatch).Methods("POST")
	matchRouter.HandleFunc("/{id}/swap", controller.SwapWinner).Methods("POST")
	matchRouter.HandleFunc("/{id}/replace", controller.ReplacePlayer).Methods("POST")
}
