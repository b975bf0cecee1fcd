package routes

import (
	"openmm_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterPenaltyRoutes sets up suspensions under /api/communities/{community}/penalties
func RegisterPenaltyRoutes(r *mux.Router, controller *controllers.PenaltyController) {
	penaltyRouter := communityRouter(r, "/penalties")
	penaltyRouter.HandleFunc("", controller.Suspend).Methods("POST")
	penaltyRouter.HandleFunc("/{participant}", controller.Lift).Methods("DELETE")
	penaltyRouter.HandleFunc("/{participant}", controller.History).Methods("GET")
}
