package routes

import (
	"openmm_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterQueueRoutes sets up voice intake and the queue listing
func RegisterQueueRoutes(r *mux.Router, controller *controllers.QueueController) {
	router := communityRouter(r, "")
	router.HandleFunc("/voice", controller.HandleVoice).Methods("POST")
	router.HandleFunc("/queue", controller.GetQueue).Methods("GET")
}
