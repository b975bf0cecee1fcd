package controllers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"openmm_server/models"
	"openmm_server/utils"
)

// ActorHeader identifies the caller when the body carries no actor.
const ActorHeader = "X-Actor-Id"

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Welcome to the matchmaking server!"})
}

func community(r *http.Request) string {
	return mux.Vars(r)["community"]
}

// actor prefers the body field and falls back to the header.
func actor(r *http.Request, fromBody string) (string, error) {
	if a := strings.TrimSpace(fromBody); a != "" {
		return a, nil
	}
	if a := strings.TrimSpace(r.Header.Get(ActorHeader)); a != "" {
		return a, nil
	}
	return "", models.Reasonf(models.ErrValidation, "an actor is required")
}

// outcomeResponse is the body of every state-changing request.
type outcomeResponse struct {
	Match      *models.Match  `json:"match,omitempty"`
	Deltas     map[string]int `json:"deltas,omitempty"`
	Action     string         `json:"action,omitempty"`
	Advisories []string       `json:"advisories"`
}
