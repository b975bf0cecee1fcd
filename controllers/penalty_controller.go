package controllers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"openmm_server/models"
	"openmm_server/services"
	"openmm_server/utils"
)

// PenaltyController handles suspensions
type PenaltyController struct {
	Penalties *services.PenaltyService
	Log       zerolog.Logger
	Clock     func() time.Time
}

func NewPenaltyController(penalties *services.PenaltyService, log zerolog.Logger) *PenaltyController {
	return &PenaltyController{Penalties: penalties, Log: log, Clock: time.Now}
}

type suspendPayload struct {
	Actor       string `json:"actor"`
	Participant string `json:"participant"`
	Duration    string `json:"duration"`
	Reason      string `json:"reason"`
}

type liftPayload struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// Suspend keeps a participant out of the queue for a while
func (pc *PenaltyController) Suspend(w http.ResponseWriter, r *http.Request) {
	var payload suspendPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}
	who, err := actor(r, payload.Actor)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if payload.Participant == "" {
		utils.WriteError(w, models.Reasonf(models.ErrValidation, "participant is required"))
		return
	}
	duration, err := utils.ParseDuration(payload.Duration)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	out, err := pc.Penalties.Suspend(r.Context(), who, community(r), payload.Participant, duration, payload.Reason)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	for _, adv := range out.Advisories {
		pc.Log.Warn().Err(adv).Str("participant", payload.Participant).Msg("platform effect failed")
	}
	utils.WriteJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"suspension": out.Suspension,
		"endsAt":     out.EndsAt,
		"advisories": out.Advisories.Strings(),
	})
}

// Lift ends a participant's suspension early
func (pc *PenaltyController) Lift(w http.ResponseWriter, r *http.Request) {
	var payload liftPayload
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &payload); err != nil {
			utils.WriteError(w, err)
			return
		}
	}
	who, err := actor(r, payload.Actor)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	participant := mux.Vars(r)["participant"]
	out, err := pc.Penalties.LiftManually(r.Context(), who, community(r), participant, payload.Reason)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	for _, adv := range out.Advisories {
		pc.Log.Warn().Err(adv).Str("participant", participant).Msg("platform effect failed")
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"lifted":     out.Lifted,
		"advisories": out.Advisories.Strings(),
	})
}

// History returns the participant's suspension records
func (pc *PenaltyController) History(w http.ResponseWriter, r *http.Request) {
	participant := mux.Vars(r)["participant"]
	history := pc.Penalties.History(community(r), participant)
	if history == nil {
		history = []models.Suspension{}
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"participant": participant,
		"suspended":   pc.Penalties.IsSuspended(community(r), participant, pc.Clock()),
		"history":     history,
	})
}
