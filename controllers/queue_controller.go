package controllers

import (
	"net/http"

	"github.com/rs/zerolog"

	"openmm_server/models"
	"openmm_server/services"
	"openmm_server/utils"
)

// QueueController exposes the waiting queue and accepts voice transitions
type QueueController struct {
	Presence *services.PresenceService
	Log      zerolog.Logger
}

func NewQueueController(presence *services.PresenceService, log zerolog.Logger) *QueueController {
	return &QueueController{Presence: presence, Log: log}
}

// HandleVoice applies a voice room change reported by the platform
func (qc *QueueController) HandleVoice(w http.ResponseWriter, r *http.Request) {
	var ev models.VoiceTransition
	if err := utils.DecodeJSON(r, &ev); err != nil {
		utils.WriteError(w, err)
		return
	}
	ev.Community = community(r)
	out, err := qc.Presence.HandleTransition(r.Context(), ev)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	for _, adv := range out.Advisories {
		qc.Log.Warn().Err(adv).Str("participant", ev.Participant).Msg("platform effect failed")
	}
	utils.WriteJSONResponse(w, http.StatusOK, outcomeResponse{Action: out.Action, Advisories: out.Advisories.Strings()})
}

// GetQueue lists waiting participants, longest waiting first
func (qc *QueueController) GetQueue(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"queue": qc.Presence.Entries(community(r)),
	})
}
