package controllers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"openmm_server/models"
	"openmm_server/services"
	"openmm_server/utils"
)

// RatingController serves the rating ledger
type RatingController struct {
	Ledger       *services.LedgerService
	Capabilities services.Capabilities
}

func NewRatingController(ledger *services.LedgerService, caps services.Capabilities) *RatingController {
	return &RatingController{Ledger: ledger, Capabilities: caps}
}

type profileResponse struct {
	Participant string `json:"participant"`
	Rating      int    `json:"elo"`
	Played      int    `json:"played"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Hosted      int    `json:"hosted"`
}

type editStatsPayload struct {
	Actor string           `json:"actor"`
	Mode  string           `json:"mode"`
	Stats models.StatDelta `json:"stats"`
}

// Standings lists every record, highest rating first
func (rc *RatingController) Standings(w http.ResponseWriter, r *http.Request) {
	standings, err := rc.Ledger.Standings(r.Context(), community(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"standings": standings})
}

// Profile returns one participant's record
func (rc *RatingController) Profile(w http.ResponseWriter, r *http.Request) {
	participant := mux.Vars(r)["participant"]
	rec, err := rc.Ledger.Read(r.Context(), community(r), participant)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, profile(participant, rec))
}

// EditStats adds to or overwrites a participant's counters. Moderators only.
func (rc *RatingController) EditStats(w http.ResponseWriter, r *http.Request) {
	var payload editStatsPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}
	who, err := actor(r, payload.Actor)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if !rc.Capabilities.HasModerationCapability(r.Context(), community(r), who) {
		utils.WriteError(w, models.Reasonf(models.ErrValidation, "%s needs the moderation capability to edit stats", who))
		return
	}
	var mode models.ApplyMode
	switch payload.Mode {
	case "", "add":
		mode = models.ApplyAdd
	case "set":
		mode = models.ApplySet
	default:
		utils.WriteError(w, models.Reasonf(models.ErrValidation, "unknown mode %q, expected add or set", payload.Mode))
		return
	}
	if len(payload.Stats) == 0 {
		utils.WriteError(w, models.Reasonf(models.ErrValidation, "no stats to edit"))
		return
	}
	if unknown := payload.Stats.Unknown(); len(unknown) > 0 {
		reasons := make([]string, len(unknown))
		for i, stat := range unknown {
			reasons[i] = fmt.Sprintf("unknown stat %q, expected elo, played, wins or hosted", stat)
		}
		utils.WriteError(w, models.Reasons(models.ErrValidation, reasons...))
		return
	}
	participant := mux.Vars(r)["participant"]
	rec, err := rc.Ledger.Apply(r.Context(), community(r), participant, payload.Stats, mode)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	resp := map[string]interface{}{"profile": profile(participant, rec), "advisories": []string{}}
	if err := rc.Ledger.Save(r.Context(), community(r)); err != nil {
		resp["advisories"] = []string{(&models.EffectError{Op: "save-ledger", Err: err}).Error()}
	}
	utils.WriteJSONResponse(w, http.StatusOK, resp)
}

func profile(participant string, rec models.RatingRecord) profileResponse {
	return profileResponse{
		Participant: participant,
		Rating:      rec.Rating,
		Played:      rec.Played,
		Wins:        rec.Wins,
		Losses:      rec.Losses(),
		Hosted:      rec.Hosted,
	}
}
