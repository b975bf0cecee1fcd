package controllers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"openmm_server/models"
	"openmm_server/services"
	"openmm_server/utils"
)

// MatchController handles HTTP requests for the match lifecycle
type MatchController struct {
	MatchService *services.MatchService
	Log          zerolog.Logger
}

// NewMatchController creates a new MatchController instance
func NewMatchController(matchService *services.MatchService, log zerolog.Logger) *MatchController {
	return &MatchController{MatchService: matchService, Log: log}
}

type createMatchPayload struct {
	Actor string `json:"actor"`
	Size  int    `json:"size"`
	Link  string `json:"link"`
}

type resolvePayload struct {
	Actor  string `json:"actor"`
	Winner string `json:"winner"`
}

type cancelPayload struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

type replacePayload struct {
	Actor    string `json:"actor"`
	Outgoing string `json:"outgoing"`
	Incoming string `json:"incoming"`
}

type actorPayload struct {
	Actor string `json:"actor"`
}

// CreateMatch starts a match hosted by the actor
func (mc *MatchController) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var payload createMatchPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}
	host, err := actor(r, payload.Actor)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	out, err := mc.MatchService.CreateMatch(r.Context(), services.CreateMatchRequest{
		Community: community(r),
		Host:      host,
		Size:      payload.Size,
		Link:      payload.Link,
	})
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	mc.respond(w, http.StatusCreated, out)
}

// ListMatches returns the community's live and correctable matches
func (mc *MatchController) ListMatches(w http.ResponseWriter, r *http.Request) {
	matches := mc.MatchService.List(community(r))
	if matches == nil {
		matches = []*models.Match{}
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// GetMatch returns one match
func (mc *MatchController) GetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := mc.MatchService.Get(community(r), mux.Vars(r)["id"])
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, m)
}

// ResolveMatch records the winning side
func (mc *MatchController) ResolveMatch(w http.ResponseWriter, r *http.Request) {
	var payload resolvePayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}
	who, err := actor(r, payload.Actor)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	winner, err := models.ParseSide(payload.Winner)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	out, err := mc.MatchService.ResolveMatch(r.Context(), who, community(r), mux.Vars(r)["id"], winner)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	mc.respond(w, http.StatusOK, out)
}

// CancelMatch ends an active match without rating changes
func (mc *MatchController) CancelMatch(w http.ResponseWriter, r *http.Request) {
	var payload cancelPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}
	who, err := actor(r, payload.Actor)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	out, err := mc.MatchService.CancelMatch(r.Context(), who, community(r), mux.Vars(r)["id"], payload.Reason)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	mc.respond(w, http.StatusOK, out)
}

// SwapWinner flips the result of a resolved match
func (mc *MatchController) SwapWinner(w http.ResponseWriter, r *http.Request) {
	var payload actorPayload
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
	out, err := mc.MatchService.SwapWinner(r.Context(), who, community(r), mux.Vars(r)["id"])
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	mc.respond(w, http.StatusOK, out)
}

// ReplacePlayer substitutes a queued participant for a rostered one
func (mc *MatchController) ReplacePlayer(w http.ResponseWriter, r *http.Request) {
	var payload replacePayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}
	who, err := actor(r, payload.Actor)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	out, err := mc.MatchService.ReplacePlayer(r.Context(), who, community(r), mux.Vars(r)["id"], payload.Outgoing, payload.Incoming)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	mc.respond(w, http.StatusOK, out)
}

func (mc *MatchController) respond(w http.ResponseWriter, status int, out *services.MatchOutcome) {
	for _, adv := range out.Advisories {
		mc.Log.Warn().Err(adv).Str("match", out.Match.ID).Msg("platform effect failed")
	}
	utils.WriteJSONResponse(w, status, outcomeResponse{
		Match:      out.Match,
		Deltas:     out.Deltas,
		Advisories: out.Advisories.Strings(),
	})
}
