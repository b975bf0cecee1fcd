package services

import (
	"math"

	"openmm_server/models"
)

// ExpectedScore is the Elo win expectation of rating against avgOpp.
func ExpectedScore(rating, avgOpp float64) float64 {
	return 1 / (1 + math.Pow(10, (avgOpp-rating)/400))
}

// Predict freezes the win and loss deltas of every participant. Each player
// is scored against the mean rating of the opposing side. Values are rounded
// half away from zero.
func Predict(red, blue []RatedParticipant, k float64) (models.Prediction, error) {
	if len(red) == 0 || len(blue) == 0 {
		return nil, models.Reasonf(models.ErrValidation, "both sides need at least one participant")
	}
	avgRed := mean(red)
	avgBlue := mean(blue)
	return models.Prediction{
		models.SideRed:  sideDeltas(red, avgBlue, k),
		models.SideBlue: sideDeltas(blue, avgRed, k),
	}, nil
}

func sideDeltas(side []RatedParticipant, avgOpp, k float64) map[string]models.PredictedDelta {
	out := make(map[string]models.PredictedDelta, len(side))
	for _, p := range side {
		e := ExpectedScore(float64(p.Rating), avgOpp)
		out[p.ID] = models.PredictedDelta{
			OnWin:  int(math.Round(k * (1 - e))),
			OnLoss: int(math.Round(k * (0 - e))),
		}
	}
	return out
}

func mean(rs []RatedParticipant) float64 {
	sum := 0
	for _, r := range rs {
		sum += r.Rating
	}
	return float64(sum) / float64(len(rs))
}
