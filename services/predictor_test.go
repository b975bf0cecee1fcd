package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openmm_server/models"
)

func TestExpectedScore(t *testing.T) {
	assert.InDelta(t, 0.5287, ExpectedScore(120, 100), 0.0001)
	assert.InDelta(t, 0.4713, ExpectedScore(80, 100), 0.0001)
	assert.Equal(t, 0.5, ExpectedScore(100, 100))
}

func TestPredictReferenceRoster(t *testing.T) {
	p, err := Predict(rated("A", 120, "D", 80), rated("B", 100, "C", 100), models.DefaultK)
	require.NoError(t, err)

	assert.Equal(t, models.PredictedDelta{OnWin: 14, OnLoss: -16}, p[models.SideRed]["A"])
	assert.Equal(t, models.PredictedDelta{OnWin: 16, OnLoss: -14}, p[models.SideRed]["D"])
	assert.Equal(t, models.PredictedDelta{OnWin: 15, OnLoss: -15}, p[models.SideBlue]["B"])
	assert.Equal(t, models.PredictedDelta{OnWin: 15, OnLoss: -15}, p[models.SideBlue]["C"])
}

func TestPredictRoundsHalfAwayFromZero(t *testing.T) {
	// E = 0.5 exactly, so K=1 gives +0.5 and -0.5
	p, err := Predict(rated("a", 100), rated("b", 100), 1)
	require.NoError(t, err)
	assert.Equal(t, models.PredictedDelta{OnWin: 1, OnLoss: -1}, p[models.SideRed]["a"])
	assert.Equal(t, models.PredictedDelta{OnWin: 1, OnLoss: -1}, p[models.SideBlue]["b"])

	// K=3 gives +1.5 and -1.5
	p, err = Predict(rated("a", 100), rated("b", 100), 3)
	require.NoError(t, err)
	assert.Equal(t, models.PredictedDelta{OnWin: 2, OnLoss: -2}, p[models.SideRed]["a"])
}

func TestPredictSigns(t *testing.T) {
	ratings := []int{-400, -50, 0, 37, 100, 260, 900, 2400}
	for _, a := range ratings {
		for _, b := range ratings {
			p, err := Predict(rated("a", a), rated("b", b), models.DefaultK)
			require.NoError(t, err)
			d := p[models.SideRed]["a"]
			assert.GreaterOrEqual(t, d.OnWin, 0)
			assert.LessOrEqual(t, d.OnLoss, 0)
			assert.LessOrEqual(t, d.OnWin-d.OnLoss, int(models.DefaultK)+1)
		}
	}
}

func TestPredictNeedsBothSides(t *testing.T) {
	_, err := Predict(nil, rated("b", 100), models.DefaultK)
	require.ErrorIs(t, err, models.ErrValidation)
}
