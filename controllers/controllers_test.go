package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openmm_server/models"
)

func TestActorPrefersBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(ActorHeader, "header-user")

	got, err := actor(req, " body-user ")
	require.NoError(t, err)
	assert.Equal(t, "body-user", got)

	got, err = actor(req, "")
	require.NoError(t, err)
	assert.Equal(t, "header-user", got)

	_, err = actor(httptest.NewRequest(http.MethodPost, "/", nil), "")
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestProfileCountsLosses(t *testing.T) {
	p := profile("alice", models.RatingRecord{Rating: 90, Played: 5, Wins: 2, Hosted: 1})
	assert.Equal(t, profileResponse{Participant: "alice", Rating: 90, Played: 5, Wins: 2, Losses: 3, Hosted: 1}, p)
}
