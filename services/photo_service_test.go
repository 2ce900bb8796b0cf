package services

import (
	"testing"

	"spark_server/models"

	"github.com/stretchr/testify/assert"
)

func TestDistinctCounterparts(t *testing.T) {
	matches := []models.Match{
		{MatchID: "m1", UserA: "me", UserB: "ana"},
		{MatchID: "m2", UserA: "ben", UserB: "me"},
		{MatchID: "m3", UserA: "me", UserB: "ana"}, // duplicate
		{MatchID: "m4", UserA: "me", UserB: "cat"},
	}

	assert.Equal(t, []string{"ana", "ben", "cat"}, distinctCounterparts(matches, "me", 10))
}

func TestDistinctCounterpartsCap(t *testing.T) {
	matches := []models.Match{
		{MatchID: "m1", UserA: "me", UserB: "ana"},
		{MatchID: "m2", UserA: "me", UserB: "ben"},
		{MatchID: "m3", UserA: "me", UserB: "cat"},
	}

	assert.Len(t, distinctCounterparts(matches, "me", 2), 2)
}

func TestDistinctCounterpartsSkipsSelfAndEmpty(t *testing.T) {
	matches := []models.Match{
		{MatchID: "m1", UserA: "me", UserB: "me"},
		{MatchID: "m2", UserA: "me", UserB: ""},
		{MatchID: "m3", UserA: "me", UserB: "ana"},
	}

	assert.Equal(t, []string{"ana"}, distinctCounterparts(matches, "me", 10))
}
