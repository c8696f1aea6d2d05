package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybuddy/internal/models"
)

func TestDistanceKm_IdenticalPointsIsZero(t *testing.T) {
	p := models.Coordinate{Latitude: 52.52, Longitude: 13.405}
	assert.Equal(t, 0.0, DistanceKm(p, p))
}

func TestDistanceKm_OneDegreeLatitudeAtEquator(t *testing.T) {
	a := models.Coordinate{Latitude: 0, Longitude: 0}
	b := models.Coordinate{Latitude: 1, Longitude: 0}
	// 6371 * pi / 180 = 111.19...
	assert.Equal(t, 111.2, DistanceKm(a, b))
	assert.InDelta(t, 111.19, GreatCircleKm(a, b), 0.01)
}

func TestDistanceKm_BerlinMunich(t *testing.T) {
	berlin := models.Coordinate{Latitude: 52.5200, Longitude: 13.4050}
	munich := models.Coordinate{Latitude: 48.1351, Longitude: 11.5820}
	assert.InDelta(t, 504, DistanceKm(berlin, munich), 2)
	assert.Equal(t, DistanceKm(berlin, munich), DistanceKm(munich, berlin))
}

func TestSubjectOverlap(t *testing.T) {
	assert.Equal(t, 0.0, SubjectOverlap(nil, nil))
	assert.Equal(t, 0.0, SubjectOverlap([]string{"Math"}, nil))
	assert.Equal(t, 1.0, SubjectOverlap([]string{"Math", "Physics"}, []string{"Physics", "Math"}))
	assert.Equal(t, 0.5, SubjectOverlap([]string{"Math", "Physics"}, []string{"Math"}))
	assert.InDelta(t, 1.0/3, SubjectOverlap([]string{"Math"}, []string{"Math", "Art", "Music"}), 1e-9)
}

func TestScore_Weights(t *testing.T) {
	user := []string{"Math", "Physics"}

	plain := models.BuddyCandidate{Subjects: []string{"Math"}}
	assert.Equal(t, 20, Score(user, plain))

	tutor := models.BuddyCandidate{Subjects: []string{"Math", "Physics"}, IsTutor: true}
	assert.Equal(t, 60, Score(user, tutor))

	best := models.BuddyCandidate{Subjects: []string{"Math", "Physics"}, IsTutor: true, Verified: true, AverageRating: 4.5}
	assert.Equal(t, 80, Score(user, best), "maximum reachable score with current weights")

	// Bonus für Bewertung und Verifizierung zählt nur für Tutoren
	notTutor := models.BuddyCandidate{Subjects: []string{"Art"}, Verified: true, AverageRating: 5}
	assert.Equal(t, 0, Score(user, notTutor))

	rounding := models.BuddyCandidate{Subjects: []string{"Math", "Art", "Music"}}
	assert.Equal(t, 13, Score([]string{"Math"}, rounding), "40/3 rounds to 13")
}

func TestScore_ClampedToRange(t *testing.T) {
	assert.Equal(t, 100, clamp(140))
	assert.Equal(t, 0, clamp(-3))
	assert.Equal(t, 55, clamp(55))

	for _, c := range []models.BuddyCandidate{
		{},
		{IsTutor: true, Verified: true, AverageRating: 5, Subjects: []string{"a"}},
	} {
		s := Score([]string{"a"}, c)
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, MaxScore)
	}
}

func TestAnnotate_KeepsOrderAndAddsFields(t *testing.T) {
	me := models.Coordinate{Latitude: 0, Longitude: 0}
	candidates := []models.BuddyCandidate{
		{ID: "far", Location: models.Coordinate{Latitude: 1, Longitude: 0}, Subjects: []string{"Math"}},
		{ID: "near", Location: me, Subjects: []string{"Art"}, IsTutor: true},
	}
	out := Annotate(me, []string{"Math"}, candidates)
	require.Len(t, out, 2)
	assert.Equal(t, "far", out[0].ID)
	assert.Equal(t, 111.2, out[0].DistanceKm)
	assert.Equal(t, 40, out[0].MatchScore)
	assert.Equal(t, "near", out[1].ID)
	assert.Equal(t, 0.0, out[1].DistanceKm)
	assert.Equal(t, 20, out[1].MatchScore)

	assert.Empty(t, Annotate(me, nil, nil))
}
