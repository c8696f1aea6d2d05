// Package matching bewertet Lernpartner aus der "nearby"-Abfrage.
// Alles hier ist reine Arithmetik über bereits geladene Zeilen.
package matching

import (
	"math"

	"studybuddy/internal/models"
)

// EarthRadiusKm ist der mittlere Erdradius
const EarthRadiusKm = 6371.0

// Gewichte des Match-Scores
const (
	SubjectWeight = 40.0
	TutorBonus    = 20.0
	VerifiedBonus = 10.0
	RatingBonus   = 10.0

	HighRating = 4.5
	MaxScore   = 100
)

// GreatCircleKm berechnet die Haversine-Distanz ungerundet
func GreatCircleKm(a, b models.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// DistanceKm ist die Haversine-Distanz auf eine Nachkommastelle gerundet
func DistanceKm(a, b models.Coordinate) float64 {
	return math.Round(GreatCircleKm(a, b)*10) / 10
}

// SubjectOverlap ist |Schnittmenge| / max(|userSubjects|, |candidateSubjects|).
// Zwei leere Listen ergeben 0.
func SubjectOverlap(userSubjects, candidateSubjects []string) float64 {
	denom := len(userSubjects)
	if len(candidateSubjects) > denom {
		denom = len(candidateSubjects)
	}
	if denom == 0 {
		return 0
	}

	mine := make(map[string]struct{}, len(userSubjects))
	for _, s := range userSubjects {
		mine[s] = struct{}{}
	}
	common := 0
	for _, s := range candidateSubjects {
		if _, ok := mine[s]; ok {
			common++
		}
	}
	return float64(common) / float64(denom)
}

// Score berechnet den Match-Score und begrenzt ihn explizit auf [0, MaxScore].
// Mit den aktuellen Gewichten ist das Maximum 80.
func Score(userSubjects []string, c models.BuddyCandidate) int {
	score := SubjectOverlap(userSubjects, c.Subjects) * SubjectWeight
	if c.IsTutor {
		score += TutorBonus
		if c.Verified {
			score += VerifiedBonus
		}
		if c.AverageRating >= HighRating {
			score += RatingBonus
		}
	}
	return clamp(int(math.Round(score)))
}

// Annotate ergänzt jeden Kandidaten um Distanz und Match-Score.
// Reihenfolge und Auswahl bleiben unverändert; das Filtern erledigt die Abfrage.
func Annotate(user models.Coordinate, userSubjects []string, candidates []models.BuddyCandidate) []models.ScoredBuddy {
	out := make([]models.ScoredBuddy, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, models.ScoredBuddy{
			BuddyCandidate: c,
			DistanceKm:     DistanceKm(user, c.Location),
			MatchScore:     Score(userSubjects, c),
		})
	}
	return out
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}
