package storage

import (
	"context"
	"encoding/json"
	"math"

	"github.com/google/uuid"

	"studybuddy/internal/matching"
	"studybuddy/internal/models"
)

// kmPerDegree ist die Länge eines Breitengrads auf der Erdkugel
const kmPerDegree = matching.EarthRadiusKm * math.Pi / 180

// NearbyQuery beschreibt die "nearby"-Abfrage
type NearbyQuery struct {
	Center        models.Coordinate
	RadiusKm      float64
	ExcludeUserID string
	TutorsOnly    bool
	Limit         int
}

// SaveBuddy legt den Lernpartner-Eintrag eines Nutzers an oder aktualisiert ihn
func (s *SQLiteStorage) SaveBuddy(ctx context.Context, b *models.BuddyCandidate) error {
	if b.ID == "" {
		if existing, err := s.GetBuddy(ctx, b.UserID); err == nil {
			b.ID = existing.ID
		} else {
			b.ID = uuid.New().String()
		}
	}
	b.LastActive = s.stamp(b.LastActive)
	subjects, _ := json.Marshal(nonNil(b.Subjects))
	expertise, _ := json.Marshal(nonNil(b.SubjectsExpertise))

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO study_buddies (id, user_id, latitude, longitude, subjects, is_available, last_active,
			is_tutor, hourly_rate, expertise_level, verified, subjects_expertise, average_rating, review_count,
			bio, preferred_study_time, learning_style)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.UserID, b.Location.Latitude, b.Location.Longitude, string(subjects), b.IsAvailable, b.LastActive,
		b.IsTutor, b.HourlyRate, b.ExpertiseLevel, b.Verified, string(expertise), b.AverageRating, b.ReviewCount,
		b.Bio, b.PreferredStudyTime, b.LearningStyle)
	return err
}

const buddyColumns = `b.id, b.user_id, b.latitude, b.longitude, COALESCE(b.subjects, '[]'), b.is_available, b.last_active,
	b.is_tutor, b.hourly_rate, COALESCE(b.expertise_level, ''), b.verified, COALESCE(b.subjects_expertise, '[]'),
	b.average_rating, b.review_count, COALESCE(b.bio, ''), COALESCE(b.preferred_study_time, ''),
	COALESCE(b.learning_style, ''), COALESCE(p.username, '')`

func scanBuddy(row interface{ Scan(...any) error }) (models.BuddyCandidate, error) {
	var b models.BuddyCandidate
	var subjects, expertise string
	err := row.Scan(&b.ID, &b.UserID, &b.Location.Latitude, &b.Location.Longitude, &subjects, &b.IsAvailable,
		&b.LastActive, &b.IsTutor, &b.HourlyRate, &b.ExpertiseLevel, &b.Verified, &expertise,
		&b.AverageRating, &b.ReviewCount, &b.Bio, &b.PreferredStudyTime, &b.LearningStyle, &b.Username)
	if err != nil {
		return b, err
	}
	json.Unmarshal([]byte(subjects), &b.Subjects)
	json.Unmarshal([]byte(expertise), &b.SubjectsExpertise)
	return b, nil
}

func (s *SQLiteStorage) GetBuddy(ctx context.Context, userID string) (*models.BuddyCandidate, error) {
	b, err := scanBuddy(s.db.QueryRowContext(ctx, `
		SELECT `+buddyColumns+` FROM study_buddies b LEFT JOIN profiles p ON p.id = b.user_id
		WHERE b.user_id = ?
	`, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// FindNearbyBuddies grenzt per Bounding-Box in SQL vor und filtert dann exakt
// über die Großkreisdistanz. Nur verfügbare Lernpartner, der Aufrufer selbst nie.
func (s *SQLiteStorage) FindNearbyBuddies(ctx context.Context, q NearbyQuery) ([]models.BuddyCandidate, error) {
	if q.RadiusKm <= 0 {
		return []models.BuddyCandidate{}, nil
	}
	latDelta := q.RadiusKm / kmPerDegree
	minLat, maxLat := q.Center.Latitude-latDelta, q.Center.Latitude+latDelta

	// Längengrad-Fenster nur, solange es nicht über Pol oder Datumsgrenze reicht
	minLon, maxLon := -180.0, 180.0
	if cosLat := math.Cos(q.Center.Latitude * math.Pi / 180); cosLat > 0.01 {
		lonDelta := q.RadiusKm / (kmPerDegree * cosLat)
		if q.Center.Longitude-lonDelta >= -180 && q.Center.Longitude+lonDelta <= 180 {
			minLon, maxLon = q.Center.Longitude-lonDelta, q.Center.Longitude+lonDelta
		}
	}

	query := `
		SELECT ` + buddyColumns + ` FROM study_buddies b LEFT JOIN profiles p ON p.id = b.user_id
		WHERE b.is_available = 1
		  AND b.user_id != ?
		  AND b.latitude BETWEEN ? AND ?
		  AND b.longitude BETWEEN ? AND ?`
	args := []any{q.ExcludeUserID, minLat, maxLat, minLon, maxLon}
	if q.TutorsOnly {
		query += ` AND b.is_tutor = 1`
	}
	query += ` ORDER BY b.last_active DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buddies := []models.BuddyCandidate{}
	for rows.Next() {
		b, err := scanBuddy(rows)
		if err != nil {
			return nil, err
		}
		if matching.GreatCircleKm(q.Center, b.Location) > q.RadiusKm {
			continue
		}
		buddies = append(buddies, b)
		if q.Limit > 0 && len(buddies) >= q.Limit {
			break
		}
	}
	return buddies, rows.Err()
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
