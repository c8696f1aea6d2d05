package models

import "time"

// DateLayout ist das Kalenderformat für Sitzungen (yyyy-MM-dd)
const DateLayout = "2006-01-02"

// Subject repräsentiert ein Studienfach eines Nutzers
type Subject struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Semester    string    `json:"semester"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// StudySession repräsentiert eine abgeschlossene oder nachgetragene Lernsitzung
type StudySession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SubjectID string    `json:"subject_id"`
	Duration  int       `json:"duration"` // Sekunden
	Date      string    `json:"date"`     // yyyy-MM-dd
	Completed bool      `json:"completed"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// RewardState ist die abgeleitete Sicht auf Punkte und Level
type RewardState struct {
	TotalPoints int  `json:"total_points"`
	Level       int  `json:"level"`
	AIEnabled   bool `json:"ai_enabled"`
}

// Goals enthält die Lernziele in Minuten
type Goals struct {
	Daily  int `json:"daily"`
	Weekly int `json:"weekly"`
}

// GoalProgress zeigt den Fortschritt gegenüber den Lernzielen
type GoalProgress struct {
	Goals
	CurrentDaily  int `json:"current_daily"`
	CurrentWeekly int `json:"current_weekly"`
}

// DaySummary fasst die Sitzungen eines Kalendertags zusammen
type DaySummary struct {
	Date        string         `json:"date"`
	Sessions    []StudySession `json:"sessions"`
	TotalPoints int            `json:"total_points"`
}

// Coordinate ist eine geografische Position in Dezimalgrad
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BuddyCandidate ist eine Zeile aus der "nearby"-Abfrage (nur lesend)
type BuddyCandidate struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Location           Coordinate `json:"location"`
	Subjects           []string   `json:"subjects"`
	IsAvailable        bool       `json:"is_available"`
	LastActive         time.Time  `json:"last_active"`
	IsTutor            bool       `json:"is_tutor"`
	HourlyRate         float64    `json:"hourly_rate"`
	ExpertiseLevel     string     `json:"expertise_level"`
	Verified           bool       `json:"verified"`
	SubjectsExpertise  []string   `json:"subjects_expertise,omitempty"`
	AverageRating      float64    `json:"average_rating"`
	ReviewCount        int        `json:"review_count"`
	Bio                string     `json:"bio,omitempty"`
	PreferredStudyTime string     `json:"preferred_study_time,omitempty"`
	LearningStyle      string     `json:"learning_style,omitempty"`
	Username           string     `json:"username,omitempty"`
}

// ScoredBuddy ist ein Kandidat mit den beiden abgeleiteten Feldern
type ScoredBuddy struct {
	BuddyCandidate
	DistanceKm float64 `json:"distance_km"`
	MatchScore int     `json:"match_score"`
}

// Profile repräsentiert das öffentliche Profil eines Nutzers
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Material repräsentiert eine hochgeladene Lerndatei
type Material struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SubjectID   string    `json:"subject_id,omitempty"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Path        string    `json:"path"`
	URL         string    `json:"url"`
	PageCount   int       `json:"page_count,omitempty"`
	Preview     string    `json:"preview,omitempty"`
	Views       int       `json:"views"`
	Downloads   int       `json:"downloads"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChatRoom repräsentiert einen Chat-Raum
type ChatRoom struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"` // direct, group
	Participants    []string   `json:"participants"`
	LastMessage     string     `json:"last_message,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Message repräsentiert eine Chat-Nachricht in einem Raum
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchResult ist ein organisches Web-Ergebnis
type SearchResult struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

// ImageResult ist ein Bild-Ergebnis
type ImageResult struct {
	Title        string `json:"title"`
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Source       string `json:"source"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// SearchResponse ist eine Ergebnisseite für Web- oder Bildsuche
type SearchResponse struct {
	Type         string         `json:"type"` // web, image
	Results      []SearchResult `json:"results,omitempty"`
	Images       []ImageResult  `json:"images,omitempty"`
	TotalResults int            `json:"total_results"`
	Fallback     bool           `json:"fallback"`
}
