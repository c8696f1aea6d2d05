package timer

import (
	"context"
	"time"

	"studybuddy/internal/models"
)

// EventType benennt ein Timer-Ereignis
type EventType string

const (
	EventTick            EventType = "tick"
	EventStarted         EventType = "started"
	EventPaused          EventType = "paused"
	EventReset           EventType = "reset"
	EventSubjectSelected EventType = "subject_selected"
	EventSettingsChanged EventType = "settings_changed"
	EventStudyFinished   EventType = "study_finished"
	EventSessionSaved    EventType = "session_saved"
	EventSessionFailed   EventType = "session_failed"
	EventBreakStarted    EventType = "break_started"
	EventBreakSkipped    EventType = "break_skipped"
	EventBreakFinished   EventType = "break_finished"
)

// Event wird an Beobachter (z.B. den Realtime-Hub) gemeldet
type Event struct {
	Type    EventType            `json:"type"`
	UserID  string               `json:"user_id"`
	State   State                `json:"state"`
	Session *models.StudySession `json:"session,omitempty"`
	Reward  *models.RewardState  `json:"reward,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// Speichern aus der Taktquelle heraus hängt an keinem Request-Kontext
func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
