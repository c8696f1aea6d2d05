package rewards

import (
	"sync"

	"studybuddy/internal/models"
)

// Book ist der lokale Spiegel der Sitzungen eines Nutzers.
// Jede Änderung läuft über Recompute, der RewardState wird nie direkt verändert.
type Book struct {
	mu       sync.RWMutex
	sessions []models.StudySession
	state    models.RewardState
}

// NewBook erstellt ein leeres Buch (Level 1, 0 Punkte)
func NewBook() *Book {
	b := &Book{}
	b.state = Recompute(nil)
	return b
}

// Load ersetzt den Spiegel durch einen frisch geladenen Bestand
func (b *Book) Load(sessions []models.StudySession) models.RewardState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = append([]models.StudySession(nil), sessions...)
	b.state = Recompute(b.sessions)
	return b.state
}

// Add hängt eine bereits persistierte Sitzung an.
// Eine bekannte ID wird nicht doppelt gezählt.
func (b *Book) Add(s models.StudySession) models.RewardState {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.sessions {
		if existing.ID == s.ID {
			return b.state
		}
	}
	b.sessions = append([]models.StudySession{s}, b.sessions...)
	b.state = Recompute(b.sessions)
	return b.state
}

// Complete setzt completed=true für eine Sitzung; bereits abgeschlossene bleiben unverändert
func (b *Book) Complete(id string) (models.RewardState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.sessions {
		if b.sessions[i].ID != id {
			continue
		}
		if b.sessions[i].Completed {
			return b.state, false
		}
		b.sessions[i].Completed = true
		b.state = Recompute(b.sessions)
		return b.state, true
	}
	return b.state, false
}

// State gibt den aktuellen RewardState zurück
func (b *Book) State() models.RewardState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Sessions gibt eine Kopie der Sitzungen zurück (neueste zuerst)
func (b *Book) Sessions() []models.StudySession {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]models.StudySession(nil), b.sessions...)
}

// Reset leert das Buch, z.B. beim Abmelden oder zwischen Tests
func (b *Book) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = nil
	b.state = Recompute(nil)
}
