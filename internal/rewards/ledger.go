// Package rewards leitet Punkte, Level und Lernziel-Fortschritt aus den Lernsitzungen ab.
//
// Es gibt genau eine Punkteformel (Points) und genau eine Aggregation (Recompute).
// Alle anderen Stellen, die Punkte brauchen, rufen diese beiden Funktionen auf.
package rewards

import (
	"time"

	"studybuddy/internal/models"
)

const (
	// PointsPerMinute sind die Punkte pro gelernter Minute
	PointsPerMinute = 2
	// PointsPerLevel sind die Punkte, die ein Level umfasst
	PointsPerLevel = 100
	// PointsForAI schaltet den KI-Tutor frei
	PointsForAI = 500
)

// Points berechnet die Punkte für eine Dauer in Sekunden: floor(sekunden/60 * PointsPerMinute).
func Points(durationSeconds int) int {
	if durationSeconds <= 0 {
		return 0
	}
	return durationSeconds * PointsPerMinute / 60
}

// Credited gibt die gutgeschriebenen Punkte einer Sitzung zurück (0 wenn nicht abgeschlossen)
func Credited(s models.StudySession) int {
	if !s.Completed {
		return 0
	}
	return Points(s.Duration)
}

// Recompute faltet die Sitzungen zu einem RewardState.
// Keine Seiteneffekte; Reihenfolge und wiederholte Aufrufe ändern das Ergebnis nicht.
func Recompute(sessions []models.StudySession) models.RewardState {
	total := 0
	for _, s := range sessions {
		total += Credited(s)
	}
	return models.RewardState{
		TotalPoints: total,
		Level:       total/PointsPerLevel + 1,
		AIEnabled:   total >= PointsForAI,
	}
}

// Progress berechnet den Fortschritt gegenüber den Lernzielen.
// Gezählt werden abgeschlossene Sitzungen von heute und der laufenden ISO-Woche (ab Montag).
func Progress(sessions []models.StudySession, goals models.Goals, now time.Time) models.GoalProgress {
	today := now.Format(models.DateLayout)
	year, week := now.ISOWeek()

	p := models.GoalProgress{Goals: goals}
	for _, s := range sessions {
		if !s.Completed {
			continue
		}
		d, err := time.ParseInLocation(models.DateLayout, s.Date, now.Location())
		if err != nil {
			continue
		}
		minutes := s.Duration / 60
		if s.Date == today {
			p.CurrentDaily += minutes
		}
		if y, w := d.ISOWeek(); y == year && w == week {
			p.CurrentWeekly += minutes
		}
	}
	return p
}

// Day liefert die Sitzungen eines Kalendertags samt gutgeschriebener Punktesumme
func Day(sessions []models.StudySession, date string) models.DaySummary {
	summary := models.DaySummary{Date: date, Sessions: []models.StudySession{}}
	for _, s := range sessions {
		if s.Date != date {
			continue
		}
		summary.Sessions = append(summary.Sessions, s)
		summary.TotalPoints += Credited(s)
	}
	return summary
}
