package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"studybuddy/internal/models"
	"studybuddy/internal/rewards"
)

// === Fächer ===

func (h *Handler) GetSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.store.GetSubjects(r.Context(), userID(r))
	if err != nil {
		storeError(w, "Fächer", err)
		return
	}
	jsonResponse(w, subjects, http.StatusOK)
}

func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Category    string `json:"category"`
		Semester    string `json:"semester"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		errorResponse(w, "Name erforderlich", http.StatusBadRequest)
		return
	}

	subject := &models.Subject{
		ID:          uuid.New().String(),
		UserID:      userID(r),
		Name:        strings.TrimSpace(req.Name),
		Category:    req.Category,
		Semester:    req.Semester,
		Description: req.Description,
		CreatedAt:   h.now(),
	}
	if err := h.store.SaveSubject(r.Context(), subject); err != nil {
		storeError(w, "Fach", err)
		return
	}
	jsonResponse(w, subject, http.StatusCreated)
}

func (h *Handler) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSubject(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		storeError(w, "Fach", err)
		return
	}
	jsonResponse(w, map[string]string{"message": "Fach gelöscht"}, http.StatusOK)
}

// === Sitzungen & Kalender ===

func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.GetStudySessions(r.Context(), userID(r))
	if err != nil {
		storeError(w, "Sitzungen", err)
		return
	}
	jsonResponse(w, sessions, http.StatusOK)
}

// CreateSession trägt eine Sitzung manuell im Kalender ein
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubjectID       string `json:"subject_id"`
		DurationMinutes int    `json:"duration_minutes"`
		Date            string `json:"date"`
		Completed       *bool  `json:"completed"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.SubjectID == "" {
		errorResponse(w, "Fach erforderlich", http.StatusBadRequest)
		return
	}
	if req.DurationMinutes <= 0 {
		errorResponse(w, "Dauer muss positiv sein", http.StatusBadRequest)
		return
	}
	if req.Date == "" {
		req.Date = h.now().Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, req.Date); err != nil {
		errorResponse(w, "Datum im Format yyyy-MM-dd erwartet", http.StatusBadRequest)
		return
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}

	user := userID(r)
	if _, err := h.store.GetSubject(r.Context(), user, req.SubjectID); err != nil {
		storeError(w, "Fach", err)
		return
	}

	duration := req.DurationMinutes * 60
	session := &models.StudySession{
		ID:        uuid.New().String(),
		UserID:    user,
		SubjectID: req.SubjectID,
		Duration:  duration,
		Date:      req.Date,
		Completed: completed,
		Points:    rewards.Points(duration),
		CreatedAt: h.now(),
	}
	if err := h.store.SaveStudySession(r.Context(), session); err != nil {
		storeError(w, "Sitzung", err)
		return
	}
	if t, ok := h.timers.Lookup(user); ok {
		t.Book().Add(*session)
	}
	jsonResponse(w, session, http.StatusCreated)
}

// CompleteSession setzt completed von false auf true (idempotent)
func (h *Handler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	user, id := userID(r), mux.Vars(r)["id"]
	if err := h.store.CompleteStudySession(r.Context(), user, id); err != nil {
		storeError(w, "Sitzung", err)
		return
	}
	if t, ok := h.timers.Lookup(user); ok {
		t.Book().Complete(id)
	}
	session, err := h.store.GetStudySession(r.Context(), user, id)
	if err != nil {
		storeError(w, "Sitzung", err)
		return
	}
	jsonResponse(w, session, http.StatusOK)
}

// GetCalendar liefert die Sitzungen eines Tages samt Punktesumme
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.now().Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		errorResponse(w, "Datum im Format yyyy-MM-dd erwartet", http.StatusBadRequest)
		return
	}

	sessions, err := h.store.GetStudySessions(r.Context(), userID(r))
	if err != nil {
		storeError(w, "Sitzungen", err)
		return
	}
	jsonResponse(w, rewards.Day(sessions, date), http.StatusOK)
}

// === Ziele & Punkte ===

func (h *Handler) defaultGoals() models.Goals {
	return models.Goals{Daily: h.config.DailyGoal, Weekly: h.config.WeeklyGoal}
}

func (h *Handler) GetGoals(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	goals, err := h.store.GetGoals(r.Context(), user, h.defaultGoals())
	if err != nil {
		storeError(w, "Ziele", err)
		return
	}
	sessions, err := h.store.GetStudySessions(r.Context(), user)
	if err != nil {
		storeError(w, "Sitzungen", err)
		return
	}
	jsonResponse(w, rewards.Progress(sessions, goals, h.now()), http.StatusOK)
}

func (h *Handler) UpdateGoals(w http.ResponseWriter, r *http.Request) {
	var goals models.Goals
	if err := decodeJSON(r, &goals); err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if goals.Daily <= 0 || goals.Weekly <= 0 {
		errorResponse(w, "Ziele müssen positiv sein", http.StatusBadRequest)
		return
	}
	if err := h.store.SaveGoals(r.Context(), userID(r), goals); err != nil {
		storeError(w, "Ziele", err)
		return
	}
	h.GetGoals(w, r)
}

func (h *Handler) GetRewards(w http.ResponseWriter, r *http.Request) {
	state, _, err := h.rewardState(r.Context(), userID(r))
	if err != nil {
		storeError(w, "Punkte", err)
		return
	}
	jsonResponse(w, state, http.StatusOK)
}
