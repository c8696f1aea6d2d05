package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"studybuddy/internal/config"
	"studybuddy/internal/models"
	"studybuddy/internal/realtime"
	"studybuddy/internal/rewards"
	"studybuddy/internal/timer"
)

// newTimer baut den Timer eines Nutzers aus gespeicherten Einstellungen und Sitzungen
func (h *Handler) newTimer(ctx context.Context, user string) (*timer.Timer, error) {
	settings, err := h.store.GetTimerSettings(ctx, user, h.config.Timer)
	if err != nil {
		return nil, err
	}
	sessions, err := h.store.GetStudySessions(ctx, user)
	if err != nil {
		return nil, err
	}
	book := rewards.NewBook()
	book.Load(sessions)

	topic := realtime.TimerTopic(user)
	return timer.New(timer.Options{
		UserID:    user,
		Settings:  settings,
		Recorder:  h.store,
		Book:      book,
		Now:       h.now,
		NewTicker: h.newTicker,
		OnEvent: func(ev timer.Event) {
			if ev.Type == timer.EventSessionFailed {
				log.Printf("⚠️  Sitzung von %s nicht gespeichert: %s", user, ev.Error)
			}
			h.hub.Publish(topic, string(ev.Type), ev)
		},
	})
}

type timerResponse struct {
	State  timer.State        `json:"state"`
	Reward models.RewardState `json:"reward"`
}

func (h *Handler) timerFor(w http.ResponseWriter, r *http.Request) (*timer.Timer, bool) {
	t, err := h.timers.Get(r.Context(), userID(r))
	if err != nil {
		log.Printf("❌ Timer konnte nicht erstellt werden: %v", err)
		errorResponse(w, "Timer nicht verfügbar", http.StatusInternalServerError)
		return nil, false
	}
	return t, true
}

func writeTimer(w http.ResponseWriter, t *timer.Timer) {
	jsonResponse(w, timerResponse{State: t.State(), Reward: t.Book().State()}, http.StatusOK)
}

// timerError bildet Zustandsfehler auf 400 ab
func timerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timer.ErrNoSubject),
		errors.Is(err, timer.ErrOfferPending),
		errors.Is(err, timer.ErrNoOffer),
		errors.Is(err, timer.ErrRunning),
		errors.Is(err, timer.ErrNothingPending),
		errors.Is(err, config.ErrInvalidSettings):
		errorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, timer.ErrSaveInFlight):
		errorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, timer.ErrClosed):
		errorResponse(w, err.Error(), http.StatusServiceUnavailable)
	default:
		log.Printf("❌ Timer: %v", err)
		errorResponse(w, err.Error(), http.StatusBadGateway)
	}
}

// timerAction führt eine einfache Aktion aus und antwortet mit dem neuen Zustand
func (h *Handler) timerAction(action func(t *timer.Timer) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.timerFor(w, r)
		if !ok {
			return
		}
		if err := action(t); err != nil {
			timerError(w, err)
			return
		}
		writeTimer(w, t)
	}
}

func (h *Handler) GetTimer(w http.ResponseWriter, r *http.Request) {
	h.timerAction(func(*timer.Timer) error { return nil })(w, r)
}

func (h *Handler) SelectTimerSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubjectID string `json:"subject_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.SubjectID == "" {
		timerError(w, timer.ErrNoSubject)
		return
	}
	if _, err := h.store.GetSubject(r.Context(), userID(r), req.SubjectID); err != nil {
		storeError(w, "Fach", err)
		return
	}
	h.timerAction(func(t *timer.Timer) error { return t.SelectSubject(req.SubjectID) })(w, r)
}

func (h *Handler) StartTimer(w http.ResponseWriter, r *http.Request) {
	h.timerAction((*timer.Timer).Start)(w, r)
}

func (h *Handler) PauseTimer(w http.ResponseWriter, r *http.Request) {
	h.timerAction((*timer.Timer).Pause)(w, r)
}

func (h *Handler) ToggleTimer(w http.ResponseWriter, r *http.Request) {
	h.timerAction((*timer.Timer).Toggle)(w, r)
}

func (h *Handler) ResetTimer(w http.ResponseWriter, r *http.Request) {
	h.timerAction(func(t *timer.Timer) error { t.Reset(); return nil })(w, r)
}

func (h *Handler) AcceptBreak(w http.ResponseWriter, r *http.Request) {
	h.timerAction((*timer.Timer).AcceptBreak)(w, r)
}

func (h *Handler) SkipBreak(w http.ResponseWriter, r *http.Request) {
	h.timerAction((*timer.Timer).SkipBreak)(w, r)
}

// RetryTimer speichert eine fehlgeschlagene Sitzung erneut
func (h *Handler) RetryTimer(w http.ResponseWriter, r *http.Request) {
	h.timerAction(func(t *timer.Timer) error { return t.Retry(r.Context()) })(w, r)
}

func (h *Handler) UpdateTimerSettings(w http.ResponseWriter, r *http.Request) {
	var settings config.TimerSettings
	if err := decodeJSON(r, &settings); err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := settings.Validate(); err != nil {
		timerError(w, err)
		return
	}
	if err := h.store.SaveTimerSettings(r.Context(), userID(r), settings); err != nil {
		storeError(w, "Einstellungen", err)
		return
	}
	h.timerAction(func(t *timer.Timer) error { return t.UpdateSettings(settings) })(w, r)
}
