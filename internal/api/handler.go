package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"studybuddy/internal/auth"
	"studybuddy/internal/config"
	"studybuddy/internal/llm"
	"studybuddy/internal/models"
	"studybuddy/internal/objectstore"
	"studybuddy/internal/realtime"
	"studybuddy/internal/rewards"
	"studybuddy/internal/search"
	"studybuddy/internal/storage"
	"studybuddy/internal/timer"
)

// Deps sind die Abhängigkeiten des Handlers
type Deps struct {
	Store     storage.Storage
	Bucket    *objectstore.Bucket
	Search    *search.Service
	LLM       llm.Provider
	Config    *config.Config
	Verifier  auth.Verifier
	NewTicker timer.TickerFunc
	Now       func() time.Time
}

// Handler verwaltet alle API-Endpunkte
type Handler struct {
	store     storage.Storage
	bucket    *objectstore.Bucket
	search    *search.Service
	hub       *realtime.Hub
	llm       llm.Provider
	assistant *llm.Assistant
	config    *config.Config
	verifier  auth.Verifier
	timers    *timer.Registry
	newTicker timer.TickerFunc
	now       func() time.Time
}

// NewHandler erstellt einen neuen API-Handler
func NewHandler(d Deps) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &Handler{
		store:     d.Store,
		bucket:    d.Bucket,
		search:    d.Search,
		llm:       d.LLM,
		config:    d.Config,
		verifier:  d.Verifier,
		newTicker: d.NewTicker,
		now:       d.Now,
	}
	if d.LLM != nil {
		h.assistant = llm.NewAssistant(d.LLM)
	}
	h.hub = realtime.NewHub(h.authorizeTopic)
	h.timers = timer.NewRegistry(h.newTimer)
	return h
}

// Hub gibt den Realtime-Hub zurück
func (h *Handler) Hub() *realtime.Hub { return h.hub }

// Close stoppt alle Timer
func (h *Handler) Close() {
	h.timers.Close()
}

// Response-Helper
func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, map[string]string{"error": message}, status)
}

// storeError bildet Speicherfehler auf HTTP ab
func storeError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		errorResponse(w, what+" nicht gefunden", http.StatusNotFound)
		return
	}
	log.Printf("❌ %s: %v", what, err)
	errorResponse(w, "Fehler beim Laden: "+what, http.StatusInternalServerError)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("ungültige Anfrage: %w", err)
	}
	return nil
}

func userID(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

func getQueryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getQueryFloat(r *http.Request, key string) (float64, bool) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(val, 64)
	return f, err == nil
}

// authorizeTopic prüft den Beitritt zu Realtime-Themen
func (h *Handler) authorizeTopic(user, topic string) error {
	switch {
	case topic == realtime.TopicPresence:
		return nil
	case topic == realtime.TimerTopic(user):
		return nil
	case strings.HasPrefix(topic, "room:"):
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ok, err := h.store.IsParticipant(ctx, strings.TrimPrefix(topic, "room:"), user)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("kein teilnehmer von %s", topic)
		}
		return nil
	}
	return fmt.Errorf("unbekanntes thema: %s", topic)
}

// rewardState leitet den Punktestand aus allen gespeicherten Sitzungen ab
func (h *Handler) rewardState(ctx context.Context, user string) (models.RewardState, []models.StudySession, error) {
	sessions, err := h.store.GetStudySessions(ctx, user)
	if err != nil {
		return models.RewardState{}, nil, err
	}
	return rewards.Recompute(sessions), sessions, nil
}

// === System Endpoints ===

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"time":   h.now().UTC().Format(time.RFC3339),
	}
	if h.llm != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status["llm_available"] = h.llm.IsAvailable(ctx)
		status["model"] = h.llm.GetCurrentModel()
	}
	jsonResponse(w, status, http.StatusOK)
}

// === Suche ===

// Search antwortet immer mit 200: bei Fehlern des Anbieters kommen Ersatz-Ergebnisse
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp := h.search.Search(r.Context(), q.Get("q"), search.ParseType(q.Get("type")))
	jsonResponse(w, resp, http.StatusOK)
}

// === WebSocket ===

func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, userID(r))
}
