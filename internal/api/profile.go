package api

import (
	"errors"
	"net/http"
	"strings"

	"studybuddy/internal/llm"
	"studybuddy/internal/models"
	"studybuddy/internal/rewards"
	"studybuddy/internal/storage"
)

// GetProfile legt das Profil beim ersten Zugriff an
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	profile, err := h.store.GetProfile(r.Context(), user)
	if errors.Is(err, storage.ErrNotFound) {
		profile = &models.Profile{ID: user, CreatedAt: h.now()}
		err = h.store.SaveProfile(r.Context(), profile)
	}
	if err != nil {
		storeError(w, "Profil", err)
		return
	}
	jsonResponse(w, profile, http.StatusOK)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		errorResponse(w, "Benutzername erforderlich", http.StatusBadRequest)
		return
	}

	user := userID(r)
	profile, err := h.store.GetProfile(r.Context(), user)
	if errors.Is(err, storage.ErrNotFound) {
		profile, err = &models.Profile{ID: user, CreatedAt: h.now()}, nil
	}
	if err != nil {
		storeError(w, "Profil", err)
		return
	}
	profile.Username = strings.TrimSpace(req.Username)
	profile.AvatarURL = req.AvatarURL
	if err := h.store.SaveProfile(r.Context(), profile); err != nil {
		storeError(w, "Profil", err)
		return
	}
	jsonResponse(w, profile, http.StatusOK)
}

// === KI-Tutor ===

// AssistantChat ist erst ab rewards.PointsForAI Punkten freigeschaltet
func (h *Handler) AssistantChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []llm.ChatMessage `json:"messages"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	user := userID(r)
	state, _, err := h.rewardState(r.Context(), user)
	if err != nil {
		storeError(w, "Punkte", err)
		return
	}
	if !state.AIEnabled {
		jsonResponse(w, map[string]interface{}{
			"error":           "KI-Tutor noch nicht freigeschaltet",
			"total_points":    state.TotalPoints,
			"required_points": rewards.PointsForAI,
		}, http.StatusForbidden)
		return
	}
	if h.assistant == nil {
		errorResponse(w, "KI-Tutor nicht verfügbar", http.StatusServiceUnavailable)
		return
	}

	names, err := h.subjectNames(r.Context(), user)
	if err != nil {
		storeError(w, "Fächer", err)
		return
	}
	resp, err := h.assistant.Ask(r.Context(), names, req.Messages)
	if errors.Is(err, llm.ErrEmptyConversation) {
		errorResponse(w, "Frage erforderlich", http.StatusBadRequest)
		return
	}
	if err != nil {
		errorResponse(w, "KI-Tutor nicht erreichbar: "+err.Error(), http.StatusBadGateway)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"role":    "assistant",
		"content": resp.Content,
		"model":   resp.Model,
	}, http.StatusOK)
}
