package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"studybuddy/internal/models"
	"studybuddy/internal/realtime"
)

func (h *Handler) GetChatRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.store.GetChatRooms(r.Context(), userID(r))
	if err != nil {
		storeError(w, "Chat-Räume", err)
		return
	}
	jsonResponse(w, rooms, http.StatusOK)
}

// CreateChatRoom legt einen Gruppenraum an; der Ersteller ist immer Teilnehmer
func (h *Handler) CreateChatRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string   `json:"name"`
		Participants []string `json:"participants"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		errorResponse(w, "Name erforderlich", http.StatusBadRequest)
		return
	}

	user := userID(r)
	participants := []string{user}
	for _, p := range req.Participants {
		if p != "" && p != user {
			participants = append(participants, p)
		}
	}
	room := &models.ChatRoom{Name: req.Name, Type: "group", Participants: participants, CreatedAt: h.now()}
	if err := h.store.CreateChatRoom(r.Context(), room); err != nil {
		storeError(w, "Chat-Raum", err)
		return
	}
	jsonResponse(w, room, http.StatusCreated)
}

// CreateDirectChat öffnet den Direktchat mit einem anderen Nutzer (bestehender Raum wird wiederverwendet)
func (h *Handler) CreateDirectChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	user := userID(r)
	if req.UserID == "" || req.UserID == user {
		errorResponse(w, "Anderer Nutzer erforderlich", http.StatusBadRequest)
		return
	}

	room, err := h.store.CreateDirectChatRoom(r.Context(), user, req.UserID)
	if err != nil {
		storeError(w, "Chat-Raum", err)
		return
	}
	jsonResponse(w, room, http.StatusOK)
}

// requireParticipant antwortet mit 404, wenn der Nutzer nicht im Raum ist
func (h *Handler) requireParticipant(w http.ResponseWriter, r *http.Request, roomID string) bool {
	ok, err := h.store.IsParticipant(r.Context(), roomID, userID(r))
	if err != nil {
		storeError(w, "Chat-Raum", err)
		return false
	}
	if !ok {
		errorResponse(w, "Chat-Raum nicht gefunden", http.StatusNotFound)
		return false
	}
	return true
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	if !h.requireParticipant(w, r, roomID) {
		return
	}
	messages, err := h.store.GetMessages(r.Context(), roomID, getQueryInt(r, "limit", 100))
	if err != nil {
		storeError(w, "Nachrichten", err)
		return
	}
	jsonResponse(w, messages, http.StatusOK)
}

// PostMessage speichert die Nachricht und verteilt sie an alle Abonnenten des Raums
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		errorResponse(w, "Nachricht ist leer", http.StatusBadRequest)
		return
	}
	if !h.requireParticipant(w, r, roomID) {
		return
	}

	user := userID(r)
	msg := &models.Message{RoomID: roomID, SenderID: user, Content: req.Content, CreatedAt: h.now()}
	if profile, err := h.store.GetProfile(r.Context(), user); err == nil {
		msg.Username = profile.Username
	}
	if err := h.store.SaveMessage(r.Context(), msg); err != nil {
		storeError(w, "Nachricht", err)
		return
	}

	h.hub.Publish(realtime.RoomTopic(roomID), realtime.EventMessageInsert, msg)
	jsonResponse(w, msg, http.StatusCreated)
}
