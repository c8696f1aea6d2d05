package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"studybuddy/internal/auth"
	"studybuddy/internal/objectstore"
)

// NewRouter erstellt den HTTP-Router mit allen Endpoints
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()

	// Öffentlich
	r.HandleFunc("/api/v1/health", h.HealthCheck).Methods("GET")
	if h.bucket != nil {
		r.PathPrefix(objectstore.PublicPrefix).Handler(h.bucket.Handler()).Methods("GET")
	}

	// API-Version, alles weitere nur mit gültigem Token
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware(h.verifier))

	// Suche
	api.HandleFunc("/search", h.Search).Methods("GET")

	// Fächer
	api.HandleFunc("/subjects", h.GetSubjects).Methods("GET")
	api.HandleFunc("/subjects", h.CreateSubject).Methods("POST")
	api.HandleFunc("/subjects/{id}", h.DeleteSubject).Methods("DELETE")

	// Sitzungen, Kalender, Ziele, Punkte
	api.HandleFunc("/sessions", h.GetSessions).Methods("GET")
	api.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}/complete", h.CompleteSession).Methods("POST")
	api.HandleFunc("/calendar", h.GetCalendar).Methods("GET")
	api.HandleFunc("/goals", h.GetGoals).Methods("GET")
	api.HandleFunc("/goals", h.UpdateGoals).Methods("PUT")
	api.HandleFunc("/rewards", h.GetRewards).Methods("GET")

	// Timer
	api.HandleFunc("/timer", h.GetTimer).Methods("GET")
	api.HandleFunc("/timer/subject", h.SelectTimerSubject).Methods("POST")
	api.HandleFunc("/timer/start", h.StartTimer).Methods("POST")
	api.HandleFunc("/timer/pause", h.PauseTimer).Methods("POST")
	api.HandleFunc("/timer/toggle", h.ToggleTimer).Methods("POST")
	api.HandleFunc("/timer/reset", h.ResetTimer).Methods("POST")
	api.HandleFunc("/timer/break/accept", h.AcceptBreak).Methods("POST")
	api.HandleFunc("/timer/break/skip", h.SkipBreak).Methods("POST")
	api.HandleFunc("/timer/retry", h.RetryTimer).Methods("POST")
	api.HandleFunc("/timer/settings", h.UpdateTimerSettings).Methods("PUT")

	// Materialien
	api.HandleFunc("/materials", h.GetMaterials).Methods("GET")
	api.HandleFunc("/materials", h.UploadMaterial).Methods("POST")
	api.HandleFunc("/materials/{id}", h.GetMaterial).Methods("GET")
	api.HandleFunc("/materials/{id}", h.DeleteMaterial).Methods("DELETE")

	// Chat
	api.HandleFunc("/chat/rooms", h.GetChatRooms).Methods("GET")
	api.HandleFunc("/chat/rooms", h.CreateChatRoom).Methods("POST")
	api.HandleFunc("/chat/direct", h.CreateDirectChat).Methods("POST")
	api.HandleFunc("/chat/rooms/{id}/messages", h.GetMessages).Methods("GET")
	api.HandleFunc("/chat/rooms/{id}/messages", h.PostMessage).Methods("POST")

	// Lernpartner, Profil, Karte
	api.HandleFunc("/buddies/me", h.UpdateMyBuddy).Methods("PUT")
	api.HandleFunc("/buddies/nearby", h.GetNearbyBuddies).Methods("GET")
	api.HandleFunc("/presence", h.GetPresence).Methods("GET")
	api.HandleFunc("/profile", h.GetProfile).Methods("GET")
	api.HandleFunc("/profile", h.UpdateProfile).Methods("PUT")
	api.HandleFunc("/map/embed", h.GetMapEmbed).Methods("GET")

	// KI-Tutor
	api.HandleFunc("/assistant/chat", h.AssistantChat).Methods("POST")

	// Realtime
	api.HandleFunc("/ws", h.WebSocket).Methods("GET")

	// CORS für die Apps (Web und Expo)
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	return c.Handler(r)
}
