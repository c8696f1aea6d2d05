package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"studybuddy/internal/matching"
	"studybuddy/internal/models"
	"studybuddy/internal/storage"
)

// subjectNames liefert die Fachnamen eines Nutzers für den Abgleich
func (h *Handler) subjectNames(ctx context.Context, user string) ([]string, error) {
	subjects, err := h.store.GetSubjects(ctx, user)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(subjects))
	for _, s := range subjects {
		names = append(names, s.Name)
	}
	return names, nil
}

func validCoordinate(c models.Coordinate) bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// UpdateMyBuddy aktualisiert Standort, Verfügbarkeit und Tutor-Angaben des Aufrufers.
// Bewertung und Verifizierung sind nicht selbst setzbar.
func (h *Handler) UpdateMyBuddy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location           models.Coordinate `json:"location"`
		IsAvailable        *bool             `json:"is_available"`
		Subjects           []string          `json:"subjects"`
		IsTutor            bool              `json:"is_tutor"`
		HourlyRate         float64           `json:"hourly_rate"`
		ExpertiseLevel     string            `json:"expertise_level"`
		SubjectsExpertise  []string          `json:"subjects_expertise"`
		Bio                string            `json:"bio"`
		PreferredStudyTime string            `json:"preferred_study_time"`
		LearningStyle      string            `json:"learning_style"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !validCoordinate(req.Location) {
		errorResponse(w, "Ungültige Koordinaten", http.StatusBadRequest)
		return
	}
	if req.HourlyRate < 0 {
		errorResponse(w, "Stundensatz darf nicht negativ sein", http.StatusBadRequest)
		return
	}

	user := userID(r)
	buddy := &models.BuddyCandidate{UserID: user}
	if existing, err := h.store.GetBuddy(r.Context(), user); err == nil {
		buddy = existing
	}

	if req.Subjects == nil {
		names, err := h.subjectNames(r.Context(), user)
		if err != nil {
			storeError(w, "Fächer", err)
			return
		}
		req.Subjects = names
	}

	buddy.Location = req.Location
	buddy.IsAvailable = req.IsAvailable == nil || *req.IsAvailable
	buddy.Subjects = req.Subjects
	buddy.IsTutor = req.IsTutor
	buddy.HourlyRate = req.HourlyRate
	buddy.ExpertiseLevel = req.ExpertiseLevel
	buddy.SubjectsExpertise = req.SubjectsExpertise
	buddy.Bio = req.Bio
	buddy.PreferredStudyTime = req.PreferredStudyTime
	buddy.LearningStyle = req.LearningStyle
	buddy.LastActive = h.now()

	if err := h.store.SaveBuddy(r.Context(), buddy); err != nil {
		storeError(w, "Lernpartner", err)
		return
	}
	jsonResponse(w, buddy, http.StatusOK)
}

// GetNearbyBuddies sucht verfügbare Lernpartner im Umkreis und bewertet sie
func (h *Handler) GetNearbyBuddies(w http.ResponseWriter, r *http.Request) {
	lat, okLat := getQueryFloat(r, "lat")
	lon, okLon := getQueryFloat(r, "lon")
	center := models.Coordinate{Latitude: lat, Longitude: lon}
	if !okLat || !okLon || !validCoordinate(center) {
		errorResponse(w, "lat und lon erforderlich", http.StatusBadRequest)
		return
	}
	radius, ok := getQueryFloat(r, "radius_km")
	if !ok {
		radius = h.config.NearbyRadiusKm
	}
	if radius <= 0 {
		errorResponse(w, "radius_km muss positiv sein", http.StatusBadRequest)
		return
	}
	tutorsOnly, _ := strconv.ParseBool(r.URL.Query().Get("tutors_only"))

	user := userID(r)
	candidates, err := h.store.FindNearbyBuddies(r.Context(), storage.NearbyQuery{
		Center:        center,
		RadiusKm:      radius,
		ExcludeUserID: user,
		TutorsOnly:    tutorsOnly,
		Limit:         getQueryInt(r, "limit", 50),
	})
	if err != nil {
		storeError(w, "Lernpartner", err)
		return
	}
	names, err := h.subjectNames(r.Context(), user)
	if err != nil {
		storeError(w, "Fächer", err)
		return
	}

	jsonResponse(w, matching.Annotate(center, names, candidates), http.StatusOK)
}

// GetPresence liefert die aktuell verbundenen Nutzer
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string][]string{"users": h.hub.Online()}, http.StatusOK)
}

// === Karte ===

// mapZoom leitet die Zoomstufe aus der Längengrad-Spanne ab (Standard 13)
func mapZoom(longitudeDelta float64) int {
	if longitudeDelta <= 0 {
		return 13
	}
	return int(math.Round(math.Log2(360/longitudeDelta) - 1))
}

// GetMapEmbed liefert eine Google-Maps-Embed-URL für den Mittelpunkt
func (h *Handler) GetMapEmbed(w http.ResponseWriter, r *http.Request) {
	if h.config.GoogleMapsAPIKey == "" {
		errorResponse(w, "Karte nicht konfiguriert", http.StatusServiceUnavailable)
		return
	}
	lat, okLat := getQueryFloat(r, "lat")
	lon, okLon := getQueryFloat(r, "lon")
	if !okLat || !okLon || !validCoordinate(models.Coordinate{Latitude: lat, Longitude: lon}) {
		errorResponse(w, "lat und lon erforderlich", http.StatusBadRequest)
		return
	}
	delta, _ := getQueryFloat(r, "longitude_delta")

	q := url.Values{}
	q.Set("key", h.config.GoogleMapsAPIKey)
	q.Set("center", fmt.Sprintf("%g,%g", lat, lon))
	q.Set("zoom", strconv.Itoa(mapZoom(delta)))
	jsonResponse(w, map[string]string{
		"url": "https://www.google.com/maps/embed/v1/view?" + q.Encode(),
	}, http.StatusOK)
}
