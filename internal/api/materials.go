package api

import (
	"bytes"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"studybuddy/internal/models"
	"studybuddy/internal/objectstore"
	"studybuddy/internal/pdf"
)

// MaxUploadSize begrenzt Material-Uploads
const MaxUploadSize = 50 << 20

func (h *Handler) GetMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.store.GetMaterials(r.Context(), userID(r))
	if err != nil {
		storeError(w, "Materialien", err)
		return
	}
	jsonResponse(w, materials, http.StatusOK)
}

func (h *Handler) UploadMaterial(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		errorResponse(w, "Upload zu groß oder ungültig", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		errorResponse(w, "Keine Datei gefunden", http.StatusBadRequest)
		return
	}
	defer file.Close()
	if header.Size > MaxUploadSize {
		errorResponse(w, "Datei größer als 50 MB", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		errorResponse(w, "Datei nicht lesbar", http.StatusBadRequest)
		return
	}

	user := userID(r)
	subjectID := r.FormValue("subject_id")
	if subjectID != "" {
		if _, err := h.store.GetSubject(r.Context(), user, subjectID); err != nil {
			storeError(w, "Fach", err)
			return
		}
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	key := objectstore.ObjectKey(user, header.Filename)
	size, err := h.bucket.Put(key, bytes.NewReader(data))
	if err != nil {
		log.Printf("❌ Upload fehlgeschlagen: %v", err)
		errorResponse(w, "Fehler beim Speichern der Datei", http.StatusInternalServerError)
		return
	}

	material := &models.Material{
		ID:          uuid.New().String(),
		UserID:      user,
		SubjectID:   subjectID,
		Name:        header.Filename,
		ContentType: contentType,
		Size:        size,
		Path:        key,
		URL:         h.bucket.URL(key),
		CreatedAt:   h.now(),
	}
	if pdf.IsPDF(contentType, header.Filename) {
		if info, err := pdf.Inspect(data); err != nil {
			log.Printf("⚠️  PDF %s nicht lesbar: %v", header.Filename, err)
		} else {
			material.PageCount = info.PageCount
			material.Preview = info.Preview
		}
	}

	if err := h.store.SaveMaterial(r.Context(), material); err != nil {
		h.bucket.Delete(key)
		storeError(w, "Material", err)
		return
	}
	jsonResponse(w, material, http.StatusCreated)
}

// GetMaterial zählt jeden Abruf als Ansicht
func (h *Handler) GetMaterial(w http.ResponseWriter, r *http.Request) {
	user, id := userID(r), mux.Vars(r)["id"]
	if err := h.store.IncrementMaterialViews(r.Context(), user, id); err != nil {
		storeError(w, "Material", err)
		return
	}
	material, err := h.store.GetMaterial(r.Context(), user, id)
	if err != nil {
		storeError(w, "Material", err)
		return
	}
	jsonResponse(w, material, http.StatusOK)
}

func (h *Handler) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	user, id := userID(r), mux.Vars(r)["id"]
	material, err := h.store.GetMaterial(r.Context(), user, id)
	if err != nil {
		storeError(w, "Material", err)
		return
	}
	if err := h.store.DeleteMaterial(r.Context(), user, id); err != nil {
		storeError(w, "Material", err)
		return
	}
	if err := h.bucket.Delete(material.Path); err != nil {
		log.Printf("⚠️  Datei %s nicht gelöscht: %v", material.Path, err)
	}
	jsonResponse(w, map[string]string{"message": "Material gelöscht"}, http.StatusOK)
}
