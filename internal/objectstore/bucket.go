// Package objectstore ist der lokale Ersatz für den "materials"-Bucket:
// Dateien liegen unter <root>/<user>/<uuid>-<name> und sind öffentlich über /files/ abrufbar.
package objectstore

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidPath wird bei leeren, absoluten oder ausbrechenden Schlüsseln zurückgegeben
var ErrInvalidPath = errors.New("ungültiger objektpfad")

// PublicPrefix ist der URL-Pfad, unter dem der Bucket ausgeliefert wird
const PublicPrefix = "/files/"

// Bucket speichert Objekte im Dateisystem
type Bucket struct {
	root    string
	baseURL string
}

// NewBucket legt das Wurzelverzeichnis an, falls es fehlt
func NewBucket(root, baseURL string) (*Bucket, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("bucket-verzeichnis anlegen: %w", err)
	}
	return &Bucket{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// ObjectKey bildet den Schlüssel <user>/<uuid>-<name>
func ObjectKey(userID, filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "datei"
	}
	return userID + "/" + uuid.New().String() + "-" + name
}

func (b *Bucket) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidPath
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", ErrInvalidPath
	}
	return filepath.Join(b.root, filepath.FromSlash(clean)), nil
}

// Put schreibt r atomar unter key und gibt die Anzahl geschriebener Bytes zurück
func (b *Bucket) Put(key string, r io.Reader) (int64, error) {
	dst, err := b.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("objekt schreiben: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}

// Open öffnet ein Objekt zum Lesen
func (b *Bucket) Open(key string) (io.ReadCloser, error) {
	p, err := b.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Delete entfernt ein Objekt; fehlende Objekte sind kein Fehler
func (b *Bucket) Delete(key string) error {
	p, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// URL liefert die öffentliche Adresse des Objekts
func (b *Bucket) URL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return b.baseURL + PublicPrefix + strings.Join(parts, "/")
}

// Handler liefert die Objekte unter PublicPrefix aus
func (b *Bucket) Handler() http.Handler {
	return http.StripPrefix(PublicPrefix, http.FileServer(http.Dir(b.root)))
}
