package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
)

type ctxKey struct{}

// WithUserID hängt die Nutzer-ID an den Kontext
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID liest die Nutzer-ID aus dem Kontext
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// BearerToken liest das Token aus dem Authorization-Header oder,
// für WebSockets, aus dem Query-Parameter access_token
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("access_token")
}

// Middleware lässt nur Anfragen mit gültigem Token durch
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeError(w, "Anmeldung erforderlich", http.StatusUnauthorized)
				return
			}

			userID, err := v.Verify(r.Context(), token)
			switch {
			case errors.Is(err, ErrUnauthorized):
				writeError(w, "Ungültiges Token", http.StatusUnauthorized)
				return
			case err != nil:
				log.Printf("❌ Token-Prüfung fehlgeschlagen: %v", err)
				writeError(w, "Auth-Dienst nicht erreichbar", http.StatusBadGateway)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
