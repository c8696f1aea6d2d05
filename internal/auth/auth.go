// Package auth prüft Bearer-Tokens des entfernten Auth-Dienstes (Supabase).
//
// Mit SUPABASE_JWT_SECRET werden Tokens lokal per HS256 geprüft, sonst fragt
// der SupabaseVerifier den /auth/v1/user-Endpunkt.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized: Token fehlt, ist ungültig oder abgelaufen
var ErrUnauthorized = errors.New("nicht angemeldet")

// Verifier liefert zu einem Token die Nutzer-ID
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Claims entspricht den Supabase-Access-Token-Claims
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`

	jwt.RegisteredClaims
}

// JWTVerifier prüft HS256-Tokens mit dem Projekt-Secret
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier erstellt einen lokalen Verifier
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

// SupabaseVerifier fragt den Auth-Dienst nach dem Nutzer zum Token
type SupabaseVerifier struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewSupabaseVerifier erstellt einen entfernten Verifier
func NewSupabaseVerifier(baseURL, anonKey string) *SupabaseVerifier {
	return &SupabaseVerifier{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		anonKey: anonKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("apikey", v.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth-dienst nicht erreichbar: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("auth-dienst-fehler (%d): %s", resp.StatusCode, body)
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("auth-antwort ungültig: %w", err)
	}
	if user.ID == "" {
		return "", ErrUnauthorized
	}
	return user.ID, nil
}

// New wählt den Verifier: lokal mit Secret, sonst entfernt
func New(supabaseURL, anonKey, jwtSecret string) Verifier {
	if jwtSecret != "" {
		return NewJWTVerifier(jwtSecret)
	}
	return NewSupabaseVerifier(supabaseURL, anonKey)
}
