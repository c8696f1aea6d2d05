package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"studybuddy/internal/auth"
	"studybuddy/internal/config"
	"studybuddy/internal/llm"
	"studybuddy/internal/models"
	"studybuddy/internal/objectstore"
	"studybuddy/internal/search"
	"studybuddy/internal/storage"
	"studybuddy/internal/testutil"
)

const testSecret = "test-secret"

type stubSearcher struct {
	err error
}

func (s *stubSearcher) Search(_ context.Context, query string, typ search.Type) (models.SearchResponse, error) {
	if s.err != nil {
		return models.SearchResponse{}, s.err
	}
	return models.SearchResponse{
		Type:         string(typ),
		Results:      []models.SearchResult{{Title: query, Link: "https://example.org", Position: 1}},
		TotalResults: 1,
	}, nil
}

type stubLLM struct {
	got []llm.ChatMessage
}

func (s *stubLLM) Chat(_ context.Context, messages []llm.ChatMessage, _ *llm.GenerateOptions) (*llm.GenerateResponse, error) {
	s.got = messages
	return &llm.GenerateResponse{Content: "Eine Ableitung ist die Steigung.", Model: "stub", Done: true}, nil
}
func (s *stubLLM) GetModels(context.Context) ([]llm.ModelInfo, error) { return nil, nil }
func (s *stubLLM) IsAvailable(context.Context) bool                   { return true }
func (s *stubLLM) GetCurrentModel() string                            { return "stub" }

type testEnv struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
	store   *storage.SQLiteStorage
	clock   *testutil.Clock
	llm     *stubLLM
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bucket, err := objectstore.NewBucket(filepath.Join(dir, "materials"), "http://test.local")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.GoogleMapsAPIKey = "maps-key"

	clock := testutil.NewClock(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	fake := &stubLLM{}
	h := NewHandler(Deps{
		Store:    store,
		Bucket:   bucket,
		Search:   search.NewService(&stubSearcher{}, search.NewCache(search.CacheDuration, clock.Now)),
		LLM:      fake,
		Config:   cfg,
		Verifier: auth.NewJWTVerifier(testSecret),
		Now:      clock.Now,
	})
	t.Cleanup(h.Close)

	return &testEnv{t: t, handler: h, router: NewRouter(h), store: store, clock: clock, llm: fake}
}

func token(t *testing.T, user string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: user, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

// do sendet eine Anfrage als user ("" = ohne Token)
func (e *testEnv) do(method, path, user string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+token(e.t, user))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) createSubject(user, name string) models.Subject {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/v1/subjects", user, map[string]string{"name": name})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Subject](e.t, rec)
}
