package search

import (
	"context"
	"log"
	"strings"

	"studybuddy/internal/models"
)

// Searcher ist der entfernte Suchanbieter
type Searcher interface {
	Search(ctx context.Context, query string, typ Type) (models.SearchResponse, error)
}

// Service kombiniert Cache, Anbieter und Ersatz-Ergebnisse. Search schlägt nie fehl.
type Service struct {
	cache    *Cache
	provider Searcher
}

// NewService erstellt den Suchdienst
func NewService(provider Searcher, cache *Cache) *Service {
	if cache == nil {
		cache = NewCache(CacheDuration, nil)
	}
	return &Service{cache: cache, provider: provider}
}

// Cache gibt den verwendeten Cache zurück (für den Aufräum-Job)
func (s *Service) Cache() *Cache {
	return s.cache
}

// Search liefert Treffer aus dem Cache oder vom Anbieter, sonst den Ersatz-Satz
func (s *Service) Search(ctx context.Context, query string, typ Type) models.SearchResponse {
	if strings.TrimSpace(query) == "" {
		return Fallback(typ)
	}

	if cached, ok := s.cache.Get(query, typ); ok {
		return cached
	}

	resp, err := s.provider.Search(ctx, query, typ)
	if err != nil {
		log.Printf("⚠️  Suche fehlgeschlagen (%s, %q), verwende Ersatz-Ergebnisse: %v", typ, query, err)
		return Fallback(typ)
	}

	s.cache.Put(query, typ, resp)
	return resp
}
