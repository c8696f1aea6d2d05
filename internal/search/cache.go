// Package search kapselt den externen Suchanbieter (SerpAPI).
//
// Ergebnisse werden 30 Minuten zwischengespeichert, Fehler des Anbieters werden nie
// an den Aufrufer weitergereicht: stattdessen kommt ein fester Ersatz-Ergebnissatz.
package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"studybuddy/internal/models"
)

// CacheDuration ist die Gültigkeit eines Eintrags und zugleich das Aufräumintervall
const CacheDuration = 30 * time.Minute

// Type ist die Art der Suche
type Type string

const (
	TypeWeb   Type = "web"
	TypeImage Type = "image"
)

// ParseType liefert TypeImage für "image", sonst TypeWeb
func ParseType(s string) Type {
	if Type(s) == TypeImage {
		return TypeImage
	}
	return TypeWeb
}

type entry struct {
	payload   models.SearchResponse
	timestamp time.Time
}

// Cache ist eine zeitlich ablaufende Map von (Anfrage, Typ) auf eine Ergebnisseite
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache erstellt einen Cache; now ist in Tests eine kontrollierte Uhr
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = CacheDuration
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{entries: make(map[string]entry), ttl: ttl, now: now}
}

// Key bildet den Schlüssel aus Typ und kleingeschriebener Anfrage
func Key(query string, typ Type) string {
	return string(typ) + ":" + cases.Lower(language.Und).String(query)
}

// Get liefert den Eintrag, solange now - timestamp < ttl gilt
func (c *Cache) Get(query string, typ Type) (models.SearchResponse, bool) {
	c.mu.RLock()
	e, ok := c.entries[Key(query, typ)]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.timestamp) >= c.ttl {
		return models.SearchResponse{}, false
	}
	return e.payload, true
}

// Put speichert die Ergebnisseite mit dem aktuellen Zeitstempel
func (c *Cache) Put(query string, typ Type, payload models.SearchResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(query, typ)] = entry{payload: payload, timestamp: c.now()}
}

// Sweep entfernt alle Einträge, die älter als ttl sind, und gibt deren Anzahl zurück
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.timestamp) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len gibt die Anzahl gespeicherter (auch abgelaufener) Einträge zurück
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RunSweeper räumt im Abstand von ttl auf, bis ctx beendet wird
func (c *Cache) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
