package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSettings wird bei ungültigen Timer-Einstellungen zurückgegeben
var ErrInvalidSettings = errors.New("ungültige timer-einstellungen")

// maxMinutes begrenzt jede einzelne Timer-Dauer
const maxMinutes = 240

// envPrefixes werden der Reihe nach für jeden Schlüssel geprüft
var envPrefixes = []string{"STUDY_", "EXPO_PUBLIC_", "REACT_APP_"}

// Config enthält alle Konfigurationseinstellungen
type Config struct {
	// Server-Einstellungen
	ServerPort    string `json:"server_port" yaml:"server_port"`
	PublicBaseURL string `json:"public_base_url" yaml:"public_base_url"`

	// Pfade
	DatabasePath string `json:"database_path" yaml:"database_path"`
	StoragePath  string `json:"storage_path" yaml:"storage_path"`

	// Externe Dienste
	SupabaseURL         string `json:"supabase_url" yaml:"supabase_url"`
	SupabaseAnonKey     string `json:"supabase_anon_key" yaml:"supabase_anon_key"`
	SupabaseJWTSecret   string `json:"supabase_jwt_secret" yaml:"supabase_jwt_secret"`
	SerpAPIKey          string `json:"serpapi_key" yaml:"serpapi_key"`
	GoogleMapsAPIKey    string `json:"google_maps_api_key" yaml:"google_maps_api_key"`
	ClerkPublishableKey string `json:"clerk_publishable_key" yaml:"clerk_publishable_key"`

	// LLM-Einstellungen (KI-Tutor)
	OllamaURL    string `json:"ollama_url" yaml:"ollama_url"`
	DefaultModel string `json:"default_model" yaml:"default_model"`

	// Lern-Einstellungen
	Timer          TimerSettings `json:"timer" yaml:"timer"`
	DailyGoal      int           `json:"daily_goal_minutes" yaml:"daily_goal_minutes"`
	WeeklyGoal     int           `json:"weekly_goal_minutes" yaml:"weekly_goal_minutes"`
	NearbyRadiusKm float64       `json:"nearby_radius_km" yaml:"nearby_radius_km"`
}

// TimerSettings sind die vom Nutzer einstellbaren Dauern in Minuten
type TimerSettings struct {
	StudyMinutes      int `json:"study_minutes" yaml:"study_minutes"`
	ShortBreakMinutes int `json:"short_break_minutes" yaml:"short_break_minutes"`
	LongBreakMinutes  int `json:"long_break_minutes" yaml:"long_break_minutes"`
}

// DefaultTimerSettings gibt die klassischen Pomodoro-Werte zurück
func DefaultTimerSettings() TimerSettings {
	return TimerSettings{StudyMinutes: 25, ShortBreakMinutes: 5, LongBreakMinutes: 15}
}

// Validate lehnt null, negative und übergroße Dauern ab
func (s TimerSettings) Validate() error {
	check := func(name string, v int) error {
		if v <= 0 || v > maxMinutes {
			return fmt.Errorf("%w: %s muss zwischen 1 und %d liegen (ist %d)", ErrInvalidSettings, name, maxMinutes, v)
		}
		return nil
	}
	if err := check("study_minutes", s.StudyMinutes); err != nil {
		return err
	}
	if err := check("short_break_minutes", s.ShortBreakMinutes); err != nil {
		return err
	}
	return check("long_break_minutes", s.LongBreakMinutes)
}

// Default gibt die Standardkonfiguration zurück
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		ServerPort:     "8080",
		PublicBaseURL:  "http://localhost:8080",
		DatabasePath:   "studybuddy.db",
		StoragePath:    filepath.Join(homeDir, "StudyBuddy", "materials"),
		OllamaURL:      "http://localhost:11434",
		DefaultModel:   "qwen2.5:7b",
		Timer:          DefaultTimerSettings(),
		DailyGoal:      120,
		WeeklyGoal:     420,
		NearbyRadiusKm: 5,
	}
}

// Load lädt die Konfiguration aus einer JSON- oder YAML-Datei
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("konfiguration %s ungültig: %w", path, err)
	}

	return cfg, nil
}

// Save speichert die Konfiguration in eine Datei
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv überschreibt Werte aus Umgebungsvariablen.
// lookup ist normalerweise os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		for _, prefix := range envPrefixes {
			if v, ok := lookup(prefix + key); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
		return "", false
	}

	strs := map[string]*string{
		"SUPABASE_URL":          &c.SupabaseURL,
		"SUPABASE_ANON_KEY":     &c.SupabaseAnonKey,
		"SUPABASE_JWT_SECRET":   &c.SupabaseJWTSecret,
		"SERPAPI_KEY":           &c.SerpAPIKey,
		"GOOGLE_MAPS_API_KEY":   &c.GoogleMapsAPIKey,
		"CLERK_PUBLISHABLE_KEY": &c.ClerkPublishableKey,
		"DATABASE_PATH":         &c.DatabasePath,
		"STORAGE_PATH":          &c.StoragePath,
		"PUBLIC_BASE_URL":       &c.PublicBaseURL,
		"OLLAMA_URL":            &c.OllamaURL,
		"PORT":                  &c.ServerPort,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	if v, ok := get("NEARBY_RADIUS_KM"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.NearbyRadiusKm = f
		}
	}
}

// Validate prüft Pflichtschlüssel und Einstellungen.
// Fehlende Schlüssel werden gesammelt gemeldet, es gibt keine eingebauten Ersatzschlüssel.
func (c *Config) Validate() error {
	var missing []string
	if c.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}
	if c.SerpAPIKey == "" {
		missing = append(missing, "SERPAPI_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("fehlende Pflicht-Umgebungsvariablen: %s (Präfix %s)",
			strings.Join(missing, ", "), strings.Join(envPrefixes, " | "))
	}

	if err := c.Timer.Validate(); err != nil {
		return err
	}
	if c.DailyGoal <= 0 || c.WeeklyGoal <= 0 {
		return fmt.Errorf("lernziele müssen positiv sein (täglich %d, wöchentlich %d)", c.DailyGoal, c.WeeklyGoal)
	}
	if c.NearbyRadiusKm <= 0 {
		return fmt.Errorf("nearby_radius_km muss positiv sein (ist %v)", c.NearbyRadiusKm)
	}
	return nil
}
