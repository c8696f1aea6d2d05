// Package llm bindet ein lokales Ollama als KI-Tutor an.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Provider definiert das Interface für LLM-Backends
type Provider interface {
	// Chat führt einen Chat mit Nachrichtenverlauf
	Chat(ctx context.Context, messages []ChatMessage, options *GenerateOptions) (*GenerateResponse, error)

	// GetModels gibt verfügbare Modelle zurück
	GetModels(ctx context.Context) ([]ModelInfo, error)

	// IsAvailable prüft, ob das Backend erreichbar ist
	IsAvailable(ctx context.Context) bool

	// GetCurrentModel gibt das aktuelle Modell zurück
	GetCurrentModel() string
}

// GenerateOptions enthält optionale Parameter für die Generierung
type GenerateOptions struct {
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// GenerateResponse enthält die Antwort des LLM
type GenerateResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Done    bool   `json:"done"`
}

// ChatMessage repräsentiert eine Chat-Nachricht
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelInfo enthält Informationen über ein Modell
type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

// statusError ist eine Nicht-200-Antwort von Ollama
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ollama-fehler (%d): %s", e.code, e.body)
}

// OllamaProvider implementiert den Provider für Ollama
type OllamaProvider struct {
	baseURL      string
	defaultModel string
	client       *http.Client
	// limitiert gleichzeitige Anfragen (verhindert Speicherüberlauf)
	sem        chan struct{}
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// NewOllamaProvider erstellt einen neuen Ollama-Provider
func NewOllamaProvider(baseURL, defaultModel string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if defaultModel == "" {
		defaultModel = "qwen2.5:7b"
	}

	return &OllamaProvider{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		defaultModel: defaultModel,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
		sem:        make(chan struct{}, 1),
		maxRetries: 3,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 2 * time.Second
		},
	}
}

// GetCurrentModel gibt das aktuelle Modell zurück
func (o *OllamaProvider) GetCurrentModel() string {
	return o.defaultModel
}

// ResolveModel prüft, ob das Standard-Modell existiert, sonst wird das erste verfügbare genommen
func (o *OllamaProvider) ResolveModel(ctx context.Context) string {
	models, err := o.GetModels(ctx)
	if err != nil || len(models) == 0 {
		return o.defaultModel
	}
	for _, m := range models {
		if m.Name == o.defaultModel {
			return o.defaultModel
		}
	}
	log.Printf("⚠️  Modell '%s' nicht gefunden, verwende '%s'", o.defaultModel, models[0].Name)
	o.defaultModel = models[0].Name
	return o.defaultModel
}

func (o *OllamaProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (o *OllamaProvider) GetModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama nicht erreichbar: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// Chat sendet den Verlauf an /api/chat. Nur eine Anfrage gleichzeitig, max. maxRetries Versuche.
func (o *OllamaProvider) Chat(ctx context.Context, messages []ChatMessage, options *GenerateOptions) (*GenerateResponse, error) {
	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-o.sem }()

	model := o.defaultModel
	if options != nil && options.Model != "" {
		model = options.Model
	}

	var lastErr error
	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		if attempt > 1 {
			log.Printf("   [Ollama] 🔄 Retry %d/%d...", attempt, o.maxRetries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.backoff(attempt)):
			}
		}

		resp, err := o.doChat(ctx, model, messages, options)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// Bei Context-Abbruch sofort aufhören
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Nur abgestürzte Runner (5xx) und Netzwerkfehler erneut versuchen
		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			break
		}
	}
	return nil, lastErr
}

func (o *OllamaProvider) doChat(ctx context.Context, model string, messages []ChatMessage, options *GenerateOptions) (*GenerateResponse, error) {
	reqBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
		"stream":   false,
	}
	if options != nil && options.Temperature > 0 {
		reqBody["options"] = map[string]interface{}{
			"temperature": options.Temperature,
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		log.Printf("   [Ollama] ❌ Netzwerk-Fehler nach %v: %v", time.Since(start), err)
		return nil, fmt.Errorf("ollama-chat fehlgeschlagen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Model string `json:"model"`
		Done  bool   `json:"done"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	log.Printf("   [Ollama] ✓ Antwort nach %v: %d Zeichen", time.Since(start), len(result.Message.Content))
	return &GenerateResponse{
		Content: result.Message.Content,
		Model:   result.Model,
		Done:    result.Done,
	}, nil
}
