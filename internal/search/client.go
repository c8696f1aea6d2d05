package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studybuddy/internal/models"
)

// DefaultBaseURL ist der SerpAPI-Endpunkt
const DefaultBaseURL = "https://serpapi.com"

// MaxAttempts begrenzt die Versuche pro Anfrage
const MaxAttempts = 3

// StatusError ist eine Nicht-2xx-Antwort des Anbieters
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("serpapi-fehler (%d): %s", e.Code, e.Body)
}

// retryable: Netzwerkfehler (auch Client-Timeouts), 429 und 5xx.
// Ein abgelaufener Kontext des Aufrufers wird vorher in Search behandelt.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Client spricht die SerpAPI über HTTP GET an
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	backoff func(attempt int) time.Duration
}

// NewClient erstellt einen SerpAPI-Client
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * time.Second // linear
		},
	}
}

// Search führt die Anfrage mit bis zu MaxAttempts Versuchen aus
func (c *Client) Search(ctx context.Context, query string, typ Type) (models.SearchResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.backoff(attempt - 1)
			log.Printf("   [SerpAPI] 🔄 Retry %d/%d in %v...", attempt, MaxAttempts, wait)
			select {
			case <-ctx.Done():
				return models.SearchResponse{}, ctx.Err()
			case <-time.After(wait):
			}
		}

		resp, err := c.doSearch(ctx, query, typ)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return models.SearchResponse{}, ctx.Err()
		}
		if !retryable(err) {
			break
		}
	}
	return models.SearchResponse{}, lastErr
}

func (c *Client) doSearch(ctx context.Context, query string, typ Type) (models.SearchResponse, error) {
	engine := "google"
	if typ == TypeImage {
		engine = "google_images"
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	params.Set("engine", engine)
	params.Set("num", "10")
	params.Set("gl", "us")
	params.Set("hl", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return models.SearchResponse{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.SearchResponse{}, fmt.Errorf("serpapi nicht erreichbar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.SearchResponse{}, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var raw struct {
		OrganicResults []struct {
			Title    string `json:"title"`
			Link     string `json:"link"`
			Snippet  string `json:"snippet"`
			Position int    `json:"position"`
		} `json:"organic_results"`
		ImagesResults []struct {
			Title          string `json:"title"`
			Original       string `json:"original"`
			Thumbnail      string `json:"thumbnail"`
			Source         string `json:"source"`
			OriginalWidth  int    `json:"original_width"`
			OriginalHeight int    `json:"original_height"`
		} `json:"images_results"`
		SearchInformation struct {
			TotalResults int `json:"total_results"`
		} `json:"search_information"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.SearchResponse{}, fmt.Errorf("serpapi-antwort ungültig: %w", err)
	}

	out := models.SearchResponse{Type: string(typ), TotalResults: raw.SearchInformation.TotalResults}
	if typ == TypeImage {
		out.Images = make([]models.ImageResult, 0, len(raw.ImagesResults))
		for _, r := range raw.ImagesResults {
			out.Images = append(out.Images, models.ImageResult{
				Title:        r.Title,
				ImageURL:     r.Original,
				ThumbnailURL: r.Thumbnail,
				Source:       r.Source,
				Width:        r.OriginalWidth,
				Height:       r.OriginalHeight,
			})
		}
		return out, nil
	}

	out.Results = make([]models.SearchResult, 0, len(raw.OrganicResults))
	for _, r := range raw.OrganicResults {
		out.Results = append(out.Results, models.SearchResult{
			Title:       r.Title,
			Link:        r.Link,
			Description: r.Snippet,
			Position:    r.Position,
		})
	}
	return out, nil
}
