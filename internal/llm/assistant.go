package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxHistory begrenzt den an das Modell gesendeten Verlauf
const MaxHistory = 20

// ErrEmptyConversation: keine Nutzer-Nachricht im Verlauf
var ErrEmptyConversation = errors.New("keine frage im verlauf")

// Assistant ist der KI-Lernbegleiter, freigeschaltet ab 500 Punkten
type Assistant struct {
	provider Provider
}

// NewAssistant erstellt den Lernbegleiter
func NewAssistant(provider Provider) *Assistant {
	return &Assistant{provider: provider}
}

// Ask beantwortet die letzte Frage im Verlauf. "ai" wird als "assistant" behandelt,
// unbekannte Rollen und leere Nachrichten werden verworfen.
func (a *Assistant) Ask(ctx context.Context, subjects []string, history []ChatMessage) (*GenerateResponse, error) {
	messages := make([]ChatMessage, 0, len(history))
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case "user":
		case "ai", "assistant":
			m.Role = "assistant"
		default:
			continue
		}
		messages = append(messages, ChatMessage{Role: m.Role, Content: content})
	}
	if len(messages) == 0 || messages[len(messages)-1].Role != "user" {
		return nil, ErrEmptyConversation
	}
	if len(messages) > MaxHistory {
		messages = messages[len(messages)-MaxHistory:]
	}

	all := append([]ChatMessage{{Role: "system", Content: systemPrompt(subjects)}}, messages...)
	return a.provider.Chat(ctx, all, &GenerateOptions{Temperature: 0.5})
}

func systemPrompt(subjects []string) string {
	prompt := `Du bist ein hilfreicher Lernassistent.
Du hilfst dem Studenten beim Lernen, erklärst Schritt für Schritt und beantwortest Fragen.
Antworte in der Sprache der Frage. Kurze Absätze, Fachbegriffe erklären.`
	if len(subjects) > 0 {
		prompt += fmt.Sprintf("\n\nFächer des Studenten: %s", limitContent(strings.Join(subjects, ", "), 500))
	}
	return prompt
}

// limitContent kürzt auf höchstens maxLen Bytes, ohne ein Zeichen zu zerschneiden
func limitContent(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + " [...]"
}
