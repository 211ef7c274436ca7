package categorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

const entityPrompt = "You are a named-entity recognizer for bank transaction text.\n\n" +
	"Task:\n" +
	"- Find the named entities in the text below.\n" +
	"- Use only these entity types: PERSON, LOCATION, ORGANIZATION, COMMERCIAL_ITEM, EVENT, DATE, QUANTITY, TITLE, OTHER.\n" +
	"- Output STRICT JSON only: an array of objects with fields \"type\" and \"text\".\n" +
	"- Output [] when there are no entities.\n" +
	"Do NOT wrap the response in code fences.\n\n"

// contentGenerator is the subset of *genai.Models the recognizer needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiRecognizer asks a Gemini model to tag entities in transaction text.
type GeminiRecognizer struct {
	models contentGenerator
	model  string
}

// NewGeminiRecognizer creates a recognizer backed by the Gemini API.
func NewGeminiRecognizer(ctx context.Context, apiKey, model string) (*GeminiRecognizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiRecognizer: create genai client: %w", err)
	}
	return newGeminiRecognizer(client.Models, model), nil
}

func newGeminiRecognizer(models contentGenerator, model string) *GeminiRecognizer {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiRecognizer{models: models, model: model}
}

// DetectEntities implements EntityRecognizer.
func (g *GeminiRecognizer) DetectEntities(ctx context.Context, text, languageCode string) ([]Entity, error) {
	prompt := entityPrompt + "Language: " + languageCode + "\nText: " + text

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	var temperature float32
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("DetectEntities: generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("DetectEntities: empty response from model")
	}

	entities, err := parseEntities(raw)
	if err != nil {
		return nil, fmt.Errorf("DetectEntities: %w", err)
	}
	return entities, nil
}

// parseEntities accepts either a bare array or an object wrapping it under "entities".
func parseEntities(raw string) ([]Entity, error) {
	clean := cleanModelJSON(raw)

	var entities []Entity
	if err := json.Unmarshal([]byte(clean), &entities); err != nil {
		var wrapped struct {
			Entities []Entity `json:"entities"`
		}
		if werr := json.Unmarshal([]byte(clean), &wrapped); werr != nil {
			return nil, fmt.Errorf("unmarshal entities: %w (raw response: %s)", err, raw)
		}
		entities = wrapped.Entities
	}

	for i := range entities {
		entities[i].Type = strings.ToUpper(strings.TrimSpace(entities[i].Type))
	}
	return entities, nil
}

// cleanModelJSON strips Markdown fences and chatter the model may add around JSON.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost array or object if junk remains around it.
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		return s
	}
	if start := strings.IndexAny(s, "[{"); start != -1 {
		closer := "]"
		if s[start] == '{' {
			closer = "}"
		}
		if end := strings.LastIndex(s, closer); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
