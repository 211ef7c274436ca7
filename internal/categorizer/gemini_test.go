package categorizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"
)

type fakeGenerator struct {
	text      string
	err       error
	gotModel  string
	gotPrompt string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.gotPrompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.text}}}},
		},
	}, nil
}

func TestGeminiRecognizer_DetectEntities(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n[{\"type\": \"organization\", \"text\": \"Acme\"}]\n```"}
	rec := newGeminiRecognizer(gen, "")

	entities, err := rec.DetectEntities(context.Background(), "Acme Widgets", "en")
	if err != nil {
		t.Fatalf("DetectEntities() error = %v", err)
	}

	if len(entities) != 1 || entities[0].Type != EntityTypeOrganization || entities[0].Text != "Acme" {
		t.Errorf("entities = %+v, want one ORGANIZATION Acme", entities)
	}
	if gen.gotModel != DefaultGeminiModel {
		t.Errorf("model = %q, want %q", gen.gotModel, DefaultGeminiModel)
	}
	if !strings.Contains(gen.gotPrompt, "Text: Acme Widgets") {
		t.Errorf("prompt does not carry the text: %q", gen.gotPrompt)
	}
}

func TestGeminiRecognizer_Errors(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"api error", &fakeGenerator{err: errors.New("quota exceeded")}},
		{"empty response", &fakeGenerator{text: ""}},
		{"not json", &fakeGenerator{text: "I could not find anything"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newGeminiRecognizer(tt.gen, "gemini-test")
			if _, err := rec.DetectEntities(context.Background(), "x", "en"); err == nil {
				t.Error("DetectEntities() error = nil, want error")
			}
		})
	}
}

func TestGeminiRecognizer_FeedsCategorizer(t *testing.T) {
	rec := newGeminiRecognizer(&fakeGenerator{text: `{"entities": [{"type": "ORGANIZATION"}]}`}, "")
	c := New(DefaultRules(), rec)

	got := c.Categorize(context.Background(), tx("Acme Widgets", ""))
	if got.Category != CategoryShopping {
		t.Errorf("Category = %q, want %q", got.Category, CategoryShopping)
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare array", `[{"type":"PERSON"}]`, `[{"type":"PERSON"}]`},
		{"fenced", "```json\n[]\n```", "[]"},
		{"chatter around array", "Here you go: [1] thanks", "[1]"},
		{"object", `{"entities": []}`, `{"entities": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.in); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
