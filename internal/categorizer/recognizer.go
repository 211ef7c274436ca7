package categorizer

import "context"

// EntityTypeOrganization is the entity tag that maps to CategoryShopping.
const EntityTypeOrganization = "ORGANIZATION"

// Entity is one named entity found in free text.
type Entity struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// EntityRecognizer extracts named entities from text. languageCode is a
// hint such as "en".
type EntityRecognizer interface {
	DetectEntities(ctx context.Context, text, languageCode string) ([]Entity, error)
}

// NoopRecognizer never finds anything, so unmatched transactions land in CategoryOthers.
type NoopRecognizer struct{}

// DetectEntities implements EntityRecognizer.
func (NoopRecognizer) DetectEntities(ctx context.Context, text, languageCode string) ([]Entity, error) {
	return nil, nil
}

// RecognizerFunc adapts a function to EntityRecognizer.
type RecognizerFunc func(ctx context.Context, text, languageCode string) ([]Entity, error)

// DetectEntities implements EntityRecognizer.
func (f RecognizerFunc) DetectEntities(ctx context.Context, text, languageCode string) ([]Entity, error) {
	return f(ctx, text, languageCode)
}
