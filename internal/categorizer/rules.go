package categorizer

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule maps one category to the lowercase keywords that select it.
type Rule struct {
	Category string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Rules is an ordered rule table; earlier rules take precedence.
type Rules []Rule

type rulesFile struct {
	Categories []Rule `yaml:"categories"`
}

// DefaultRules returns the built-in rule table.
func DefaultRules() Rules {
	rules, err := ParseRules(defaultRulesYAML)
	if err != nil {
		// The embedded table is part of the binary; failing to parse it is a build defect.
		panic(fmt.Sprintf("categorizer: embedded rules: %v", err))
	}
	return rules
}

// LoadRules reads a YAML rule table from disk.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadRules: reading %q: %w", path, err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("LoadRules: %q: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes a YAML rule table, lowercasing keywords and dropping blanks.
func ParseRules(data []byte) (Rules, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ParseRules: unmarshal yaml: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("ParseRules: no categories defined")
	}

	seen := make(map[string]bool, len(f.Categories))
	rules := make(Rules, 0, len(f.Categories))
	for i, r := range f.Categories {
		name := strings.TrimSpace(r.Category)
		if name == "" {
			return nil, fmt.Errorf("ParseRules: category %d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("ParseRules: duplicate category %q", name)
		}
		seen[name] = true

		keywords := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				keywords = append(keywords, k)
			}
		}
		rules = append(rules, Rule{Category: name, Keywords: keywords})
	}
	return rules, nil
}

// Match returns the first category with a keyword contained in either field.
// Both fields are case-folded before matching.
func (rs Rules) Match(merchant, description string) (string, bool) {
	m := strings.ToLower(merchant)
	d := strings.ToLower(description)
	for _, r := range rs {
		for _, k := range r.Keywords {
			if strings.Contains(m, k) || strings.Contains(d, k) {
				return r.Category, true
			}
		}
	}
	return "", false
}
