package checkin

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed classify.yaml
var defaultRulesYAML []byte

// PhraseRule maps a message substring to a category.
type PhraseRule struct {
	Phrase   string   `yaml:"phrase"`
	Category Category `yaml:"category"`
}

// Rules is the classification table.
type Rules struct {
	Codes   map[string]Category `yaml:"codes"`
	Phrases []PhraseRule        `yaml:"phrases"`
}

// Classifier turns verification errors into categories.
type Classifier struct {
	codes   map[string]Category
	phrases []PhraseRule
}

// ParseRules decodes a YAML classification table.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parsing classification rules: %w", err)
	}
	for code, cat := range r.Codes {
		if !validCategory(cat) {
			return Rules{}, fmt.Errorf("code %q: unknown category %q", code, cat)
		}
	}
	for _, p := range r.Phrases {
		if p.Phrase == "" {
			return Rules{}, errors.New("phrase rule with empty phrase")
		}
		if !validCategory(p.Category) {
			return Rules{}, fmt.Errorf("phrase %q: unknown category %q", p.Phrase, p.Category)
		}
	}
	return r, nil
}

// LoadRulesFile reads a classification table from disk.
func LoadRulesFile(path string) (Rules, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return Rules{}, fmt.Errorf("reading classification rules: %w", err)
	}
	return ParseRules(data)
}

// DefaultRules returns the embedded classification table.
func DefaultRules() Rules {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		// Embedded file; an error here is a build defect.
		panic("invalid embedded classify.yaml: " + err.Error())
	}
	return r
}

func validCategory(c Category) bool {
	switch c {
	case CategoryInvalidContext, CategoryCameraUnavailable, CategoryNotOpen,
		CategoryNotEnrolled, CategoryRecognitionMiss, CategoryTransient:
		return true
	}
	return false
}

// NewClassifier builds a classifier from rules.
func NewClassifier(r Rules) *Classifier {
	c := &Classifier{codes: make(map[string]Category, len(r.Codes))}
	for code, cat := range r.Codes {
		c.codes[strings.ToLower(code)] = cat
	}
	for _, p := range r.Phrases {
		c.phrases = append(c.phrases, PhraseRule{Phrase: foldText(p.Phrase), Category: p.Category})
	}
	return c
}

// DefaultClassifier uses the embedded table.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultRules())
}

// Classify returns the category of err. Anything not explicitly recognized
// is transient, so an unexpected failure costs one retry instead of ending
// the session.
func (c *Classifier) Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}

	var ce *Error
	if errors.As(err, &ce) && ce.Category != CategoryNone {
		return ce.Category
	}

	switch {
	case errors.Is(err, ErrInvalidContext):
		return CategoryInvalidContext
	case errors.Is(err, ErrCameraUnavailable):
		return CategoryCameraUnavailable
	case errors.Is(err, ErrNotOpen):
		return CategoryNotOpen
	case errors.Is(err, ErrNotEnrolled):
		return CategoryNotEnrolled
	case errors.Is(err, ErrNoMatch):
		return CategoryRecognitionMiss
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CategoryTransient
	}

	var coded Coded
	if errors.As(err, &coded) {
		if cat, ok := c.codes[strings.ToLower(coded.ErrorCode())]; ok {
			return cat
		}
	}

	return c.ClassifyMessage(err.Error())
}

// ClassifyMessage applies the legacy phrase table to a free-text reason.
func (c *Classifier) ClassifyMessage(msg string) Category {
	folded := foldText(msg)
	for _, p := range c.phrases {
		if strings.Contains(folded, p.Phrase) {
			return p.Category
		}
	}
	return CategoryTransient
}

// foldText lowercases s and strips diacritics, so "Nezahájeno" and
// "nezahajeno" compare equal.
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.ToLower(result)
}
