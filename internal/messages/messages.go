// Package messages holds the localized guidance texts returned with face login errors.
package messages

import (
	_ "embed"
	"fmt"
	"sort"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var messagesYAML []byte

// Message codes shared with the HTTP error responses.
const (
	CodeInvalidDescriptor = "invalid_descriptor"
	CodeNoEnrollments     = "no_enrollments"
	CodeNoMatch           = "no_match"
	CodeStoreUnavailable  = "store_unavailable"
	CodeNotEnrolled       = "not_enrolled"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeInvalidRequest    = "invalid_request"
	CodeInternal          = "internal_error"
)

// Catalog maps language tags to message texts.
type Catalog struct {
	tags    []language.Tag
	texts   []map[string]string
	matcher language.Matcher
}

// Load parses the embedded catalog. English is the fallback language.
func Load() (*Catalog, error) {
	return parse(messagesYAML)
}

// MustLoad is Load for package initialisation; the catalog is embedded so failure is a build defect.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic("failed to load embedded messages.yaml: " + err.Error())
	}
	return c
}

func parse(data []byte) (*Catalog, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	if _, ok := raw["en"]; !ok {
		return nil, fmt.Errorf("messages: missing fallback language %q", "en")
	}

	langs := make([]string, 0, len(raw))
	for lang := range raw {
		if lang != "en" {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	// The first tag is the matcher's default.
	langs = append([]string{"en"}, langs...)

	c := &Catalog{}
	for _, lang := range langs {
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("messages: invalid language %q: %w", lang, err)
		}
		c.tags = append(c.tags, tag)
		c.texts = append(c.texts, raw[lang])
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Lookup returns the text for code in the best language for an Accept-Language header.
// Missing translations fall back to English, and unknown codes to the code itself.
func (c *Catalog) Lookup(acceptLanguage, code string) string {
	tags, _, _ := language.ParseAcceptLanguage(acceptLanguage)
	_, idx, _ := c.matcher.Match(tags...)

	if text, ok := c.texts[idx][code]; ok {
		return text
	}
	if text, ok := c.texts[0][code]; ok {
		return text
	}
	return code
}

// Languages returns the supported language tags, fallback first.
func (c *Catalog) Languages() []language.Tag {
	return append([]language.Tag(nil), c.tags...)
}
