// Package i18n provides internationalization support for error messages.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// Code is a machine-readable error code (duplicated from the errors package
// to avoid an import cycle).
type Code = string

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{
		"en-US": enUSCatalog,
	}
	matcher = language.NewMatcher([]language.Tag{
		language.AmericanEnglish, // first tag is the fallback
	})
)

// GetCatalog returns the catalog for the given locale.
// Unknown or empty locales fall back to en-US via language matching.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		return enUSCatalog
	}

	catalogsMu.RLock()
	c, ok := catalogs[requested]
	catalogsMu.RUnlock()
	if ok {
		return c
	}

	tag, _ := language.MatchStrings(matcher, requested)
	resolved := tag.String()

	catalogsMu.RLock()
	c, ok = catalogs[resolved]
	catalogsMu.RUnlock()
	if ok {
		return c
	}
	return enUSCatalog
}

// NewCatalog builds a catalog from a locale and message map.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	return &Catalog{locale: locale, messages: messages}
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template for code with the given metadata.
// Unknown codes render as the code itself so callers never lose the signal.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	msg, ok := c.messages[code]
	if !ok {
		return code
	}
	if !strings.Contains(msg, "{{") {
		return msg
	}

	tmpl, err := template.New(code).Parse(msg)
	if err != nil {
		return msg
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, metadata); err != nil {
		return msg
	}
	return buf.String()
}
