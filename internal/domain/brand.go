package domain

import "strings"

// BrandRule configures the brand matcher.
type BrandRule struct {
	Aliases          []string // any one must appear, e.g. "bank of america", "bofa"
	CategoryKeywords []string // any one must appear when non-empty, e.g. "atm"
	ContextKeywords  []string // accepted in place of a category keyword when enabled
	UseContext       bool
}

// MatchFields are the free-text fields a listing is matched on. Absent
// fields are empty strings.
type MatchFields struct {
	Title       string
	Description string
	Type        string
	Categories  []string
	Address     string
}

// BrandMatcher classifies listings as belonging to a brand and category.
type BrandMatcher struct {
	aliases  []string
	category []string
	context  []string
}

// NewBrandMatcher lower-cases the rule's terms and drops blanks.
func NewBrandMatcher(rule BrandRule) BrandMatcher {
	m := BrandMatcher{
		aliases:  normalizeTerms(rule.Aliases),
		category: normalizeTerms(rule.CategoryKeywords),
	}
	if rule.UseContext {
		m.context = normalizeTerms(rule.ContextKeywords)
	}
	return m
}

// Matches reports whether the listing names the brand and, if category
// keywords are configured, the category (or a context keyword).
func (m BrandMatcher) Matches(f MatchFields) bool {
	text := f.text()
	if !containsAny(text, m.aliases) {
		return false
	}
	if len(m.category) == 0 {
		return true
	}
	return containsAny(text, m.category) || containsAny(text, m.context)
}

func (f MatchFields) text() string {
	parts := []string{f.Title, f.Description, f.Type, strings.Join(f.Categories, " "), f.Address}
	return strings.ToLower(strings.Join(parts, " | "))
}

// MatchFieldsFromListing extracts the matchable text of a brand-search listing.
func MatchFieldsFromListing(r RawPoiRecord) MatchFields {
	return MatchFields{
		Title:       r.String("title"),
		Description: r.String("description"),
		Type:        r.String("type"),
		Categories:  r.Strings("types"),
		Address:     r.String("address"),
	}
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
