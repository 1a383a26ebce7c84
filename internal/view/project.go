// Package view derives display lists from the canonical queue. It filters
// and selects; it never re-sorts, since ordering is the server's job.
package view

import (
	"strings"
	"unicode"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/party"
)

// State is the per-client, transient view configuration. It is never shared
// between clients or persisted.
type State struct {
	Window      string
	SearchTerms []string
}

// Project returns the main display list: the canonical queued entries in
// canonical order, or for a non-all-time window the server-provided ranked
// entries, both narrowed by the search terms.
func Project(p *party.Party, ranked []party.QueueEntry, vs State) []party.QueueEntry {
	if p == nil {
		return nil
	}
	candidates := p.Queued()
	if vs.Window != "" && vs.Window != party.WindowAllTime {
		candidates = ranked
	}
	return filter(candidates, vs.SearchTerms)
}

// ProjectVetoed returns the vetoed view: the party's vetoed entries,
// narrowed by the same search terms.
func ProjectVetoed(p *party.Party, vs State) []party.QueueEntry {
	if p == nil {
		return nil
	}
	return filter(p.Vetoed(), vs.SearchTerms)
}

func filter(entries []party.QueueEntry, terms []string) []party.QueueEntry {
	text, tags := splitTerms(terms)
	if len(text) == 0 && len(tags) == 0 {
		return entries
	}
	var out []party.QueueEntry
	for _, e := range entries {
		if matchesText(e.Media, text) && matchesTags(e.Media, tags) {
			out = append(out, e)
		}
	}
	return out
}

// splitTerms separates tag terms (leading '#') from free-text terms.
func splitTerms(terms []string) (text, tags []string) {
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "#") {
			if n := normalizeTag(t[1:]); n != "" {
				tags = append(tags, n)
			}
			continue
		}
		text = append(text, strings.ToLower(t))
	}
	return text, tags
}

// matchesText: at least one free-text term appears in title, artist or
// category. An empty term set matches everything.
func matchesText(m party.MediaItem, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(m.Title + " " + strings.Join(m.Artists, " ") + " " + m.Category)
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

// matchesTags: at least one tag term matches the normalized tag set. An
// empty term set matches everything. A term matches a tag when it equals
// the tag's collapsed form or one of its separator-delimited tokens, so
// "#chill" finds "Chill-Vibes" but not "chilling".
func matchesTags(m party.MediaItem, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	set := make(map[string]bool)
	for _, tag := range m.Tags {
		if n := normalizeTag(tag); n != "" {
			set[n] = true
		}
		for _, tok := range tagTokens(tag) {
			set[tok] = true
		}
	}
	for _, t := range terms {
		if set[t] {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '-' || r == '_' || r == '.'
}

// normalizeTag lowercases, strips separators (whitespace, hyphen,
// underscore, dot), then strips any remaining non-word runes.
func normalizeTag(tag string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(tag) {
		if isSeparator(r) {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tagTokens splits a tag on its separators and normalizes each piece.
func tagTokens(tag string) []string {
	fields := strings.FieldsFunc(strings.ToLower(tag), isSeparator)
	var out []string
	for _, f := range fields {
		if n := normalizeTag(f); n != "" {
			out = append(out, n)
		}
	}
	return out
}
