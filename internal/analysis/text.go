package analysis

import (
	"strings"
	"unicode"
)

// ExtractJSON pulls the outermost JSON object out of an LLM answer that may
// wrap it in prose or markdown fences.
func ExtractJSON(s string) (string, bool) {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"are": true, "was": true, "were": true, "you": true, "your": true, "our": true,
	"from": true, "into": true, "then": true, "than": true, "have": true, "has": true,
	"will": true, "would": true, "should": true, "could": true, "about": true, "what": true,
}

// terms returns lowercased, singularized content words of length >= 3.
func terms(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if stopwords[f] {
			continue
		}
		out = append(out, singular(f))
	}
	return out
}

func singular(w string) string {
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "ss"):
		return w
	case strings.HasSuffix(w, "s") && len(w) > 3:
		return w[:len(w)-1]
	}
	return w
}

func termSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, t := range terms(s) {
		set[t] = true
	}
	return set
}

// mentions reports whether every content word of concept occurs in the set.
func mentions(set map[string]bool, concept string) bool {
	ts := terms(concept)
	if len(ts) == 0 {
		return false
	}
	for _, t := range ts {
		if !set[t] {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
