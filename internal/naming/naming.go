// Package naming canonicalizes tool server identifiers so that lookups by
// id, display name, or slug converge on the same registry entry.
package naming

import "strings"

// suffixes commonly appended to MCP server identifiers. They carry no
// identity and are stripped when building the canonical form.
var suffixes = []string{"-mcp-server", "-mcp", "-server"}

// Slug lowercases an identifier and replaces whitespace and underscores
// with dashes. It does not strip suffixes.
func Slug(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	return s
}

// Canonical returns the canonical lookup form of an identifier: the slug
// with all known suffixes stripped.
func Canonical(raw string) string {
	s := Slug(raw)
	for stripped := true; stripped; {
		stripped = false
		for _, suffix := range suffixes {
			if len(s) > len(suffix) && strings.HasSuffix(s, suffix) {
				s = strings.TrimSuffix(s, suffix)
				stripped = true
			}
		}
	}
	return s
}

// Variants returns the plausible lookup keys for an identifier, most
// specific first: the raw lowercase form, the slug, and the canonical
// form. Duplicates are removed while preserving order.
func Variants(raw string) []string {
	candidates := []string{
		strings.ToLower(strings.TrimSpace(raw)),
		Slug(raw),
		Canonical(raw),
	}

	seen := make(map[string]bool, len(candidates))
	variants := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		variants = append(variants, c)
	}
	return variants
}
