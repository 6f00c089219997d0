// Package redact masks PHI-like substrings in free text before it is stored
// or rendered.
package redact

import "regexp"

// Token replaces every matched substring.
const Token = "[REDACTED]"

var phiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),       // SSN
	regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`),       // dates
	regexp.MustCompile(`(?i)\bMRN\s*[:#]?\s*\w+`),     // medical record numbers
	regexp.MustCompile(`(?i)\bAccount\s*#\s*\w+`),     // account numbers
}

// Text replaces SSN-like, date-like, MRN-prefixed and account-number
// substrings with Token. Extra patterns are applied after the built-ins.
func Text(s string, extra ...*regexp.Regexp) string {
	out := s
	for _, p := range phiPatterns {
		out = p.ReplaceAllString(out, Token)
	}
	for _, p := range extra {
		out = p.ReplaceAllString(out, Token)
	}
	return out
}
