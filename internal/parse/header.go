package parse

import (
	"strings"

	"medbill/internal/domain"
	"medbill/internal/redact"
)

// headerScanLimit bounds the metadata probe to the leading non-empty lines;
// scanning the whole document risks false positives inside tabular data.
const headerScanLimit = 10

// CanonicalLabel maps an arbitrary column label onto the canonical field
// vocabulary. Unknown labels survive as their own lower-cased key so that
// unrecognized columns are carried through rather than dropped.
func CanonicalLabel(label string, synonyms map[string][]string) string {
	cleaned := strings.ToLower(strings.TrimSpace(label))
	for canonical, alts := range synonyms {
		if cleaned == canonical {
			return canonical
		}
		for _, alt := range alts {
			if cleaned == alt {
				return canonical
			}
		}
	}
	return cleaned
}

// canonicalHeaders canonicalizes a full header row, preserving column order.
func canonicalHeaders(headers []string, synonyms map[string][]string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = CanonicalLabel(h, synonyms)
	}
	return out
}

// rowMap pairs canonical header labels with the cells of one data row. When
// two columns collapse onto the same canonical label the first occurrence
// wins. Missing trailing cells map to the empty string.
func rowMap(headers []string, cells []string) map[string]string {
	m := make(map[string]string, len(headers))
	for i, h := range headers {
		if _, seen := m[h]; seen {
			continue
		}
		cell := ""
		if i < len(cells) {
			cell = strings.TrimSpace(cells[i])
		}
		m[h] = cell
	}
	return m
}

// ExtractHeader pulls provider, payer, patient and account metadata from the
// first non-empty lines of the raw text. Each field is set at most once, by
// the first line that matches it. Patient and account values pass through
// PHI redaction when enabled; provider and payer never do.
func ExtractHeader(rawText string, redactPHI bool) domain.Header {
	var header domain.Header
	count := 0
	for _, line := range strings.Split(rawText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		count++
		if count > headerScanLimit {
			break
		}
		lower := strings.ToLower(line)
		if header.Provider == nil && strings.Contains(lower, "clinic") {
			header.Provider = strptr(line)
		}
		if header.Payer == nil && strings.Contains(lower, "insurance") {
			header.Payer = strptr(line)
		}
		if header.Patient == nil && strings.Contains(lower, "patient") {
			header.Patient = strptr(maybeRedact(line, redactPHI))
		}
		if header.AccountNumber == nil && strings.Contains(lower, "account") {
			header.AccountNumber = strptr(maybeRedact(line, redactPHI))
		}
	}
	return header
}

func maybeRedact(s string, enabled bool) string {
	if !enabled {
		return s
	}
	return redact.Text(s)
}

func strptr(s string) *string {
	return &s
}
