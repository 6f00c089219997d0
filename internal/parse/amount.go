package parse

import (
	"strconv"
	"strings"
)

// currencyReplacer strips currency symbols and thousands separators before
// numeric conversion.
var currencyReplacer = strings.NewReplacer("$", "", "€", "", "£", "", ",", "")

// Amount parses free-form currency text into a signed value. Parenthesized
// values denote negatives. The boolean reports whether a numeric value was
// present; malformed input never panics.
func Amount(value string) (float64, bool) {
	cleaned := strings.TrimSpace(currencyReplacer.Replace(value))
	if cleaned == "" {
		return 0, false
	}
	negative := strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")")
	cleaned = strings.Trim(cleaned, "()")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}
