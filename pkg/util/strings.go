package util

import (
	"regexp"
	"strconv"
	"strings"
)

// ParseIntList parses a comma-separated list of positive integers such as "5,20,60".
// Invalid or non-positive entries are dropped.
func ParseIntList(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err == nil && v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

var tickerPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.^=-]{0,15}$`)

// ValidTicker reports whether s, once normalized, is a plain exchange symbol such as
// "BRK.B", "^GSPC" or "EURUSD=X". Path separators and whitespace never match.
func ValidTicker(s string) bool {
	return tickerPattern.MatchString(NormalizeTicker(s))
}
