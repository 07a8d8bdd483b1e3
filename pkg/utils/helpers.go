package utils

import (
	"strconv"
	"time"
)

// ParseDuration safely parses a duration string like "5m", falling back to
// the provided default on empty or invalid input.
func ParseDuration(d string, fallback time.Duration) time.Duration {
	if d == "" {
		return fallback
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return fallback
	}
	return duration
}

// ParseInt parses an integer string, falling back on invalid input.
func ParseInt(s string, fallback int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return i
}

// FormatCents renders integer cents as a fixed two-decimal amount string.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + pad2(cents%100)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
