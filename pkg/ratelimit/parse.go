package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseBandwidth parses a bandwidth limit such as "512K", "10M", "1G" or "2048"
// into bytes per second. Units are binary (1K = 1024). An empty string or "0"
// means unlimited.
func ParseBandwidth(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" {
		return 0, nil
	}

	s = strings.TrimSuffix(s, "/S")
	s = strings.TrimSuffix(s, "B")

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1 << 10
	case strings.HasSuffix(s, "M"):
		multiplier = 1 << 20
	case strings.HasSuffix(s, "G"):
		multiplier = 1 << 30
	}
	if multiplier > 1 {
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bandwidth %q: %w", s, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("invalid bandwidth %q: must not be negative", s)
	}

	return int64(value * float64(multiplier)), nil
}
