// Package bytesize parses and formats human-friendly byte sizes, like the
// "2GB" disk space threshold in the preflight configuration.
package bytesize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Binary (1024-based) unit sizes.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
	GB uint64 = 1 << 30
	TB uint64 = 1 << 40
)

var unitMultipliers = map[string]uint64{
	"B":   1,
	"KB":  KB,
	"MB":  MB,
	"GB":  GB,
	"TB":  TB,
	"KIB": KB,
	"MIB": MB,
	"GIB": GB,
	"TIB": TB,
}

// Longest first so "B" cannot shadow "GB" or "GIB".
var units = []string{"KIB", "MIB", "GIB", "TIB", "TB", "GB", "MB", "KB", "B"}

// Parse parses a human-friendly byte size string. Units are 1024-based
// regardless of spelling: "2GB" and "2GiB" both mean 2×2^30 bytes.
// Fractional values are allowed ("1.5GB").
func Parse(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	s = strings.ToUpper(s)

	var unit, valueStr string
	for _, u := range units {
		if strings.HasSuffix(s, u) {
			unit = u
			valueStr = strings.TrimSuffix(s, u)
			break
		}
	}
	if unit == "" {
		return 0, fmt.Errorf("invalid size %q: missing unit (supported: B, KB, MB, GB, TB)", s)
	}

	valueStr = strings.TrimSpace(valueStr)
	if valueStr == "" {
		return 0, fmt.Errorf("invalid size %q: missing numeric value", s)
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q in %q: %w", valueStr, s, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("invalid size %q: negative value not allowed", s)
	}

	result := value * float64(unitMultipliers[unit])
	if result > math.MaxUint64 {
		return 0, fmt.Errorf("size %q exceeds the representable range", s)
	}
	return uint64(result), nil
}

// Format renders a byte count with its largest whole unit, one decimal
// place, for log lines and check messages.
func Format(n uint64) string {
	switch {
	case n >= TB:
		return fmt.Sprintf("%.1fTB", float64(n)/float64(TB))
	case n >= GB:
		return fmt.Sprintf("%.1fGB", float64(n)/float64(GB))
	case n >= MB:
		return fmt.Sprintf("%.1fMB", float64(n)/float64(MB))
	case n >= KB:
		return fmt.Sprintf("%.1fKB", float64(n)/float64(KB))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
