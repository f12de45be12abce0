// Package backoff computes the wait between container restart attempts.
package backoff

import (
	"fmt"
	"time"
)

// Mode selects the delay schedule between restart attempts.
type Mode string

const (
	ModeExponential Mode = "exponential"
	ModeLinear      Mode = "linear"
)

// ParseMode validates a configured mode name. Empty selects the default
// exponential schedule.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeExponential, ModeLinear:
		return Mode(s), nil
	case "":
		return ModeExponential, nil
	}
	return "", fmt.Errorf("unknown backoff mode %q", s)
}

// maxShift bounds the doubling so the multiplier cannot overflow.
const maxShift = 20

// Delay returns the wait before restart attempt n (1-based).
//
// The two schedules produce these sequences:
//
//	exponential: base, base, 2×base, 4×base, 8×base, ...
//	linear:      base, 2×base, 4×base, 8×base, ...
//
// A non-positive base falls back to one second; attempts below one are
// treated as the first attempt.
func Delay(base time.Duration, attempt int, mode Mode) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if attempt < 1 {
		attempt = 1
	}

	var shift int
	switch mode {
	case ModeLinear:
		shift = attempt - 1
	default:
		shift = attempt - 2
	}
	if shift < 0 {
		shift = 0
	}
	if shift > maxShift {
		shift = maxShift
	}
	return base << uint(shift)
}
