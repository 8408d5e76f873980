package slots

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MinutesPerHour = 60
	MinutesPerDay  = 24 * MinutesPerHour
)

var (
	ErrFormat       = errors.New("invalid time format")
	ErrPrecondition = errors.New("precondition violated")
)

// FormatError reports a time string that is not a valid "HH:MM".
type FormatError struct {
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid time %q: %s", e.Value, e.Reason)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// TimeToMinutes converts "HH:MM" into minutes since 00:00.
func TimeToMinutes(s string) (int, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok || strings.Contains(m, ":") {
		return 0, &FormatError{Value: s, Reason: "expected HH:MM"}
	}
	hours, err := parseDigits(h)
	if err != nil {
		return 0, &FormatError{Value: s, Reason: "hours " + err.Error()}
	}
	mins, err := parseDigits(m)
	if err != nil {
		return 0, &FormatError{Value: s, Reason: "minutes " + err.Error()}
	}
	if hours > 23 {
		return 0, &FormatError{Value: s, Reason: "hours out of range 0-23"}
	}
	if mins > 59 {
		return 0, &FormatError{Value: s, Reason: "minutes out of range 0-59"}
	}
	return hours*MinutesPerHour + mins, nil
}

func parseDigits(s string) (int, error) {
	if s == "" || len(s) > 2 {
		return 0, errors.New("must be one or two digits")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.New("must be numeric")
		}
	}
	return strconv.Atoi(s)
}

// MinutesToTime renders minutes since 00:00 as zero-padded "HH:MM".
// Callers keep m within [0, MinutesPerDay]; larger values render hours past 23.
func MinutesToTime(m int) string {
	return fmt.Sprintf("%02d:%02d", m/MinutesPerHour, m%MinutesPerHour)
}
