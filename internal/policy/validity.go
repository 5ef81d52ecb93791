package policy

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyArgument is returned for empty or whitespace-only input
	ErrEmptyArgument = errors.New("argument is empty or only has whitespace")
	// ErrInvalidTimestamp is returned when an expiration is not RFC 3339 / ISO 8601
	ErrInvalidTimestamp = errors.New("invalid ISO 8601 date")
)

// RangeError reports a value outside of [Low, High]
type RangeError struct {
	Value int64
	Low   int64
	High  int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("argument %d out of range [%d, %d)", e.Value, e.Low, e.High)
}

// now is replaced in tests
var now = time.Now

// ComputeValidity converts an ISO 8601 expiration timestamp into a validity
// duration in seconds relative to now. Durations longer than maxDuration are
// capped at maxDuration; durations in the past are returned as negative values
// and must be rejected with EnsureRange.
func ComputeValidity(expiration string, maxDuration int64) (int64, error) {
	if strings.TrimSpace(expiration) == "" {
		return 0, ErrEmptyArgument
	}

	expiresAt, err := time.Parse(time.RFC3339, expiration)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}

	// Round down so an expiration a fraction of a second in the past is
	// negative rather than zero.
	d := expiresAt.Sub(now())
	secs := int64(d / time.Second)
	if d < 0 && d%time.Second != 0 {
		secs--
	}
	if secs > maxDuration {
		return maxDuration, nil
	}

	return secs, nil
}

// EnsureRange checks that value lies within [low, high]
func EnsureRange(value, low, high int64) (int64, error) {
	if value < low || value > high {
		return 0, &RangeError{Value: value, Low: low, High: high}
	}
	return value, nil
}

// EnsureNotEmpty returns the argument unchanged unless it is empty or only whitespace
func EnsureNotEmpty(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", ErrEmptyArgument
	}
	return value, nil
}
