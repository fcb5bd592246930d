// Package interval models half-open time ranges [Start, End) in UTC.
package interval

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Precision is the resolution every interval is truncated to. It matches
// what both storage backends persist.
const Precision = time.Millisecond

// Layout renders an instant at Precision in RFC 3339.
const Layout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrInvalidInterval = errors.New("start must be before end")
	ErrMissingOffset   = errors.New("timestamp must carry a UTC offset")
	ErrInvalidFormat   = errors.New("timestamp must be RFC 3339")
)

// offsetSuffix matches the zone designator RFC 3339 requires.
var offsetSuffix = regexp.MustCompile(`(?i)(z|[+-]\d{2}:\d{2})$`)

type Interval struct {
	Start time.Time
	End   time.Time
}

// New normalizes start and end to UTC and rejects empty or inverted ranges.
func New(start, end time.Time) (Interval, error) {
	iv := Interval{
		Start: normalize(start),
		End:   normalize(end),
	}
	if !iv.Start.Before(iv.End) {
		return Interval{}, fmt.Errorf("%w: start=%s end=%s", ErrInvalidInterval,
			iv.Start.Format(time.RFC3339Nano), iv.End.Format(time.RFC3339Nano))
	}
	return iv, nil
}

// Parse builds an Interval from two RFC 3339 timestamps.
func Parse(start, end string) (Interval, error) {
	s, err := ParseTimestamp(start)
	if err != nil {
		return Interval{}, fmt.Errorf("start_time: %w", err)
	}
	e, err := ParseTimestamp(end)
	if err != nil {
		return Interval{}, fmt.Errorf("end_time: %w", err)
	}
	return New(s, e)
}

// ParseTimestamp accepts RFC 3339 only. Local times without an offset are
// ambiguous and rejected.
func ParseTimestamp(value string) (time.Time, error) {
	if !offsetSuffix.MatchString(value) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMissingOffset, value)
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidFormat, value)
	}
	return normalize(t), nil
}

func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(Precision)
}

// Overlaps reports whether a and b share at least one instant. Touching
// endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func (iv Interval) Overlaps(other Interval) bool {
	return Overlaps(iv, other)
}

// ContainsInstant reports Start <= t < End.
func (iv Interval) ContainsInstant(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

func (iv Interval) Equal(other Interval) bool {
	return iv.Start.Equal(other.Start) && iv.End.Equal(other.End)
}

func (iv Interval) IsZero() bool {
	return iv.Start.IsZero() && iv.End.IsZero()
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339Nano), iv.End.Format(time.RFC3339Nano))
}
