// Package expiry classifies lease expiry dates into risk buckets and renders
// them as human-readable labels.
package expiry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultCriticalDays is the highest days-left value still reported as Critical.
	DefaultCriticalDays = 7
	// DefaultWarningDays is the highest days-left value still reported as Warning.
	DefaultWarningDays = 30

	secondsPerDay = 24 * 60 * 60
)

var (
	// ErrInvalidDate is returned by ParseDate for input that is neither empty nor a supported layout.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidThresholds is returned when warning days do not exceed critical days.
	ErrInvalidThresholds = errors.New("invalid expiry thresholds")
)

// Kind is the bucket an expiry date falls into.
type Kind int

const (
	Unknown Kind = iota
	Expired
	Critical
	Warning
	Safe
)

// String returns the lower-case severity tag for the kind.
func (k Kind) String() string {
	switch k {
	case Expired:
		return "expired"
	case Critical:
		return "critical"
	case Warning:
		return "warning"
	case Safe:
		return "safe"
	default:
		return "unknown"
	}
}

// Status is the classification of one expiry date.
// Days is the number of days ago for Expired, days left otherwise, and zero for Unknown.
type Status struct {
	Kind Kind
	Days int
}

// AtRisk reports whether the status should be surfaced as needing attention.
func (s Status) AtRisk() bool {
	return s.Kind == Expired || s.Kind == Critical || s.Kind == Warning
}

// Urgent reports whether the status warrants an alert.
func (s Status) Urgent() bool {
	return s.Kind == Expired || s.Kind == Critical
}

// String renders the status for logs and console output.
func (s Status) String() string {
	switch s.Kind {
	case Expired:
		return fmt.Sprintf("Expired %d days ago", s.Days)
	case Critical:
		return fmt.Sprintf("Critical (%d days left)", s.Days)
	case Warning:
		return fmt.Sprintf("Warning (%d days left)", s.Days)
	case Safe:
		return fmt.Sprintf("Safe (%d days left)", s.Days)
	default:
		return "Unknown"
	}
}

// Thresholds holds the inclusive upper bounds, in days left, of the Critical and Warning buckets.
type Thresholds struct {
	Critical int `yaml:"critical_days" json:"critical_days"`
	Warning  int `yaml:"warning_days" json:"warning_days"`
}

// DefaultThresholds are the 7 / 30 day bounds used across the console.
var DefaultThresholds = Thresholds{
	Critical: DefaultCriticalDays,
	Warning:  DefaultWarningDays,
}

// Validate checks that the buckets are non-empty and ordered.
func (t Thresholds) Validate() error {
	if t.Critical < 0 || t.Warning <= t.Critical {
		return fmt.Errorf("%w: critical=%d warning=%d", ErrInvalidThresholds, t.Critical, t.Warning)
	}
	return nil
}

// Classify buckets expiry relative to reference. A nil expiry is Unknown.
// Both dates are reduced to their calendar day first, so a lease expiring today has zero days left.
func (t Thresholds) Classify(reference time.Time, expiry *time.Time) Status {
	if expiry == nil {
		return Status{Kind: Unknown}
	}

	daysLeft := DaysBetween(reference, *expiry)
	switch {
	case daysLeft < 0:
		return Status{Kind: Expired, Days: -daysLeft}
	case daysLeft <= t.Critical:
		return Status{Kind: Critical, Days: daysLeft}
	case daysLeft <= t.Warning:
		return Status{Kind: Warning, Days: daysLeft}
	default:
		return Status{Kind: Safe, Days: daysLeft}
	}
}

// Classify buckets expiry relative to reference using DefaultThresholds.
func Classify(reference time.Time, expiry *time.Time) Status {
	return DefaultThresholds.Classify(reference, expiry)
}

// Day returns the calendar date of t (as seen in t's own location) at midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from one date to another.
func DaysBetween(from, to time.Time) int {
	return int((Day(to).Unix() - Day(from).Unix()) / secondsPerDay)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses a YYYY-MM-DD date or an ISO-8601 timestamp.
// Empty input means "no date" and yields nil without error.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
