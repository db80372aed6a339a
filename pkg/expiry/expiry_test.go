package expiry

import (
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestClassifyBoundaries(t *testing.T) {
	ref := *date(t, "2025-01-10")

	tests := []struct {
		expiry string
		want   Status
	}{
		{"2025-01-10", Status{Kind: Critical, Days: 0}},
		{"2025-01-17", Status{Kind: Critical, Days: 7}},
		{"2025-01-18", Status{Kind: Warning, Days: 8}},
		{"2025-02-09", Status{Kind: Warning, Days: 30}},
		{"2025-02-10", Status{Kind: Safe, Days: 31}},
		{"2025-01-09", Status{Kind: Expired, Days: 1}},
		{"2024-01-10", Status{Kind: Expired, Days: 366}},
	}

	for _, tt := range tests {
		t.Run(tt.expiry, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(ref, date(t, tt.expiry)))
		})
	}
}

func TestClassifyUnknownOnNil(t *testing.T) {
	assert.Equal(t, Status{Kind: Unknown}, Classify(time.Now(), nil))
	assert.Equal(t, Status{Kind: Unknown}, Classify(time.Time{}, nil))
}

func TestClassifyIgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	ref := time.Date(2025, 1, 10, 23, 59, 0, 0, loc)
	exp := time.Date(2025, 1, 10, 0, 1, 0, 0, loc)

	assert.Equal(t, Status{Kind: Critical, Days: 0}, Classify(ref, &exp))

	late := time.Date(2025, 1, 9, 23, 59, 59, 0, loc)
	assert.Equal(t, Status{Kind: Expired, Days: 1}, Classify(ref, &late))
}

func TestClassifyPurchaseAfterExpiryDoesNotPanic(t *testing.T) {
	// Stored rows may violate expiry > purchase; only the expiry date matters here.
	ref := *date(t, "2025-06-01")
	assert.Equal(t, Expired, Classify(ref, date(t, "0001-01-01")).Kind)
}

func TestThresholdsCustom(t *testing.T) {
	th := Thresholds{Critical: 3, Warning: 14}
	require.NoError(t, th.Validate())

	ref := *date(t, "2025-01-10")
	assert.Equal(t, Warning, th.Classify(ref, date(t, "2025-01-14")).Kind)
	assert.Equal(t, Safe, th.Classify(ref, date(t, "2025-01-25")).Kind)
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds.Validate())
	assert.ErrorIs(t, Thresholds{Critical: 30, Warning: 7}.Validate(), ErrInvalidThresholds)
	assert.ErrorIs(t, Thresholds{Critical: -1, Warning: 7}.Validate(), ErrInvalidThresholds)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = ParseDate("2025-03-04T10:20:30Z")
	require.NoError(t, err)
	assert.Equal(t, 4, d.Day())

	d, err = ParseDate("2025-03-04T10:20:30.123456+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.March, d.Month())

	_, err = ParseDate("2025-1-1")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseDate("next tuesday")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestFormatLabel(t *testing.T) {
	ref := *date(t, "2025-01-10")

	tests := []struct {
		expiry       string
		wantText     string
		wantSeverity string
	}{
		{"2025-01-09", "Jan 9, 2025 (Expired 1 day ago)", "expired"},
		{"2025-01-05", "Jan 5, 2025 (Expired 5 days ago)", "expired"},
		{"2025-01-10", "Jan 10, 2025 (0 days)", "critical"},
		{"2025-01-20", "Jan 20, 2025 (10 days)", "warning"},
		{"2025-06-01", "Jun 1, 2025", "safe"},
	}

	for _, tt := range tests {
		exp := date(t, tt.expiry)
		got := FormatLabel(Classify(ref, exp), exp)
		assert.Equal(t, tt.wantText, got.Text, tt.expiry)
		assert.Equal(t, tt.wantSeverity, got.Severity, tt.expiry)
	}

	assert.Equal(t, Label{Text: "N/A", Severity: "unknown"}, FormatLabel(Classify(ref, nil), nil))
}

func TestStatusStringAndColorize(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	s := Status{Kind: Expired, Days: 3}
	assert.Equal(t, "Expired 3 days ago", s.String())
	assert.Equal(t, s.String(), s.Colorize())
	assert.True(t, s.Urgent())
	assert.True(t, s.AtRisk())

	w := Status{Kind: Warning, Days: 12}
	assert.False(t, w.Urgent())
	assert.True(t, w.AtRisk())
	assert.False(t, Status{Kind: Safe, Days: 90}.AtRisk())
}
