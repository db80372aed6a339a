package expiry

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
)

// DisplayLayout is the date format used in list views (e.g. "Jan 10, 2025").
const DisplayLayout = "Jan 2, 2006"

// Label is the presentation of a classified expiry date.
type Label struct {
	Text     string `json:"text"`
	Severity string `json:"severity"`
}

// FormatLabel renders the expiry date with an annotation for Expired, Critical and Warning statuses.
func FormatLabel(s Status, expiry *time.Time) Label {
	if expiry == nil || s.Kind == Unknown {
		return Label{Text: "N/A", Severity: Unknown.String()}
	}

	date := expiry.Format(DisplayLayout)
	text := date
	switch s.Kind {
	case Expired:
		text = fmt.Sprintf("%s (Expired %s ago)", date, english.Plural(s.Days, "day", ""))
	case Critical, Warning:
		text = fmt.Sprintf("%s (%s)", date, english.Plural(s.Days, "day", ""))
	}

	return Label{Text: text, Severity: s.Kind.String()}
}

// Colorize returns String() wrapped in the console color for the bucket.
func (s Status) Colorize() string {
	switch s.Kind {
	case Expired, Critical:
		return color.RedString(s.String())
	case Warning:
		return color.YellowString(s.String())
	case Safe:
		return color.GreenString(s.String())
	default:
		return color.HiBlackString(s.String())
	}
}
