// Package history narrows domain audit entries for display and builds the
// change descriptions written on every domain mutation.
package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/harveywai/leasedesk/pkg/database"
	"github.com/harveywai/leasedesk/pkg/expiry"
)

// Filter selects audit entries. Zero fields pass everything.
type Filter struct {
	Name string
	Date *time.Time
}

// ParseFilter builds a Filter from query-string values.
func ParseFilter(name, date string) (Filter, error) {
	d, err := expiry.ParseDate(date)
	if err != nil {
		return Filter{}, err
	}
	return Filter{Name: strings.TrimSpace(name), Date: d}, nil
}

// Matches reports whether e passes both the name and date conditions.
func (f Filter) Matches(e database.HistoryEntry) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(e.DomainName), strings.ToLower(f.Name)) {
		return false
	}
	if f.Date != nil && !expiry.SameDay(e.UpdatedAt, *f.Date) {
		return false
	}
	return true
}

// Project returns the entries matching f in their original order.
// The input slice is not modified.
func Project(entries []database.HistoryEntry, f Filter) []database.HistoryEntry {
	out := make([]database.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

type field struct {
	label string
	get   func(database.Domain) string
}

var fields = []field{
	{"Domain", func(d database.Domain) string { return d.DomainName }},
	{"Client", func(d database.Domain) string { return d.ClientName }},
	{"Registrar", func(d database.Domain) string { return d.Registrar }},
	{"Status", func(d database.Domain) string { return activeLabel(d.Active) }},
	{"Purchase date", func(d database.Domain) string { return d.PurchaseDate }},
	{"Expiry date", func(d database.Domain) string { return d.ExpiryDate }},
	{"SSH", func(d database.Domain) string { return d.SSHName }},
	{"SSH purchase date", func(d database.Domain) string { return d.SSHPurchaseDate }},
	{"SSH expiry date", func(d database.Domain) string { return d.SSHExpiryDate }},
	{"Hosting", func(d database.Domain) string { return d.HostingProvider }},
	{"Hosting purchase date", func(d database.Domain) string { return d.HostingPurchaseDate }},
	{"Hosting expiry date", func(d database.Domain) string { return d.HostingExpiryDate }},
}

// Describe lists the tracked fields that differ between before and after,
// e.g. "Registrar: GoDaddy -> Namecheap; Status: Active -> Inactive".
// It returns "" when nothing changed.
func Describe(before, after database.Domain) string {
	var parts []string
	for _, f := range fields {
		old, cur := f.get(before), f.get(after)
		if old == cur {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", f.label, orNone(old), orNone(cur)))
	}
	return strings.Join(parts, "; ")
}

// DescribeRenewal prefixes Describe with the renewed scope, e.g. "Renewed ssh plan: ...".
func DescribeRenewal(scope database.Scope, before, after database.Domain) string {
	changes := Describe(before, after)
	if changes == "" {
		return ""
	}
	return fmt.Sprintf("Renewed %s plan: %s", scope, changes)
}

func activeLabel(active bool) string {
	if active {
		return "Active"
	}
	return "Inactive"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
