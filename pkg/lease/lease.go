// Package lease classifies every expiry scope carried by a domain record.
package lease

import (
	"time"

	"github.com/harveywai/leasedesk/pkg/database"
	"github.com/harveywai/leasedesk/pkg/expiry"
)

// ScopeStatus is the classification of one scope of a domain.
type ScopeStatus struct {
	Scope  database.Scope
	Name   string
	Expiry *time.Time
	Status expiry.Status
}

// Present reports whether the domain carries a plan under scope. The domain
// scope is always present; SSH and hosting only when named or dated.
func Present(d database.Domain, scope database.Scope) bool {
	if scope == database.ScopeDomain {
		return true
	}
	name, purchase, exp := d.Plan(scope)
	return name != "" || purchase != "" || exp != ""
}

// Evaluate classifies scope of d against today. Stored dates that fail to parse
// are treated as missing and classify as Unknown.
func Evaluate(d database.Domain, scope database.Scope, th expiry.Thresholds, today time.Time) ScopeStatus {
	name, _, raw := d.Plan(scope)
	exp, err := expiry.ParseDate(raw)
	if err != nil {
		exp = nil
	}
	return ScopeStatus{
		Scope:  scope,
		Name:   name,
		Expiry: exp,
		Status: th.Classify(today, exp),
	}
}

// EvaluateAll classifies every present scope of d in display order.
func EvaluateAll(d database.Domain, th expiry.Thresholds, today time.Time) []ScopeStatus {
	out := make([]ScopeStatus, 0, len(database.Scopes))
	for _, scope := range database.Scopes {
		if Present(d, scope) {
			out = append(out, Evaluate(d, scope, th, today))
		}
	}
	return out
}

// Tally counts present scopes by scope and status tag.
type Tally map[database.Scope]map[string]int

// Count tallies every present scope of domains.
func Count(domains []database.Domain, th expiry.Thresholds, today time.Time) Tally {
	t := Tally{}
	for _, scope := range database.Scopes {
		t[scope] = map[string]int{}
	}
	for _, d := range domains {
		for _, s := range EvaluateAll(d, th, today) {
			t[s.Scope][s.Status.Kind.String()]++
		}
	}
	return t
}

// AtRisk returns the number of at-risk scopes across the tally.
func (t Tally) AtRisk() int {
	n := 0
	for _, byStatus := range t {
		n += byStatus[expiry.Expired.String()] + byStatus[expiry.Critical.String()] + byStatus[expiry.Warning.String()]
	}
	return n
}

// Labels flattens the tally for metrics labelled by scope and status.
func (t Tally) Labels() map[string]map[string]int {
	out := make(map[string]map[string]int, len(t))
	for scope, byStatus := range t {
		out[string(scope)] = byStatus
	}
	return out
}
