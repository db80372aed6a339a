// Package pager implements the search + pagination state shared by every list view.
package pager

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize/english"
)

// ErrInvalidPageSize is returned when a page size outside the allowed set is requested.
var ErrInvalidPageSize = errors.New("invalid page size")

// DefaultPageSizes are the "entries per page" options offered by list views.
var DefaultPageSizes = []int{10, 25, 50, 100}

// MatchFunc reports whether record matches the search term.
type MatchFunc[T any] func(record T, term string) bool

// Page is one rendered page of a filtered collection.
// StartIndex and EndIndex are 1-based inclusive display bounds; StartIndex is 0 when nothing matched.
type Page[T any] struct {
	Items        []T `json:"items"`
	TotalEntries int `json:"total_entries"`
	StartIndex   int `json:"start_index"`
	EndIndex     int `json:"end_index"`
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	PageSize     int `json:"page_size"`
}

// Summary renders the "Showing X to Y of Z entries" line.
func (p Page[T]) Summary() string {
	return fmt.Sprintf("Showing %d to %d of %d entries", p.StartIndex, p.EndIndex, p.TotalEntries)
}

// CountText renders a record count such as "12 Domains" or "1 Client".
func CountText(n int, noun string) string {
	return english.Plural(n, noun, "")
}

// Pager holds PageState over a caller-owned collection. It never mutates the records
// it is given and re-derives the filtered set on every call.
type Pager[T any] struct {
	records []T
	match   MatchFunc[T]
	sizes   []int

	term string
	size int
	page int
}

// New creates a pager over records. Non-positive sizes are dropped; when none remain
// DefaultPageSizes is used. The initial page size is the smallest allowed one.
func New[T any](records []T, match MatchFunc[T], sizes []int) *Pager[T] {
	allowed := make([]int, 0, len(sizes))
	for _, s := range sizes {
		if s > 0 {
			allowed = append(allowed, s)
		}
	}
	if len(allowed) == 0 {
		allowed = slices.Clone(DefaultPageSizes)
	}
	slices.Sort(allowed)
	allowed = slices.Compact(allowed)

	return &Pager[T]{
		records: records,
		match:   match,
		sizes:   allowed,
		size:    allowed[0],
		page:    1,
	}
}

// PageSizes returns a copy of the allowed page sizes.
func (p *Pager[T]) PageSizes() []int {
	return slices.Clone(p.sizes)
}

// PageSize returns the current page size.
func (p *Pager[T]) PageSize() int {
	return p.size
}

// SearchTerm returns the current search term.
func (p *Pager[T]) SearchTerm() string {
	return p.term
}

// CurrentPage returns the current page number.
func (p *Pager[T]) CurrentPage() int {
	return p.page
}

// SetRecords replaces the source collection, e.g. after a delete or refresh.
// The current page is clamped to the new bounds.
func (p *Pager[T]) SetRecords(records []T) {
	p.records = records
	p.page = p.clamp(p.page, len(p.filter()))
}

// SetSearchTerm updates the search term and returns to the first page.
func (p *Pager[T]) SetSearchTerm(term string) {
	p.term = term
	p.page = 1
}

// SetPageSize switches to an allowed page size and returns to the first page.
// An unknown size is rejected and the previous size is kept.
func (p *Pager[T]) SetPageSize(size int) error {
	if !slices.Contains(p.sizes, size) {
		return fmt.Errorf("%w: %d (allowed %v)", ErrInvalidPageSize, size, p.sizes)
	}
	p.size = size
	p.page = 1
	return nil
}

// SetPage moves to page n, clamped into [1, TotalPages].
func (p *Pager[T]) SetPage(n int) {
	p.page = p.clamp(n, len(p.filter()))
}

// Page renders the current page. It has no side effects.
func (p *Pager[T]) Page() Page[T] {
	filtered := p.filter()
	total := len(filtered)
	totalPages := p.totalPages(total)
	current := p.clamp(p.page, total)

	start := (current - 1) * p.size
	end := min(start+p.size, total)

	items := make([]T, 0, end-start)
	items = append(items, filtered[start:end]...)

	page := Page[T]{
		Items:        items,
		TotalEntries: total,
		EndIndex:     end,
		CurrentPage:  current,
		TotalPages:   totalPages,
		PageSize:     p.size,
	}
	if total > 0 {
		page.StartIndex = start + 1
	}
	return page
}

func (p *Pager[T]) filter() []T {
	if p.term == "" || p.match == nil {
		return p.records
	}
	out := make([]T, 0, len(p.records))
	for _, r := range p.records {
		if p.match(r, p.term) {
			out = append(out, r)
		}
	}
	return out
}

func (p *Pager[T]) totalPages(total int) int {
	return max(1, (total+p.size-1)/p.size)
}

func (p *Pager[T]) clamp(n, total int) int {
	return min(max(n, 1), p.totalPages(total))
}

// ContainsFold builds a MatchFunc doing a case-insensitive substring match over the given fields.
// An empty term matches every record.
func ContainsFold[T any](fields ...func(T) string) MatchFunc[T] {
	return func(record T, term string) bool {
		if term == "" {
			return true
		}
		needle := strings.ToLower(term)
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field(record)), needle) {
				return true
			}
		}
		return false
	}
}
