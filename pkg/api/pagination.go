package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harveywai/leasedesk/pkg/pager"
)

// pagination is the page metadata returned next to every list.
type pagination struct {
	TotalEntries int    `json:"total_entries"`
	StartIndex   int    `json:"start_index"`
	EndIndex     int    `json:"end_index"`
	CurrentPage  int    `json:"current_page"`
	TotalPages   int    `json:"total_pages"`
	PageSize     int    `json:"page_size"`
	PageSizes    []int  `json:"page_sizes"`
	Search       string `json:"search"`
	Summary      string `json:"summary"`
}

// paginate applies the search, page_size and page query parameters to records.
// It writes a 400 response and returns false for an unsupported page size.
func paginate[T any](c *gin.Context, records []T, match pager.MatchFunc[T], sizes []int) (pager.Page[T], pagination, bool) {
	p := pager.New(records, match, sizes)

	search := strings.TrimSpace(c.Query("search"))
	p.SetSearchTerm(search)

	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err == nil {
			err = p.SetPageSize(size)
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":    false,
				"error":      pager.ErrInvalidPageSize.Error(),
				"page_sizes": p.PageSizes(),
			})
			return pager.Page[T]{}, pagination{}, false
		}
	}

	if n, err := strconv.Atoi(c.Query("page")); err == nil {
		p.SetPage(n)
	}

	page := p.Page()
	return page, pagination{
		TotalEntries: page.TotalEntries,
		StartIndex:   page.StartIndex,
		EndIndex:     page.EndIndex,
		CurrentPage:  page.CurrentPage,
		TotalPages:   page.TotalPages,
		PageSize:     page.PageSize,
		PageSizes:    p.PageSizes(),
		Search:       search,
		Summary:      page.Summary(),
	}, true
}
