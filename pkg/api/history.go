package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harveywai/leasedesk/pkg/history"
	"github.com/harveywai/leasedesk/pkg/pager"
	"github.com/harveywai/leasedesk/pkg/validate"
)

// handleHistory lists audit entries, optionally for one domain, narrowed by the
// domain and date query parameters.
func (h *Handler) handleHistory(c *gin.Context) {
	filter, err := history.ParseFilter(c.Query("domain"), c.Query("date"))
	if err != nil {
		h.fail(c, validate.Errors{"date": "Enter a valid date (YYYY-MM-DD)."}, "history")
		return
	}

	entries, err := h.store.ListHistory(c.Request.Context(), c.Param("domainId"))
	if err != nil {
		h.fail(c, err, "history")
		return
	}

	page, meta, ok := paginate(c, history.Project(entries, filter), nil, h.pageSizes)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"history":    page.Items,
		"pagination": meta,
		"count_text": pager.CountText(meta.TotalEntries, "Update"),
	})
}
