package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harveywai/leasedesk/pkg/database"
	"github.com/harveywai/leasedesk/pkg/lease"
	"github.com/harveywai/leasedesk/pkg/middleware"
	"github.com/harveywai/leasedesk/pkg/navigation"
)

// handleSummary returns the dashboard totals and the expiry buckets per scope.
func (h *Handler) handleSummary(c *gin.Context) {
	ctx := c.Request.Context()
	clients, err := h.store.CountClients(ctx)
	if err != nil {
		h.fail(c, err, "client")
		return
	}
	domains, err := h.store.ListDomains(ctx)
	if err != nil {
		h.fail(c, err, "domain")
		return
	}

	active := 0
	for _, d := range domains {
		if d.Active {
			active++
		}
	}
	tally := lease.Count(domains, h.thresholds, h.today())

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"clients":        clients,
		"domains":        len(domains),
		"active_domains": active,
		"at_risk":        tally.AtRisk(),
		"expiry":         tally.Labels(),
		"thresholds": gin.H{
			"critical_days": h.thresholds.Critical,
			"warning_days":  h.thresholds.Warning,
		},
	})
}

func (h *Handler) preferencesJSON(c *gin.Context, prefs database.Preferences) {
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"sidebar_pinned": prefs.SidebarPinned,
		"sidebar_width":  navigation.SidebarWidth(prefs.SidebarPinned),
	})
}

func (h *Handler) handleGetPreferences(c *gin.Context) {
	id, _ := middleware.UserID(c)
	prefs, err := h.store.GetPreferences(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "preferences")
		return
	}
	h.preferencesJSON(c, prefs)
}

func (h *Handler) handlePutPreferences(c *gin.Context) {
	var body struct {
		SidebarPinned *bool `json:"sidebar_pinned"`
	}
	if !bindJSON(c, &body) {
		return
	}
	if body.SidebarPinned == nil {
		c.JSON(http.StatusBadRequest, gin.H{"sidebar_pinned": "Sidebar state is required."})
		return
	}

	id, _ := middleware.UserID(c)
	prefs, err := h.store.SavePreferences(c.Request.Context(), database.Preferences{
		UserID:        id,
		SidebarPinned: *body.SidebarPinned,
	})
	if err != nil {
		h.fail(c, err, "preferences")
		return
	}
	h.preferencesJSON(c, prefs)
}

// handleBreadcrumbs returns the trail for a console route. Routes addressing a
// record are labelled with the record's name when it exists.
func (h *Handler) handleBreadcrumbs(c *gin.Context) {
	path := c.Query("path")
	pattern, params, ok := navigation.Match(path)
	if !ok {
		errorJSON(c, http.StatusNotFound, "unknown route")
		return
	}

	relabel := map[string]string{}
	ctx := c.Request.Context()
	switch {
	case strings.HasPrefix(pattern, "/domain/history/"):
		if d, err := h.store.GetDomain(ctx, params["domainId"]); err == nil {
			relabel["Domain History"] = d.DomainName + " History"
		}
	case strings.HasPrefix(pattern, "/domain/update/"):
		if d, err := h.store.GetDomain(ctx, params["id"]); err == nil {
			relabel["Edit Domain"] = "Edit " + d.DomainName
		}
	case strings.HasPrefix(pattern, "/client/update/"):
		if cl, err := h.store.GetClient(ctx, params["id"]); err == nil {
			relabel["Edit Client"] = "Edit " + cl.Name
		}
	}

	crumbs, _ := navigation.Trail(path, relabel)
	c.JSON(http.StatusOK, gin.H{"success": true, "breadcrumbs": crumbs})
}
