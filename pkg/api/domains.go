package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harveywai/leasedesk/pkg/database"
	"github.com/harveywai/leasedesk/pkg/expiry"
	"github.com/harveywai/leasedesk/pkg/history"
	"github.com/harveywai/leasedesk/pkg/lease"
	"github.com/harveywai/leasedesk/pkg/pager"
	"github.com/harveywai/leasedesk/pkg/providers/domain"
	"github.com/harveywai/leasedesk/pkg/validate"
)

// scopeExpiry is the classified expiry of one plan as shown in the domain list.
type scopeExpiry struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Days     int    `json:"days"`
	Label    string `json:"label"`
	Severity string `json:"severity"`
}

// domainRow is a domain with its per-scope expiry labels.
type domainRow struct {
	database.Domain
	Expiry map[database.Scope]scopeExpiry `json:"expiry"`
}

func (h *Handler) row(d database.Domain, today time.Time) domainRow {
	statuses := lease.EvaluateAll(d, h.thresholds, today)
	out := domainRow{Domain: d, Expiry: make(map[database.Scope]scopeExpiry, len(statuses))}
	for _, s := range statuses {
		label := expiry.FormatLabel(s.Status, s.Expiry)
		out.Expiry[s.Scope] = scopeExpiry{
			Name:     s.Name,
			Status:   s.Status.Kind.String(),
			Days:     s.Status.Days,
			Label:    label.Text,
			Severity: label.Severity,
		}
	}
	return out
}

var matchDomain = pager.ContainsFold(
	func(d domainRow) string { return d.DomainName },
	func(d domainRow) string { return d.ClientName },
	func(d domainRow) string { return d.Registrar },
	func(d domainRow) string { return d.SSHName },
	func(d domainRow) string { return d.HostingProvider },
)

func (h *Handler) handleListDomains(c *gin.Context) {
	domains, err := h.store.ListDomains(c.Request.Context())
	if err != nil {
		h.fail(c, err, "domain")
		return
	}
	today := h.today()
	rows := make([]domainRow, 0, len(domains))
	for _, d := range domains {
		rows = append(rows, h.row(d, today))
	}

	page, meta, ok := paginate(c, rows, matchDomain, h.pageSizes)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"domains":    page.Items,
		"pagination": meta,
		"count_text": pager.CountText(meta.TotalEntries, "Domain"),
	})
}

// clientFor loads the client a domain form refers to. A missing client is a
// validation error on client_id.
func (h *Handler) clientFor(c *gin.Context, id string) (database.Client, error) {
	client, err := h.store.GetClient(c.Request.Context(), strings.TrimSpace(id))
	if errors.Is(err, database.ErrNotFound) {
		return database.Client{}, validate.Errors{"client_id": "Select an existing client."}
	}
	return client, err
}

func (h *Handler) handleAddDomain(c *gin.Context) {
	var in validate.DomainInput
	if !bindJSON(c, &in) {
		return
	}
	d, err := in.Domain(h.today())
	if err != nil {
		h.fail(c, err, "domain")
		return
	}
	client, err := h.clientFor(c, d.ClientID)
	if err != nil {
		h.fail(c, err, "client")
		return
	}
	d.ClientName = client.Name

	if err := h.store.CreateDomain(c.Request.Context(), &d); err != nil {
		h.fail(c, err, "domain")
		return
	}
	h.log.Info("domain added", zap.String("domain", d.DomainName), zap.String("client", d.ClientName))
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Domain added successfully",
		"domain":  h.row(d, h.today()),
	})
}

func (h *Handler) handleGetDomain(c *gin.Context) {
	d, err := h.store.GetDomain(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "domain")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "domain": h.row(d, h.today())})
}

// handleUpdateDomain edits the registration info of a domain. Plans are changed
// through the renew endpoint.
func (h *Handler) handleUpdateDomain(c *gin.Context) {
	var in validate.DomainInfoInput
	if !bindJSON(c, &in) {
		return
	}

	var client database.Client
	if strings.TrimSpace(in.ClientID) != "" {
		var err error
		if client, err = h.clientFor(c, in.ClientID); err != nil {
			h.fail(c, err, "client")
			return
		}
	}

	d, err := h.store.MutateDomain(c.Request.Context(), c.Param("id"), func(d *database.Domain) (string, error) {
		before := *d
		if err := in.Apply(d); err != nil {
			return "", err
		}
		d.ClientName = client.Name
		return history.Describe(before, *d), nil
	})
	if err != nil {
		h.fail(c, err, "domain")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Domain updated successfully",
		"domain":  h.row(d, h.today()),
	})
}

func (h *Handler) handleRenewDomain(c *gin.Context) {
	var in validate.RenewInput
	if !bindJSON(c, &in) {
		return
	}
	today := h.today()

	d, err := h.store.MutateDomain(c.Request.Context(), c.Param("id"), func(d *database.Domain) (string, error) {
		before := *d
		scope, err := in.Apply(d, today)
		if err != nil {
			return "", err
		}
		return history.DescribeRenewal(scope, before, *d), nil
	})
	if err != nil {
		h.fail(c, err, "domain")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Plan renewed successfully",
		"domain":  h.row(d, today),
	})
}

func (h *Handler) handleRefreshDomain(c *gin.Context) {
	if h.refresher == nil {
		errorJSON(c, http.StatusServiceUnavailable, "WHOIS lookups are disabled")
		return
	}
	d, changed, err := h.refresher.Refresh(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.fail(c, err, "domain")
			return
		}
		h.log.Warn("whois refresh failed", zap.String("id", c.Param("id")), zap.Error(err))
		errorJSON(c, http.StatusBadGateway, "WHOIS lookup failed")
		return
	}
	msg := "Domain is up to date"
	if changed {
		msg = "Domain refreshed from WHOIS"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"changed": changed,
		"message": msg,
		"domain":  h.row(d, h.today()),
	})
}

func (h *Handler) handleDeleteDomain(c *gin.Context) {
	if err := h.store.DeleteDomain(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "domain")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Domain deleted successfully"})
}

// handleLookup resolves WHOIS data used to prefill the add form.
func (h *Handler) handleLookup(c *gin.Context) {
	name := strings.ToLower(strings.TrimSpace(c.Query("name")))
	if !validate.ValidDomainName(name) {
		c.JSON(http.StatusBadRequest, validate.Errors{"name": "Enter a valid domain (example: example.com)."})
		return
	}
	if h.resolver == nil {
		errorJSON(c, http.StatusServiceUnavailable, "WHOIS lookups are disabled")
		return
	}

	info, err := h.resolver.Lookup(c.Request.Context(), name)
	if h.metrics != nil {
		h.metrics.IncWhois(err == nil)
	}
	if err != nil {
		h.log.Warn("whois lookup failed", zap.String("domain", name), zap.Error(err))
		errorJSON(c, http.StatusBadGateway, "WHOIS lookup failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"domain":       info.Domain,
		"registrar":    info.Registrar,
		"expiry_date":  dateOnly(info.ExpiryDate),
		"name_servers": nonNil(info.NameServers),
		"certificate":  certificateJSON(info.Certificate),
	})
}

func dateOnly(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func certificateJSON(cert *domain.Certificate) gin.H {
	if cert == nil {
		return nil
	}
	return gin.H{"issuer": cert.Issuer, "expiry_date": cert.ExpiryDate.Format(time.DateOnly)}
}
