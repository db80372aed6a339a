// Package api exposes the console REST endpoints over gin.
package api

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harveywai/leasedesk/pkg/auth"
	"github.com/harveywai/leasedesk/pkg/database"
	"github.com/harveywai/leasedesk/pkg/expiry"
	"github.com/harveywai/leasedesk/pkg/metrics"
	"github.com/harveywai/leasedesk/pkg/middleware"
	"github.com/harveywai/leasedesk/pkg/pager"
	"github.com/harveywai/leasedesk/pkg/providers/domain"
	"github.com/harveywai/leasedesk/pkg/validate"
)

//go:embed web/index.html
var indexHTML []byte

// Refresher updates a stored domain from WHOIS and reports whether it changed.
type Refresher interface {
	Refresh(ctx context.Context, id string) (database.Domain, bool, error)
}

// Options configures a Handler. Store, Issuer and Log are required.
type Options struct {
	Store      *database.Store
	Issuer     *auth.Issuer
	Log        *zap.Logger
	Thresholds expiry.Thresholds
	PageSizes  []int

	// CookieSecure marks session cookies Secure; enable behind TLS.
	CookieSecure bool

	Resolver  domain.Resolver
	Refresher Refresher
	Metrics   *metrics.Metrics

	// Now overrides the clock used for "today".
	Now func() time.Time
}

// Handler serves the console API.
type Handler struct {
	store      *database.Store
	issuer     *auth.Issuer
	log        *zap.Logger
	thresholds expiry.Thresholds
	pageSizes  []int
	secure     bool
	resolver   domain.Resolver
	refresher  Refresher
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New creates a Handler.
func New(opts Options) *Handler {
	h := &Handler{
		store:      opts.Store,
		issuer:     opts.Issuer,
		log:        opts.Log,
		thresholds: opts.Thresholds,
		pageSizes:  opts.PageSizes,
		secure:     opts.CookieSecure,
		resolver:   opts.Resolver,
		refresher:  opts.Refresher,
		metrics:    opts.Metrics,
		now:        opts.Now,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.thresholds == (expiry.Thresholds{}) {
		h.thresholds = expiry.DefaultThresholds
	}
	if len(h.pageSizes) == 0 {
		h.pageSizes = pager.DefaultPageSizes
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(h.log), middleware.RequestLogger(h.log))
	if h.metrics != nil {
		r.Use(h.metrics.Middleware())
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	r.GET("/", h.handleIndex)
	r.GET("/healthz", h.handleHealth)

	public := r.Group("/api/admin")
	{
		public.POST("/login/", h.handleLogin)
		public.POST("/refresh/", h.handleRefresh)
	}

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(h.issuer))
	{
		api.GET("/auth/check/", h.handleCheck)
		api.POST("/admin/logout/", h.handleLogout)

		api.GET("/client/list/", h.handleListClients)
		api.GET("/client/names/", h.handleClientNames)
		api.POST("/client/add/", h.handleAddClient)
		api.GET("/client/get/:id/", h.handleGetClient)
		api.PUT("/client/update/:id/", h.handleUpdateClient)
		api.DELETE("/client/delete/:id/", h.handleDeleteClient)

		api.GET("/domain/list/", h.handleListDomains)
		api.POST("/domain/add/", h.handleAddDomain)
		api.GET("/domain/get/:id/", h.handleGetDomain)
		api.PUT("/domain/update/:id/", h.handleUpdateDomain)
		api.PATCH("/domain/renew/:id/", h.handleRenewDomain)
		api.POST("/domain/refresh/:id/", h.handleRefreshDomain)
		api.DELETE("/domain/delete/:id/", h.handleDeleteDomain)
		api.GET("/domain/lookup/", h.handleLookup)
		api.GET("/domain/history/", h.handleHistory)
		api.GET("/domain/history/:domainId/", h.handleHistory)

		api.GET("/dashboard/summary/", h.handleSummary)
		api.GET("/preferences/", h.handleGetPreferences)
		api.PUT("/preferences/", h.handlePutPreferences)
		api.GET("/nav/breadcrumbs/", h.handleBreadcrumbs)
	}

	admin := r.Group("/api/admin/users")
	admin.Use(middleware.AuthMiddleware(h.issuer), middleware.RoleMiddleware(auth.RoleAdmin))
	{
		admin.GET("/", h.handleListUsers)
		admin.POST("/", h.handleCreateUser)
		admin.POST("/:id/approve/", h.handleApproveUser)
		admin.POST("/:id/reject/", h.handleRejectUser)
	}

	return r
}

func (h *Handler) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) today() time.Time {
	return expiry.Day(h.now())
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// fail maps store and validation errors onto HTTP responses. what names the
// resource in not-found and conflict messages.
func (h *Handler) fail(c *gin.Context, err error, what string) {
	var verrs validate.Errors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, verrs)
	case errors.Is(err, database.ErrNotFound):
		errorJSON(c, http.StatusNotFound, what+" not found")
	case errors.Is(err, database.ErrAlreadyExists):
		errorJSON(c, http.StatusConflict, what+" already exists")
	case errors.Is(err, context.Canceled):
		c.Abort()
	default:
		h.log.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		errorJSON(c, http.StatusInternalServerError, "internal server error")
	}
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
