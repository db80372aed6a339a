// Package sweep periodically refreshes domain registration data, classifies every
// lease scope and alerts on the ones that are expired or about to expire.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harveywai/leasedesk/pkg/database"
	"github.com/harveywai/leasedesk/pkg/expiry"
	"github.com/harveywai/leasedesk/pkg/history"
	"github.com/harveywai/leasedesk/pkg/lease"
	"github.com/harveywai/leasedesk/pkg/metrics"
	"github.com/harveywai/leasedesk/pkg/notify"
	"github.com/harveywai/leasedesk/pkg/providers/domain"
)

// Store is the subset of the database store used by the sweep.
type Store interface {
	ListDomains(ctx context.Context) ([]database.Domain, error)
	GetDomain(ctx context.Context, id string) (database.Domain, error)
	MutateDomain(ctx context.Context, id string, mutate func(d *database.Domain) (string, error)) (database.Domain, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
}

// Notifier delivers one alert.
type Notifier interface {
	Notify(ctx context.Context, alert notify.Alert) error
}

// Options configures a Sweeper.
type Options struct {
	Thresholds   expiry.Thresholds
	Interval     time.Duration
	Workers      int
	WhoisRefresh bool
	// Out receives the colored console summary. Nil discards it.
	Out io.Writer
}

// Report summarizes one sweep.
type Report struct {
	Domains   int
	Refreshed int
	Alerts    int
	Tally     lease.Tally
}

// Sweeper runs expiry sweeps.
type Sweeper struct {
	store    Store
	resolver domain.Resolver
	notifier Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger
	opts     Options
	now      func() time.Time

	mu sync.Mutex // serializes sweeps
}

// New creates a Sweeper. Resolver and notifier may be nil to disable WHOIS refresh and alerts.
func New(store Store, resolver domain.Resolver, notifier Notifier, m *metrics.Metrics, log *zap.Logger, opts Options) *Sweeper {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Sweeper{
		store:    store,
		resolver: resolver,
		notifier: notifier,
		metrics:  m,
		log:      log,
		opts:     opts,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep performs one pass over all domains.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	if s.metrics != nil {
		defer s.metrics.ObserveSweep(time.Now())
	}

	domains, err := s.store.ListDomains(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list domains: %w", err)
	}
	report := Report{Domains: len(domains)}

	if s.opts.WhoisRefresh && s.resolver != nil {
		domains, report.Refreshed, err = s.refreshAll(ctx, domains)
		if err != nil {
			return report, err
		}
	}

	report.Tally = lease.Count(domains, s.opts.Thresholds, start)
	if s.metrics != nil {
		s.metrics.SetLeases(report.Tally.Labels())
	}

	if s.notifier != nil {
		report.Alerts = s.alert(ctx, domains, start)
	}

	s.printSummary(domains, report, start)
	s.log.Info("sweep finished",
		zap.Int("domains", report.Domains),
		zap.Int("refreshed", report.Refreshed),
		zap.Int("at_risk", report.Tally.AtRisk()),
		zap.Int("alerts", report.Alerts),
	)
	return report, nil
}

// refreshAll looks up every active domain with at most Workers lookups in flight.
// Lookup failures are logged and the stored row is kept.
func (s *Sweeper) refreshAll(ctx context.Context, domains []database.Domain) ([]database.Domain, int, error) {
	out := make([]database.Domain, len(domains))
	copy(out, domains)
	changed := make([]bool, len(domains))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, d := range domains {
		if !d.Active {
			continue
		}
		g.Go(func() error {
			updated, ok, err := s.refresh(gctx, d.ID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Warn("whois refresh failed", zap.String("domain", d.DomainName), zap.Error(err))
				return nil
			}
			out[i], changed[i] = updated, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domains, 0, err
	}

	n := 0
	for _, c := range changed {
		if c {
			n++
		}
	}
	return out, n, nil
}

// Refresh looks up one domain and stores the registrar and expiry date WHOIS reports.
// It reports whether anything changed.
func (s *Sweeper) Refresh(ctx context.Context, id string) (database.Domain, bool, error) {
	if s.resolver == nil {
		return database.Domain{}, false, errors.New("whois lookups are disabled")
	}
	return s.refresh(ctx, id)
}

func (s *Sweeper) refresh(ctx context.Context, id string) (database.Domain, bool, error) {
	current, err := s.store.GetDomain(ctx, id)
	if err != nil {
		return database.Domain{}, false, err
	}

	info, err := s.resolver.Lookup(ctx, current.DomainName)
	if s.metrics != nil {
		s.metrics.IncWhois(err == nil)
	}
	if err != nil {
		return current, false, err
	}

	changed := false
	updated, err := s.store.MutateDomain(ctx, id, func(d *database.Domain) (string, error) {
		before := *d
		if info.Registrar != "" {
			d.Registrar = info.Registrar
		}
		if info.ExpiryDate != nil {
			d.ExpiryDate = info.ExpiryDate.Format(time.DateOnly)
		}
		changes := history.Describe(before, *d)
		if changes == "" {
			return "", nil
		}
		changed = true
		return "WHOIS refresh: " + changes, nil
	})
	return updated, changed, err
}

// alert notifies once per calendar day per active domain about urgent scopes.
func (s *Sweeper) alert(ctx context.Context, domains []database.Domain, now time.Time) int {
	sent := 0
	for _, d := range domains {
		if !d.Active {
			continue
		}
		if d.LastNotificationSent != nil && expiry.SameDay(*d.LastNotificationSent, now) {
			continue
		}

		delivered := false
		for _, st := range lease.EvaluateAll(d, s.opts.Thresholds, now) {
			if !st.Status.Urgent() {
				continue
			}
			a := notify.Alert{Domain: d, Scope: st.Scope, Status: st.Status}
			err := s.notifier.Notify(ctx, a)
			if s.metrics != nil {
				s.metrics.IncNotification(a.Event(), err == nil)
			}
			if err != nil {
				s.log.Warn("alert failed", zap.String("domain", d.DomainName),
					zap.String("scope", string(st.Scope)), zap.Error(err))
				continue
			}
			delivered = true
			sent++
		}

		if delivered {
			if err := s.store.MarkNotified(ctx, d.ID, now); err != nil {
				s.log.Warn("mark notified", zap.String("domain", d.DomainName), zap.Error(err))
			}
		}
	}
	return sent
}

func (s *Sweeper) printSummary(domains []database.Domain, report Report, now time.Time) {
	w := s.opts.Out
	for _, d := range domains {
		for _, st := range lease.EvaluateAll(d, s.opts.Thresholds, now) {
			if !st.Status.AtRisk() {
				continue
			}
			fmt.Fprintf(w, "Domain: %s | Scope: %s | Status: %s\n", d.DomainName, st.Scope, st.Status.Colorize())
		}
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(w, color.CyanString("Sweep Summary:"))
	fmt.Fprintf(w, "Total Domains: %d\n", report.Domains)
	fmt.Fprintf(w, "Refreshed: %d\n", report.Refreshed)
	atRisk := report.Tally.AtRisk()
	if atRisk > 0 {
		fmt.Fprintln(w, color.YellowString("At Risk Leases: %d", atRisk))
	} else {
		fmt.Fprintln(w, color.GreenString("At Risk Leases: %d", atRisk))
	}
	fmt.Fprintf(w, "Alerts Sent: %d\n", report.Alerts)
	fmt.Fprintln(w, strings.Repeat("=", 60))
}
