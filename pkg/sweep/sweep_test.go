package sweep

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harveywai/leasedesk/pkg/database"
	"github.com/harveywai/leasedesk/pkg/expiry"
	"github.com/harveywai/leasedesk/pkg/metrics"
	"github.com/harveywai/leasedesk/pkg/notify"
	"github.com/harveywai/leasedesk/pkg/providers/domain"
)

var now = time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu       sync.Mutex
	order    []string
	domains  map[string]database.Domain
	history  []string
	notified map[string]time.Time
}

func newFakeStore(domains ...database.Domain) *fakeStore {
	s := &fakeStore{domains: map[string]database.Domain{}, notified: map[string]time.Time{}}
	for _, d := range domains {
		s.order = append(s.order, d.ID)
		s.domains[d.ID] = d
	}
	return s
}

func (s *fakeStore) ListDomains(context.Context) ([]database.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]database.Domain, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.domains[id])
	}
	return out, nil
}

func (s *fakeStore) GetDomain(_ context.Context, id string) (database.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[id]
	if !ok {
		return database.Domain{}, database.ErrNotFound
	}
	return d, nil
}

func (s *fakeStore) MutateDomain(_ context.Context, id string, mutate func(*database.Domain) (string, error)) (database.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[id]
	if !ok {
		return database.Domain{}, database.ErrNotFound
	}
	changes, err := mutate(&d)
	if err != nil {
		return database.Domain{}, err
	}
	if changes != "" {
		s.domains[id] = d
		s.history = append(s.history, changes)
	}
	return d, nil
}

func (s *fakeStore) MarkNotified(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.domains[id]
	d.LastNotificationSent = &at
	s.domains[id] = d
	s.notified[id] = at
	return nil
}

type fakeResolver struct {
	mu    sync.Mutex
	infos map[string]domain.Info
	calls int
}

func (r *fakeResolver) Lookup(_ context.Context, name string) (domain.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	info, ok := r.infos[name]
	if !ok {
		return domain.Info{}, errors.New("no whois data")
	}
	return info, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []notify.Alert
	err    error
}

func (n *fakeNotifier) Notify(_ context.Context, a notify.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.alerts = append(n.alerts, a)
	return nil
}

func newSweeper(store Store, r domain.Resolver, n Notifier, out *bytes.Buffer, refresh bool) *Sweeper {
	opts := Options{
		Thresholds:   expiry.DefaultThresholds,
		Interval:     time.Hour,
		Workers:      2,
		WhoisRefresh: refresh,
	}
	if out != nil {
		opts.Out = out
	}
	s := New(store, r, n, metrics.New(), zap.NewNop(), opts)
	s.now = func() time.Time { return now }
	return s
}

func TestSweepAlertsOncePerDay(t *testing.T) {
	store := newFakeStore(
		database.Domain{ID: "1", DomainName: "soon.com", Active: true, ExpiryDate: "2025-01-12",
			SSHName: "ssh", SSHExpiryDate: "2025-01-01"},
		database.Domain{ID: "2", DomainName: "later.com", Active: true, ExpiryDate: "2025-06-01"},
		database.Domain{ID: "3", DomainName: "off.com", Active: false, ExpiryDate: "2025-01-11"},
	)
	n := &fakeNotifier{}
	var out bytes.Buffer
	s := newSweeper(store, nil, n, &out, false)

	report, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Domains)
	assert.Equal(t, 2, report.Alerts)
	require.Len(t, n.alerts, 2)
	assert.Equal(t, database.ScopeDomain, n.alerts[0].Scope)
	assert.Equal(t, expiry.Critical, n.alerts[0].Status.Kind)
	assert.Equal(t, database.ScopeSSH, n.alerts[1].Scope)
	assert.Equal(t, expiry.Expired, n.alerts[1].Status.Kind)
	assert.Contains(t, store.notified, "1")
	assert.NotContains(t, store.notified, "3")

	assert.Equal(t, 2, report.Tally[database.ScopeDomain]["critical"])
	assert.Equal(t, 3, report.Tally.AtRisk())

	// Same day: nothing is sent again.
	report, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Alerts)
	assert.Len(t, n.alerts, 2)
}

func TestSweepDoesNotMarkWhenDeliveryFails(t *testing.T) {
	store := newFakeStore(database.Domain{ID: "1", DomainName: "soon.com", Active: true, ExpiryDate: "2025-01-12"})
	n := &fakeNotifier{err: notify.ErrNoChannel}
	s := newSweeper(store, nil, n, nil, false)

	report, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Alerts)
	assert.Empty(t, store.notified)
}

func TestSweepRefreshesFromWhois(t *testing.T) {
	newExpiry := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	store := newFakeStore(
		database.Domain{ID: "1", DomainName: "renewed.com", Active: true, Registrar: "GoDaddy", ExpiryDate: "2025-01-12"},
		database.Domain{ID: "2", DomainName: "same.com", Active: true, Registrar: "Namecheap", ExpiryDate: "2025-08-01"},
		database.Domain{ID: "3", DomainName: "broken.com", Active: true, ExpiryDate: "2025-08-01"},
		database.Domain{ID: "4", DomainName: "inactive.com", Active: false, ExpiryDate: "2025-08-01"},
	)
	sameExpiry := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	r := &fakeResolver{infos: map[string]domain.Info{
		"renewed.com": {Registrar: "GoDaddy", ExpiryDate: &newExpiry},
		"same.com":    {Registrar: "Namecheap", ExpiryDate: &sameExpiry},
	}}
	n := &fakeNotifier{}
	s := newSweeper(store, r, n, nil, true)

	report, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Refreshed)
	assert.Equal(t, 3, r.calls)
	assert.Equal(t, []string{"WHOIS refresh: Expiry date: 2025-01-12 -> 2026-01-12"}, store.history)

	// The refreshed expiry is what gets classified, so nothing is urgent.
	assert.Zero(t, report.Alerts)
	assert.Equal(t, 4, report.Tally[database.ScopeDomain]["safe"])
}

func TestRefreshSingleDomain(t *testing.T) {
	store := newFakeStore(database.Domain{ID: "1", DomainName: "example.com", Registrar: "Old"})
	r := &fakeResolver{infos: map[string]domain.Info{"example.com": {Registrar: "New"}}}
	s := newSweeper(store, r, nil, nil, false)

	d, changed, err := s.Refresh(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "New", d.Registrar)

	_, _, err = s.Refresh(context.Background(), "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)

	disabled := newSweeper(store, nil, nil, nil, false)
	_, _, err = disabled.Refresh(context.Background(), "1")
	assert.Error(t, err)
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	store := newFakeStore(database.Domain{ID: "1", DomainName: "soon.com", Active: true, ExpiryDate: "2025-01-12"})
	var out bytes.Buffer
	s := newSweeper(store, nil, nil, &out, false)

	_, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Domain: soon.com | Scope: domain | Status: Critical (2 days left)")
	assert.Contains(t, out.String(), "At Risk Leases: 1")
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newFakeStore()
	s := newSweeper(store, nil, nil, nil, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
