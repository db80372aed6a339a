package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harveywai/leasedesk/pkg/auth"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	clock := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	return NewStore(db).WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "")
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestMigrateSeedsTemplatesOnce(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, Migrate(s.DB()))

	var n int64
	require.NoError(t, s.DB().Model(&MessageTemplate{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)

	tmpl, err := s.MessageTemplate(context.Background(), EventLeaseExpired)
	require.NoError(t, err)
	assert.Contains(t, tmpl.BodyTemplate, "{{domain}}")

	_, err = s.MessageTemplate(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	acme := Client{Name: "Acme"}
	require.NoError(t, s.CreateClient(ctx, &acme))
	globex := Client{Name: "Globex"}
	require.NoError(t, s.CreateClient(ctx, &globex))

	clients, err := s.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "Globex", clients[0].Name)

	d := Domain{ClientID: acme.ID, ClientName: acme.Name, DomainName: "example.com"}
	require.NoError(t, s.CreateDomain(ctx, &d))

	updated, err := s.UpdateClient(ctx, acme.ID, Client{Name: "Acme Holdings", Email: "ops@acme.example"})
	require.NoError(t, err)
	assert.Equal(t, "ops@acme.example", updated.Email)
	assert.Equal(t, acme.CreatedAt.Unix(), updated.CreatedAt.Unix())

	got, err := s.GetDomain(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Holdings", got.ClientName)

	_, err = s.UpdateClient(ctx, "missing", Client{Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteClient(ctx, acme.ID))
	assert.ErrorIs(t, s.DeleteClient(ctx, acme.ID), ErrNotFound)
	_, err = s.GetClient(ctx, acme.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.CountClients(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDomainMutationsAppendHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	d := Domain{DomainName: "example.com", Registrar: "GoDaddy", ExpiryDate: "2025-06-01"}
	require.NoError(t, s.CreateDomain(ctx, &d))
	require.NotEmpty(t, d.ID)

	dup := Domain{DomainName: "example.com"}
	assert.ErrorIs(t, s.CreateDomain(ctx, &dup), ErrAlreadyExists)

	// No changes: nothing is written.
	_, err := s.MutateDomain(ctx, d.ID, func(*Domain) (string, error) { return "", nil })
	require.NoError(t, err)

	out, err := s.MutateDomain(ctx, d.ID, func(d *Domain) (string, error) {
		d.Registrar = "Namecheap"
		return "Registrar: GoDaddy -> Namecheap", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Namecheap", out.Registrar)
	assert.True(t, out.UpdatedAt.After(out.CreatedAt))

	_, err = s.MutateDomain(ctx, "missing", func(*Domain) (string, error) { return "x", nil })
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteDomain(ctx, d.ID))
	assert.ErrorIs(t, s.DeleteDomain(ctx, d.ID), ErrNotFound)

	entries, err := s.ListHistory(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Domain deleted", entries[0].Changes)
	assert.Equal(t, "Registrar: GoDaddy -> Namecheap", entries[1].Changes)
	assert.Equal(t, "Namecheap", entries[1].Registrar)
	assert.Equal(t, "Domain created", entries[2].Changes)

	all, err := s.ListHistory(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMarkNotifiedSkipsHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	d := Domain{DomainName: "example.com"}
	require.NoError(t, s.CreateDomain(ctx, &d))

	at := time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkNotified(ctx, d.ID, at))
	assert.ErrorIs(t, s.MarkNotified(ctx, "missing", at), ErrNotFound)

	got, err := s.GetDomain(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastNotificationSent)
	assert.True(t, got.LastNotificationSent.Equal(at))

	entries, err := s.ListHistory(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	assert.Error(t, s.SeedAdmin(ctx, "", zap.NewNop()))
	require.NoError(t, s.SeedAdmin(ctx, "secret", zap.NewNop()))

	admin, err := s.FindUserByUsername(ctx, DefaultAdminUsername)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, admin.Role)
	assert.True(t, auth.CheckPassword(admin.Password, "secret"))

	// A disabled admin is reactivated and the password is left alone.
	_, err = s.SetUserStatus(ctx, admin.ID, auth.StatusDisabled)
	require.NoError(t, err)
	require.NoError(t, s.SeedAdmin(ctx, "other", zap.NewNop()))
	admin, err = s.GetUser(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusActive, admin.Status)
	assert.True(t, auth.CheckPassword(admin.Password, "secret"))
}

func TestUsersAndPreferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := User{Username: "pat", Password: "x", Role: auth.RoleUser, Status: auth.StatusPending}
	require.NoError(t, s.CreateUser(ctx, &u))
	dup := User{Username: "pat", Password: "x"}
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), ErrAlreadyExists)

	pending, err := s.ListUsers(ctx, auth.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	_, err = s.SetUserStatus(ctx, 999, auth.StatusActive)
	assert.ErrorIs(t, err, ErrNotFound)

	prefs, err := s.GetPreferences(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, prefs.SidebarPinned)

	_, err = s.SavePreferences(ctx, Preferences{UserID: u.ID, SidebarPinned: true})
	require.NoError(t, err)
	prefs, err = s.GetPreferences(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, prefs.SidebarPinned)

	_, err = s.SavePreferences(ctx, Preferences{UserID: u.ID, SidebarPinned: false})
	require.NoError(t, err)
	prefs, err = s.GetPreferences(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, prefs.SidebarPinned)
}

func TestActiveChannelConfigs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.DB().Create(&NotificationConfig{WebhookURL: "https://hooks.example/a", Platform: "slack", IsActive: true}).Error)
	require.NoError(t, s.DB().Create(&NotificationConfig{WebhookURL: "https://hooks.example/b", Platform: "slack"}).Error)
	require.NoError(t, s.DB().Create(&TelegramConfig{BotToken: "t", ChatID: "1", IsActive: true}).Error)

	hooks, err := s.ActiveNotificationConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, "https://hooks.example/a", hooks[0].WebhookURL)

	bots, err := s.ActiveTelegramConfigs(ctx)
	require.NoError(t, err)
	assert.Len(t, bots, 1)
}

func TestParseScope(t *testing.T) {
	s, ok := ParseScope(" SSH ")
	assert.True(t, ok)
	assert.Equal(t, ScopeSSH, s)
	_, ok = ParseScope("email")
	assert.False(t, ok)
}
