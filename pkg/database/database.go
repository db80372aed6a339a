package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrDatabaseNotInitialized is returned when database operations are attempted before initialization.
	ErrDatabaseNotInitialized = errors.New("database not initialized")
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique constraint violation (e.g., domain name or username taken).
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnsupportedDriver is returned by Open for an unknown driver name.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// Scope names one of the purchase/expiry date pairs a domain record carries.
type Scope string

const (
	ScopeDomain  Scope = "domain"
	ScopeSSH     Scope = "ssh"
	ScopeHosting Scope = "hosting"
)

// Scopes lists every expiry scope in display order.
var Scopes = []Scope{ScopeDomain, ScopeSSH, ScopeHosting}

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, bool) {
	for _, scope := range Scopes {
		if strings.EqualFold(string(scope), strings.TrimSpace(s)) {
			return scope, true
		}
	}
	return "", false
}

// Client is a customer that owns domain leases.
type Client struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"index" json:"name"`
	Contact     string    `json:"contact"`
	Email       string    `json:"email"`
	CompanyName string    `json:"company_name"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Domain is a tracked domain lease with optional SSH and hosting plans.
// Dates are stored as YYYY-MM-DD strings; an empty string means no date.
type Domain struct {
	ID                   string     `gorm:"primaryKey;size:36" json:"id"`
	ClientID             string     `gorm:"index;size:36" json:"client_id"`
	ClientName           string     `json:"client_name"`
	DomainName           string     `gorm:"uniqueIndex" json:"domain_name"`
	Registrar            string     `json:"registrar"`
	Active               bool       `json:"active"`
	PurchaseDate         string     `json:"purchase_date"`
	ExpiryDate           string     `json:"expiry_date"`
	SSHName              string     `json:"ssh_name"`
	SSHPurchaseDate      string     `json:"ssh_purchase_date"`
	SSHExpiryDate        string     `json:"ssh_expiry_date"`
	HostingProvider      string     `json:"hosting_provider"`
	HostingPurchaseDate  string     `json:"hosting_purchase_date"`
	HostingExpiryDate    string     `json:"hosting_expiry_date"`
	LastNotificationSent *time.Time `gorm:"column:last_notification_sent" json:"last_notification_sent,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Plan returns the plan name and the purchase/expiry dates stored under scope.
// The domain scope has no separate name; the domain name is returned.
func (d Domain) Plan(scope Scope) (name, purchase, expiry string) {
	switch scope {
	case ScopeSSH:
		return d.SSHName, d.SSHPurchaseDate, d.SSHExpiryDate
	case ScopeHosting:
		return d.HostingProvider, d.HostingPurchaseDate, d.HostingExpiryDate
	default:
		return d.DomainName, d.PurchaseDate, d.ExpiryDate
	}
}

// SetPlan replaces the plan stored under scope. The name is ignored for the domain scope.
func (d *Domain) SetPlan(scope Scope, name, purchase, expiry string) {
	switch scope {
	case ScopeSSH:
		d.SSHName, d.SSHPurchaseDate, d.SSHExpiryDate = name, purchase, expiry
	case ScopeHosting:
		d.HostingProvider, d.HostingPurchaseDate, d.HostingExpiryDate = name, purchase, expiry
	default:
		d.PurchaseDate, d.ExpiryDate = purchase, expiry
	}
}

// HistoryEntry is an append-only audit row written on every domain mutation.
type HistoryEntry struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	DomainID   string    `gorm:"index;size:36" json:"domain_id"`
	DomainName string    `json:"domain_name"`
	Registrar  string    `json:"registrar"`
	Changes    string    `gorm:"type:text" json:"changes"`
	UpdatedAt  time.Time `gorm:"index;autoUpdateTime:false" json:"updated_at"`
}

// User represents an authenticated console user.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex" json:"username"`
	Password  string    `json:"-"` // Hashed password, never exposed in JSON responses.
	Role      string    `json:"role"`
	Status    string    `gorm:"default:'pending'" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Preferences stores per-user console shell settings.
type Preferences struct {
	UserID        uint      `gorm:"primaryKey" json:"user_id"`
	SidebarPinned bool      `json:"sidebar_pinned"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NotificationConfig stores webhook configuration for notification platforms.
type NotificationConfig struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	WebhookURL string    `json:"webhook_url" gorm:"column:webhook_url"`
	SecretKey  string    `json:"secret_key" gorm:"column:secret_key"`
	Platform   string    `json:"platform"` // e.g., DingTalk, Feishu, Slack
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TelegramConfig stores Telegram bot configuration for notifications.
type TelegramConfig struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BotToken  string    `json:"bot_token"`
	ChatID    string    `json:"chat_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageTemplate stores the alert text for one notification event.
type MessageTemplate struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	EventName     string    `json:"event_name" gorm:"uniqueIndex"` // e.g., "LEASE_EXPIRED"
	TitleTemplate string    `json:"title_template"`
	BodyTemplate  string    `json:"body_template"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Open connects to the configured database and runs migrations.
// Supported drivers are "sqlite" (the default) and "postgres".
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate performs automatic schema migration and seeds default message templates.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Client{},
		&Domain{},
		&HistoryEntry{},
		&User{},
		&Preferences{},
		&NotificationConfig{},
		&TelegramConfig{},
		&MessageTemplate{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return seedMessageTemplates(db)
}

// Alert event names used by the expiry sweep.
const (
	EventLeaseExpired  = "LEASE_EXPIRED"
	EventLeaseCritical = "LEASE_CRITICAL"
)

func seedMessageTemplates(db *gorm.DB) error {
	defaults := []MessageTemplate{
		{
			EventName:     EventLeaseExpired,
			TitleTemplate: "Lease expired: {{domain}}",
			BodyTemplate:  "The {{scope}} plan for {{domain}} ({{client}}) expired on {{expiry_date}}, {{days}} days ago.",
		},
		{
			EventName:     EventLeaseCritical,
			TitleTemplate: "Lease expiring: {{domain}}",
			BodyTemplate:  "The {{scope}} plan for {{domain}} ({{client}}) expires on {{expiry_date}}, in {{days}} days.",
		},
	}

	for _, tmpl := range defaults {
		var existing MessageTemplate
		err := db.Where("event_name = ?", tmpl.EventName).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup template %s: %w", tmpl.EventName, err)
		}
		if err := db.Create(&tmpl).Error; err != nil {
			return fmt.Errorf("seed template %s: %w", tmpl.EventName, err)
		}
	}
	return nil
}

// translate maps gorm errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	default:
		return err
	}
}
