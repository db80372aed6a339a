package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store wraps the gorm handle with the queries used by handlers and the sweep.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a Store over an opened and migrated database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock overrides the clock used for timestamps and returns the store.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// DB exposes the underlying handle for setup code and tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrDatabaseNotInitialized
	}
	return s.db.WithContext(ctx), nil
}

// ListClients returns all clients, newest first.
func (s *Store) ListClients(ctx context.Context) ([]Client, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var clients []Client
	if err := db.Order("created_at desc").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

// GetClient loads one client.
func (s *Store) GetClient(ctx context.Context, id string) (Client, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return Client{}, err
	}
	var client Client
	if err := db.First(&client, "id = ?", id).Error; err != nil {
		return Client{}, translate(err)
	}
	return client, nil
}

// CreateClient assigns an ID and inserts the client.
func (s *Store) CreateClient(ctx context.Context, client *Client) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	client.ID = uuid.NewString()
	client.CreatedAt, client.UpdatedAt = now, now
	return translate(db.Create(client).Error)
}

// UpdateClient replaces the editable fields of a client and keeps denormalized
// client names on its domains in sync.
func (s *Store) UpdateClient(ctx context.Context, id string, in Client) (Client, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return Client{}, err
	}

	var out Client
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		out.Name = in.Name
		out.Contact = in.Contact
		out.Email = in.Email
		out.CompanyName = in.CompanyName
		out.Address = in.Address
		out.UpdatedAt = s.now()
		if err := tx.Save(&out).Error; err != nil {
			return translate(err)
		}
		return tx.Model(&Domain{}).Where("client_id = ?", id).Update("client_name", out.Name).Error
	})
	return out, err
}

// DeleteClient removes a client. Its domains keep the denormalized client name.
func (s *Store) DeleteClient(ctx context.Context, id string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	res := db.Delete(&Client{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountClients returns the number of clients.
func (s *Store) CountClients(ctx context.Context) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Model(&Client{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// ListDomains returns all domains, newest first.
func (s *Store) ListDomains(ctx context.Context) ([]Domain, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var domains []Domain
	if err := db.Order("created_at desc").Find(&domains).Error; err != nil {
		return nil, err
	}
	return domains, nil
}

// GetDomain loads one domain.
func (s *Store) GetDomain(ctx context.Context, id string) (Domain, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return Domain{}, err
	}
	var domain Domain
	if err := db.First(&domain, "id = ?", id).Error; err != nil {
		return Domain{}, translate(err)
	}
	return domain, nil
}

// CreateDomain assigns an ID, inserts the domain and records a history entry.
func (s *Store) CreateDomain(ctx context.Context, domain *Domain) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	domain.ID = uuid.NewString()
	domain.CreatedAt, domain.UpdatedAt = now, now

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(domain).Error; err != nil {
			return translate(err)
		}
		return s.appendHistory(tx, *domain, "Domain created", now)
	})
}

// MutateDomain loads a domain, applies mutate and saves it together with a history entry
// describing the change. When mutate reports no changes nothing is written.
func (s *Store) MutateDomain(ctx context.Context, id string, mutate func(d *Domain) (changes string, err error)) (Domain, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return Domain{}, err
	}

	var out Domain
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		changes, err := mutate(&out)
		if err != nil {
			return err
		}
		if changes == "" {
			return nil
		}
		now := s.now()
		out.ID = id
		out.UpdatedAt = now
		if err := tx.Save(&out).Error; err != nil {
			return translate(err)
		}
		return s.appendHistory(tx, out, changes, now)
	})
	if err != nil {
		return Domain{}, err
	}
	return out, nil
}

// DeleteDomain removes a domain and records the deletion in its history.
func (s *Store) DeleteDomain(ctx context.Context, id string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var domain Domain
		if err := tx.First(&domain, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if err := tx.Delete(&domain).Error; err != nil {
			return err
		}
		return s.appendHistory(tx, domain, "Domain deleted", s.now())
	})
}

// MarkNotified records when the last expiry alert for a domain was sent.
// It does not write a history entry.
func (s *Store) MarkNotified(ctx context.Context, id string, at time.Time) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	res := db.Model(&Domain{}).Where("id = ?", id).UpdateColumn("last_notification_sent", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) appendHistory(tx *gorm.DB, d Domain, changes string, at time.Time) error {
	entry := HistoryEntry{
		ID:         uuid.NewString(),
		DomainID:   d.ID,
		DomainName: d.DomainName,
		Registrar:  d.Registrar,
		Changes:    changes,
		UpdatedAt:  at,
	}
	return tx.Create(&entry).Error
}

// ListHistory returns audit entries, newest first. A non-empty domainID restricts
// the result to that domain.
func (s *Store) ListHistory(ctx context.Context, domainID string) ([]HistoryEntry, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Order("updated_at desc")
	if domainID != "" {
		q = q.Where("domain_id = ?", domainID)
	}
	var entries []HistoryEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// FindUserByUsername loads a user for login.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (User, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return User{}, err
	}
	var user User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return User{}, translate(err)
	}
	return user, nil
}

// GetUser loads a user by ID.
func (s *Store) GetUser(ctx context.Context, id uint) (User, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return User{}, err
	}
	var user User
	if err := db.First(&user, id).Error; err != nil {
		return User{}, translate(err)
	}
	return user, nil
}

// ListUsers returns users, newest first. A non-empty status filters the result.
func (s *Store) ListUsers(ctx context.Context, status string) ([]User, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Order("created_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var users []User
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser inserts a user whose password is already hashed.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return translate(db.Create(user).Error)
}

// SetUserStatus changes a user's account status.
func (s *Store) SetUserStatus(ctx context.Context, id uint, status string) (User, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return User{}, err
	}
	var user User
	if err := db.First(&user, id).Error; err != nil {
		return User{}, translate(err)
	}
	if err := db.Model(&user).Update("status", status).Error; err != nil {
		return User{}, err
	}
	user.Status = status
	return user, nil
}

// GetPreferences returns the stored preferences, or defaults when none were saved yet.
func (s *Store) GetPreferences(ctx context.Context, userID uint) (Preferences, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return Preferences{}, err
	}
	var prefs Preferences
	err = db.First(&prefs, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Preferences{UserID: userID}, nil
	}
	return prefs, err
}

// SavePreferences upserts the preferences for a user.
func (s *Store) SavePreferences(ctx context.Context, prefs Preferences) (Preferences, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return Preferences{}, err
	}
	prefs.UpdatedAt = s.now()
	if err := db.Save(&prefs).Error; err != nil {
		return Preferences{}, err
	}
	return prefs, nil
}

// ActiveNotificationConfigs returns enabled webhook targets.
func (s *Store) ActiveNotificationConfigs(ctx context.Context) ([]NotificationConfig, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var configs []NotificationConfig
	if err := db.Where("is_active = ?", true).Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// ActiveTelegramConfigs returns enabled Telegram bots.
func (s *Store) ActiveTelegramConfigs(ctx context.Context) ([]TelegramConfig, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var configs []TelegramConfig
	if err := db.Where("is_active = ?", true).Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// MessageTemplate loads the template for an alert event.
func (s *Store) MessageTemplate(ctx context.Context, event string) (MessageTemplate, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return MessageTemplate{}, err
	}
	var tmpl MessageTemplate
	if err := db.Where("event_name = ?", event).First(&tmpl).Error; err != nil {
		return MessageTemplate{}, translate(err)
	}
	return tmpl, nil
}
