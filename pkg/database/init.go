package database

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/harveywai/leasedesk/pkg/auth"
)

// DefaultAdminUsername is the account created on first start.
const DefaultAdminUsername = "admin"

// SeedAdmin creates the default admin user if no users exist, and ensures
// the admin user's status is always "active" to prevent lockout.
func (s *Store) SeedAdmin(ctx context.Context, password string, log *zap.Logger) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("admin password is required")
	}

	var count int64
	if err := db.Model(&User{}).Count(&count).Error; err != nil {
		return err
	}

	// If no users exist, create the default admin user.
	if count == 0 {
		hashed, err := auth.HashPassword(password)
		if err != nil {
			return err
		}

		admin := User{
			Username: DefaultAdminUsername,
			Password: hashed,
			Role:     auth.RoleAdmin,
			Status:   auth.StatusActive,
		}
		if err := db.Create(&admin).Error; err != nil {
			return err
		}
		log.Info("default admin user created", zap.String("username", admin.Username))
	}

	res := db.Model(&User{}).Where("username = ?", DefaultAdminUsername).Update("status", auth.StatusActive)
	if res.Error != nil {
		// The admin may have been renamed; that is not fatal.
		log.Warn("could not ensure admin status is active", zap.Error(res.Error))
	}
	return nil
}
