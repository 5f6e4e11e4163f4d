package database

import (
	"strings"

	"assesshub/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	// Registers the cgo-free "sqlite" driver used for local and test runs.
	_ "modernc.org/sqlite"
)

func Connect(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		logrus.Info("connecting to PostgreSQL")
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}

	logrus.WithField("dsn", dsn).Info("using SQLite")

	return gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		}),
		&gorm.Config{},
	)
}

// Migrate creates or updates the schema for every aggregate this core owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Identity{},
		&domain.RefreshToken{},
		&domain.PasswordResetToken{},
		&domain.Session{},
		&domain.Invitation{},
		&domain.DelegationGrant{},
		&domain.Assessment{},
		&domain.DomainAssignment{},
		&domain.AuditEvent{},
	)
}
