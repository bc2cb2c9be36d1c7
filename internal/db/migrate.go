package db

import (
	"fmt"

	"github.com/Caqil/iprofit-admin-sub003/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.Plan{},
		&models.User{},
		&models.Transaction{},
		&models.Referral{},
		&models.Loan{},
		&models.Task{},
		&models.TaskSubmission{},
		&models.Notification{},
		&models.News{},
		&models.SupportTicket{},
		&models.FAQ{},
		&models.AuditLog{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: auto migrate: %w", errAutoMigrate)
	}
	return nil
}
