package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for all models and creates custom indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&MembershipCode{},
		&DownloadLog{},
	); err != nil {
		return err
	}

	// The sweeper scans monthly members ordered by id.
	if err := db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_users_monthly_expiry " +
			"ON users (membership_type, membership_expires_at, id) WHERE deleted_at IS NULL",
	).Error; err != nil {
		return err
	}

	return db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_membership_codes_type_status " +
			"ON membership_codes (membership_type, status) WHERE deleted_at IS NULL",
	).Error
}
