package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MembershipCode struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Code           string         `gorm:"type:varchar(12);uniqueIndex;not null" json:"code"`
	MembershipType MembershipType `gorm:"type:varchar(16);not null" json:"membership_type"`
	Status         CodeStatus     `gorm:"type:varchar(16);not null;default:active;index" json:"status"`
	ExpiresAt      time.Time      `gorm:"not null" json:"expires_at"`
	UsedByUserID   *uuid.UUID     `gorm:"type:uuid" json:"used_by_user_id,omitempty"`
	UsedAt         *time.Time     `json:"used_at,omitempty"`
	BatchID        string         `gorm:"type:varchar(64);not null;index;<-:create" json:"batch_id"`
	GeneratedBy    uuid.UUID      `gorm:"type:uuid;not null" json:"generated_by"`
	Notes          string         `gorm:"type:varchar(255);not null;default:''" json:"notes"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (MembershipCode) TableName() string { return "membership_codes" }

func (c *MembershipCode) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the code is past its validity window at now,
// regardless of whether the sweeper has marked it yet.
func (c *MembershipCode) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
