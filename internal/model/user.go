package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserStatus int

const (
	UserStatusActive   UserStatus = 1
	UserStatusDisabled UserStatus = 2
	UserStatusBanned   UserStatus = 3
)

// User carries the membership record of an account. Only the quota engine,
// redemption and the sweeper write the membership columns, always through
// guarded updates.
type User struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username            string         `gorm:"type:varchar(64);not null;default:''" json:"username"`
	Status              UserStatus     `gorm:"type:smallint;not null;default:1" json:"status"`
	MembershipType      MembershipType `gorm:"type:varchar(16);not null;default:free;index" json:"membership_type"`
	MembershipExpiresAt *time.Time     `gorm:"index" json:"membership_expires_at,omitempty"`
	DownloadQuota       int            `gorm:"not null" json:"download_quota"`
	QuotaResetDate      *time.Time     `json:"quota_reset_date,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Unlimited reports whether the user holds the unlimited quota sentinel.
func (u *User) Unlimited() bool {
	return u.MembershipType == MembershipPermanent
}

// MembershipState is the set of membership columns that always change together.
type MembershipState struct {
	Type      MembershipType
	ExpiresAt *time.Time
	Quota     int
	ResetDate *time.Time
}

func (u *User) Membership() MembershipState {
	return MembershipState{
		Type:      u.MembershipType,
		ExpiresAt: u.MembershipExpiresAt,
		Quota:     u.DownloadQuota,
		ResetDate: u.QuotaResetDate,
	}
}

func (u *User) SetMembership(s MembershipState) {
	u.MembershipType = s.Type
	u.MembershipExpiresAt = s.ExpiresAt
	u.DownloadQuota = s.Quota
	u.QuotaResetDate = s.ResetDate
}
