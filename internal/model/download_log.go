package model

import (
	"time"

	"github.com/google/uuid"
)

// DownloadLog is an append-only audit row. Quota truth lives on User.
type DownloadLog struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_download_logs_user_date,priority:1" json:"user_id"`
	WallpaperID    int64          `gorm:"not null;index" json:"wallpaper_id"`
	DownloadType   DownloadType   `gorm:"type:varchar(32);not null" json:"download_type"`
	MembershipType MembershipType `gorm:"type:varchar(16);not null" json:"membership_type"`
	QuotaConsumed  bool           `gorm:"not null;default:false" json:"quota_consumed"`
	DownloadDate   time.Time      `gorm:"type:date;not null;index:idx_download_logs_user_date,priority:2" json:"download_date"`
	IPAddress      string         `gorm:"type:varchar(45);not null;default:''" json:"ip_address"`
	UserAgent      string         `gorm:"type:text" json:"user_agent"`
	DownloadURL    string         `gorm:"type:text" json:"download_url"`
	FileSize       int64          `gorm:"not null;default:0" json:"file_size"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (DownloadLog) TableName() string { return "user_download_logs" }
