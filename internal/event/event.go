// Package event publishes membership domain events to a message broker.
package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Routing keys.
const (
	TypeDownloadRecorded   = "download.recorded"
	TypeMembershipRedeemed = "membership.redeemed"
	TypeMembershipExpired  = "membership.expired"
	TypeCodesIssued        = "codes.issued"
	TypeCodesDeleted       = "codes.deleted"
)

// Publisher defines the interface for publishing events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

type Event struct {
	ID         uuid.UUID `json:"event_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type DownloadRecorded struct {
	UserID         uuid.UUID `json:"user_id"`
	WallpaperID    int64     `json:"wallpaper_id"`
	DownloadType   string    `json:"download_type"`
	MembershipType string    `json:"membership_type"`
	QuotaConsumed  bool      `json:"quota_consumed"`
	DownloadLogID  int64     `json:"download_log_id"`
}

type MembershipRedeemed struct {
	UserID         uuid.UUID  `json:"user_id"`
	CodeID         uuid.UUID  `json:"code_id"`
	BatchID        string     `json:"batch_id"`
	MembershipType string     `json:"membership_type"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

type MembershipExpired struct {
	UserID uuid.UUID `json:"user_id"`
	Source string    `json:"source"` // "lazy" | "sweeper"
}

type CodesIssued struct {
	BatchID        string    `json:"batch_id"`
	MembershipType string    `json:"membership_type"`
	Count          int       `json:"count"`
	Failed         int       `json:"failed"`
	IssuedBy       uuid.UUID `json:"issued_by"`
}

type CodesDeleted struct {
	CodeIDs   []uuid.UUID `json:"code_ids"`
	Deleted   int64       `json:"deleted"`
	DeletedBy uuid.UUID   `json:"deleted_by"`
}

// Emit wraps payload in an Event envelope and publishes it under eventType.
func Emit(ctx context.Context, p Publisher, eventType string, payload any) error {
	body, err := json.Marshal(Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	return p.Publish(ctx, eventType, body)
}
