package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Users     UserRepository
	Codes     MembershipCodeRepository
	Downloads DownloadLogRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:     NewPGUserRepository(db),
		Codes:     NewPGMembershipCodeRepository(db),
		Downloads: NewPGDownloadLogRepository(db),
	}
}

// Transactor runs fn against repositories bound to a single transaction.
// Returning an error (or panicking) from fn rolls everything back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewRepositories(tx))
	})
}
