package service

import "errors"

// Validation errors. Business denials are returned as result values instead.
var (
	ErrInvalidCodeFormat     = errors.New("membership code must be 12 uppercase letters or digits")
	ErrInvalidMembershipType = errors.New("membership type must be monthly or permanent")
	ErrInvalidCount          = errors.New("code count out of range")
	ErrInvalidDownloadType   = errors.New("unknown download type")
	ErrInvalidCodeFilter     = errors.New("invalid code filter")
	ErrNoCodeIDs             = errors.New("no code ids given")
	ErrUserNotFound          = errors.New("user not found")
)

// errQuotaExhausted aborts the consume transaction when the guarded
// decrement matched no row.
var errQuotaExhausted = errors.New("quota exhausted")

// errCodeTaken aborts the redemption transaction when the claim lost a race.
var errCodeTaken = errors.New("code already claimed")
