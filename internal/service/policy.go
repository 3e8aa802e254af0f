package service

import (
	"time"

	"wallpaper/vipcenter/internal/config"
)

// MembershipPolicy holds the tier allotments and time windows.
type MembershipPolicy struct {
	FreeQuota           int
	MonthlyQuota        int
	MonthlyDuration     time.Duration
	QuotaPeriod         time.Duration
	CodeValidity        time.Duration
	MaxCodesPerBatch    int
	RedeemMaxFailures   int
	RedeemFailureWindow time.Duration
}

func PolicyFromConfig(cfg config.MembershipConfig) MembershipPolicy {
	return MembershipPolicy{
		FreeQuota:           cfg.FreeQuota,
		MonthlyQuota:        cfg.MonthlyQuota,
		MonthlyDuration:     cfg.MonthlyDuration,
		QuotaPeriod:         cfg.QuotaPeriod,
		CodeValidity:        cfg.CodeValidity,
		MaxCodesPerBatch:    cfg.MaxCodesPerBatch,
		RedeemMaxFailures:   cfg.RedeemMaxFailures,
		RedeemFailureWindow: cfg.RedeemFailureWindow,
	}
}

// Clock returns the current instant.
type Clock func() time.Time

// SystemClock is UTC wall time at the precision the database stores.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
