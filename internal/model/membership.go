package model

type MembershipType string

const (
	MembershipFree      MembershipType = "free"
	MembershipMonthly   MembershipType = "monthly"
	MembershipPermanent MembershipType = "permanent"
)

// UnlimitedQuota is the download_quota sentinel held by permanent members.
const UnlimitedQuota = -1

func (t MembershipType) Valid() bool {
	switch t {
	case MembershipFree, MembershipMonthly, MembershipPermanent:
		return true
	}
	return false
}

// Grantable reports whether a membership code may carry this tier.
func (t MembershipType) Grantable() bool {
	return t == MembershipMonthly || t == MembershipPermanent
}

type CodeStatus string

const (
	CodeStatusActive  CodeStatus = "active"
	CodeStatusUsed    CodeStatus = "used"
	CodeStatusExpired CodeStatus = "expired"
)

// DownloadType identifies what kind of file a user downloads.
// Restricted types are gated behind membership and quota.
type DownloadType string

const (
	DownloadSingleDevice DownloadType = "single_device"
	DownloadOriginal     DownloadType = "original"
	DownloadCover        DownloadType = "cover"
	DownloadOther        DownloadType = "other"
	DownloadHDCombo      DownloadType = "hd_combo"
	DownloadAvatar       DownloadType = "avatar"
)

var downloadTypes = map[DownloadType]bool{
	DownloadSingleDevice: false,
	DownloadOriginal:     false,
	DownloadCover:        false,
	DownloadOther:        false,
	DownloadHDCombo:      true,
	DownloadAvatar:       true,
}

// ParseDownloadType returns the known download type for s.
func ParseDownloadType(s string) (DownloadType, bool) {
	t := DownloadType(s)
	_, ok := downloadTypes[t]
	return t, ok
}

func (t DownloadType) Restricted() bool {
	return downloadTypes[t]
}

// Reason is the machine-readable outcome shared by the quota engine,
// redemption and the HTTP layer.
type Reason string

const (
	ReasonUnrestricted   Reason = "unrestricted"
	ReasonUnlimited      Reason = "unlimited"
	ReasonQuotaAvailable Reason = "quota_available"
	ReasonRedeemed       Reason = "redeemed"

	ReasonUserNotFound      Reason = "user_not_found"
	ReasonNeedsMembership   Reason = "needs_membership"
	ReasonQuotaExceeded     Reason = "quota_exceeded"
	ReasonMembershipExpired Reason = "membership_expired"

	ReasonCodeNotFound     Reason = "code_not_found"
	ReasonCodeExpired      Reason = "code_expired"
	ReasonAlreadyPermanent Reason = "already_permanent"
	ReasonTooManyAttempts  Reason = "too_many_attempts"
)

var reasonMessages = map[Reason]string{
	ReasonUnrestricted:      "download type is not restricted",
	ReasonUnlimited:         "permanent membership has no download limit",
	ReasonQuotaAvailable:    "monthly membership has quota left",
	ReasonRedeemed:          "membership upgraded",
	ReasonUserNotFound:      "user not found",
	ReasonNeedsMembership:   "membership required",
	ReasonQuotaExceeded:     "download quota used up",
	ReasonMembershipExpired: "membership expired",
	ReasonCodeNotFound:      "not found or already used",
	ReasonCodeExpired:       "membership code expired",
	ReasonAlreadyPermanent:  "already a permanent member",
	ReasonTooManyAttempts:   "too many failed attempts, try again later",
}

// Message is the human-readable text sent alongside the reason.
func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return string(r)
}
