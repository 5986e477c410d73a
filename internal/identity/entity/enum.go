package entity

// Stage is the linking lifecycle position of an account.
type Stage int16

const (
	// StageUnlinked means no channel is bound and no link code is pending.
	StageUnlinked Stage = iota
	// StageCodePending means a link code was issued and not yet redeemed.
	StageCodePending
	// StageLinked means a channel is bound and no OTP is outstanding.
	StageLinked
	// StageOTPPending means a channel is bound and an OTP awaits verification.
	StageOTPPending
)

func (s Stage) String() string {
	switch s {
	case StageCodePending:
		return "code_pending"
	case StageLinked:
		return "linked"
	case StageOTPPending:
		return "otp_pending"
	default:
		return "unlinked"
	}
}
