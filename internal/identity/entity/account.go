package entity

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"
)

var (
	ErrLinkCodeNotFound = errors.New("identity: link code not found")
	ErrChannelNotBound  = errors.New("identity: channel not bound")
	ErrOTPNoneRequested = errors.New("identity: no otp requested")
	ErrOTPExpired       = errors.New("identity: otp expired")
	ErrOTPMismatch      = errors.New("identity: otp mismatch")

	ErrChannelIDRequired = errors.New("identity: channel id is required")
	ErrEmptyDigest       = errors.New("identity: code digest is empty")
	ErrOTPWithoutChannel = errors.New("identity: otp requires a bound channel")
)

// LinkCode is a pending single-use linking code, stored as a digest.
type LinkCode struct {
	Digest   string
	IssuedAt time.Time
}

// OTP is an outstanding one-time password, stored as a digest.
type OTP struct {
	Digest    string
	ExpiresAt time.Time
}

// Binding is the channel state of an account. The zero value is an unlinked
// account. Use NewBinding to restore one from storage.
type Binding struct {
	channelID string
	linkCode  *LinkCode
	otp       *OTP
}

// NewBinding validates and builds a Binding. An OTP can only exist on a bound
// channel.
func NewBinding(channelID string, code *LinkCode, otp *OTP) (Binding, error) {
	channelID = strings.TrimSpace(channelID)

	if code != nil && code.Digest == "" {
		return Binding{}, ErrEmptyDigest
	}
	if otp != nil {
		if otp.Digest == "" {
			return Binding{}, ErrEmptyDigest
		}
		if channelID == "" {
			return Binding{}, ErrOTPWithoutChannel
		}
	}

	b := Binding{channelID: channelID}
	if code != nil {
		c := *code
		b.linkCode = &c
	}
	if otp != nil {
		o := *otp
		b.otp = &o
	}
	return b, nil
}

// ChannelID is the bound external identity, "" when unbound.
func (b Binding) ChannelID() string { return b.channelID }

// Bound reports whether a channel is bound.
func (b Binding) Bound() bool { return b.channelID != "" }

// LinkCode returns a copy of the pending link code, or nil.
func (b Binding) LinkCode() *LinkCode {
	if b.linkCode == nil {
		return nil
	}
	c := *b.linkCode
	return &c
}

// OTP returns a copy of the outstanding OTP, or nil.
func (b Binding) OTP() *OTP {
	if b.otp == nil {
		return nil
	}
	o := *b.otp
	return &o
}

// Stage is the tagged view of the binding. A bound account with a pending
// re-link code still reports Linked or OTPPending.
func (b Binding) Stage() Stage {
	switch {
	case b.Bound() && b.otp != nil:
		return StageOTPPending
	case b.Bound():
		return StageLinked
	case b.linkCode != nil:
		return StageCodePending
	default:
		return StageUnlinked
	}
}

// Account is an identity with its channel binding. Revision is bumped by the
// repository on every successful write.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	Revision     int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Binding      Binding
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IssueLinkCode replaces any pending link code.
func (a *Account) IssueLinkCode(digest string, now time.Time) error {
	if digest == "" {
		return ErrEmptyDigest
	}

	a.Binding.linkCode = &LinkCode{Digest: digest, IssuedAt: now}
	a.UpdatedAt = now
	return nil
}

// RedeemLinkCode binds channelID and consumes the pending code. Moving to a
// different channel drops an OTP that was delivered to the old one.
func (a *Account) RedeemLinkCode(channelID string, now time.Time) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return ErrChannelIDRequired
	}
	if a.Binding.linkCode == nil {
		return ErrLinkCodeNotFound
	}

	if a.Binding.channelID != channelID {
		a.Binding.otp = nil
	}
	a.Binding.channelID = channelID
	a.Binding.linkCode = nil
	a.UpdatedAt = now
	return nil
}

// IssueOTP replaces any outstanding OTP. expiresAt must be after now.
func (a *Account) IssueOTP(digest string, now, expiresAt time.Time) error {
	if !a.Binding.Bound() {
		return ErrChannelNotBound
	}
	if digest == "" {
		return ErrEmptyDigest
	}
	if !expiresAt.After(now) {
		return ErrOTPExpired
	}

	a.Binding.otp = &OTP{Digest: digest, ExpiresAt: expiresAt}
	a.UpdatedAt = now
	return nil
}

// VerifyOTP checks digest against the outstanding OTP and consumes it on
// success. Checks run in order: none requested, expired, mismatch. Failures
// leave the account untouched.
func (a *Account) VerifyOTP(digest string, now time.Time) error {
	otp := a.Binding.otp
	if otp == nil {
		return ErrOTPNoneRequested
	}
	if now.After(otp.ExpiresAt) {
		return ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(otp.Digest), []byte(digest)) != 1 {
		return ErrOTPMismatch
	}

	a.Binding.otp = nil
	a.UpdatedAt = now
	return nil
}
