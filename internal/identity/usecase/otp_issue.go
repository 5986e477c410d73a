package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gostepup/internal/identity/entity"
	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
)

type IssueOTPInput struct {
	AccountID int64 `validate:"required,gt=0"`
}

type IssueOTPOutput struct {
	Code      string
	ExpiresAt time.Time
	Delivered bool
}

// IssueOTP stores a fresh OTP, replacing any outstanding one, and then sends
// it to the bound channel. A failed send is reported through Delivered and
// does not undo the stored OTP.
func (s *Usecase) IssueOTP(ctx context.Context, in IssueOTPInput) (*IssueOTPOutput, error) {
	ctx, span := s.startSpan(ctx, "IssueOTP")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	code, err := s.codes.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp", "account_id", in.AccountID, "error", err)
		return nil, goerror.NewServer(err)
	}

	ttl := s.otpTTL()
	digest := s.hmac.Digest(code)

	var expiresAt time.Time
	acc, err := s.mutateAccount(ctx, s.byID(in.AccountID), func(acc *entity.Account) error {
		now := s.clock.Now()
		// stores keep at most millisecond precision
		expiresAt = now.Add(ttl).Truncate(time.Millisecond)
		return acc.IssueOTP(digest, now, expiresAt)
	})
	switch {
	case errors.Is(err, goerror.ErrNotFound):
		slog.WarnContext(ctx, "account not found", "account_id", in.AccountID)
		return nil, errAccountNotFound()
	case errors.Is(err, entity.ErrChannelNotBound):
		slog.WarnContext(ctx, "otp requested without a bound channel", "account_id", in.AccountID)
		return nil, goerror.NewRejected(err, "Telegram account not connected", "channel_not_bound", goerror.CodeForbidden)
	case errors.Is(err, goerror.ErrStale):
		slog.WarnContext(ctx, "otp not stored, account kept changing", "account_id", in.AccountID)
		return nil, errConcurrentUpdate()
	case err != nil:
		slog.ErrorContext(ctx, "failed to store otp", "account_id", in.AccountID, "error", err)
		return nil, goerror.NewServer(err)
	}

	add(ctx, s.otpIssued)

	text := fmt.Sprintf("Your OTP is: %s\n\nThis code will expire in %d minutes.", code, int(ttl/time.Minute))
	delivered := true
	if err := s.channel.Send(ctx, acc.Binding.ChannelID(), text); err != nil {
		slog.ErrorContext(ctx, "failed to deliver otp", "account_id", acc.ID, "error", err)
		delivered = false
	}

	return &IssueOTPOutput{Code: code, ExpiresAt: expiresAt, Delivered: delivered}, nil
}
