package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/gostepup/internal/identity/entity"
	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type VerifyOTPInput struct {
	AccountID int64  `validate:"required,gt=0"`
	Code      string `validate:"required,max=32"`
}

type VerifyOTPOutput struct {
	Verified bool
}

var otpRejections = []struct {
	err    error
	msg    string
	reason string
}{
	{entity.ErrOTPNoneRequested, "No OTP requested", "otp_none_requested"},
	{entity.ErrOTPExpired, "OTP has expired", "otp_expired"},
	{entity.ErrOTPMismatch, "Invalid OTP", "otp_mismatch"},
}

// VerifyOTP consumes the outstanding OTP when Code matches and has not
// expired. Rejections leave the OTP in place.
func (s *Usecase) VerifyOTP(ctx context.Context, in VerifyOTPInput) (*VerifyOTPOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyOTP")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	digest := s.hmac.Digest(in.Code)
	_, err := s.mutateAccount(ctx, s.byID(in.AccountID), func(acc *entity.Account) error {
		return acc.VerifyOTP(digest, s.clock.Now())
	})

	for _, r := range otpRejections {
		if errors.Is(err, r.err) {
			slog.WarnContext(ctx, "otp rejected", "account_id", in.AccountID, "reason", r.reason)
			add(ctx, s.otpVerified, metric.WithAttributes(attribute.String("result", r.reason)))
			return nil, goerror.NewRejected(err, r.msg, r.reason, goerror.CodeInvalidInput)
		}
	}

	switch {
	case errors.Is(err, goerror.ErrNotFound):
		slog.WarnContext(ctx, "account not found", "account_id", in.AccountID)
		return nil, errAccountNotFound()
	case errors.Is(err, goerror.ErrStale):
		slog.WarnContext(ctx, "otp not verified, account kept changing", "account_id", in.AccountID)
		return nil, errConcurrentUpdate()
	case err != nil:
		slog.ErrorContext(ctx, "failed to verify otp", "account_id", in.AccountID, "error", err)
		return nil, goerror.NewServer(err)
	}

	add(ctx, s.otpVerified, metric.WithAttributes(attribute.String("result", "ok")))
	slog.InfoContext(ctx, "otp verified", "account_id", in.AccountID)

	return &VerifyOTPOutput{Verified: true}, nil
}
