package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/gostepup/internal/identity/entity"
	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
)

type RedeemLinkCodeInput struct {
	Code      string `validate:"required,otpcode"`
	ChannelID string `validate:"required,max=64"`
}

type RedeemLinkCodeOutput struct {
	AccountID int64
}

// RedeemLinkCode binds ChannelID to the account holding Code and consumes the
// code. A code that is unknown, superseded or already redeemed yields the
// same link_code_not_found rejection.
func (s *Usecase) RedeemLinkCode(ctx context.Context, in RedeemLinkCodeInput) (*RedeemLinkCodeOutput, error) {
	ctx, span := s.startSpan(ctx, "RedeemLinkCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	acc, err := s.mutateAccount(ctx, s.byLinkCode(s.hmac.Digest(in.Code)), func(acc *entity.Account) error {
		return acc.RedeemLinkCode(in.ChannelID, s.clock.Now())
	})
	switch {
	case errors.Is(err, goerror.ErrNotFound), errors.Is(err, entity.ErrLinkCodeNotFound):
		slog.WarnContext(ctx, "link code not found", "channel_id", in.ChannelID)
		return nil, goerror.NewRejected(entity.ErrLinkCodeNotFound, "Invalid verification code", "link_code_not_found", goerror.CodeNotFound)
	case errors.Is(err, goerror.ErrStale):
		slog.WarnContext(ctx, "link code not redeemed, account kept changing", "channel_id", in.ChannelID)
		return nil, errConcurrentUpdate()
	case err != nil:
		slog.ErrorContext(ctx, "failed to redeem link code", "channel_id", in.ChannelID, "error", err)
		return nil, goerror.NewServer(err)
	}

	add(ctx, s.linkRedeemed)
	slog.InfoContext(ctx, "channel linked", "account_id", acc.ID, "channel_id", in.ChannelID)

	return &RedeemLinkCodeOutput{AccountID: acc.ID}, nil
}
