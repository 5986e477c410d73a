package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/shandysiswandi/gostepup/internal/identity/entity"
	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
)

type IssueLinkCodeInput struct {
	AccountID int64 `validate:"required,gt=0"`
}

type IssueLinkCodeOutput struct {
	Code          string
	ChannelHandle string
	DeepLink      string
}

// IssueLinkCode stores a fresh link code, replacing any pending one. A code
// whose digest is already pending on another account is regenerated.
func (s *Usecase) IssueLinkCode(ctx context.Context, in IssueLinkCodeInput) (*IssueLinkCodeOutput, error) {
	ctx, span := s.startSpan(ctx, "IssueLinkCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	var code string
	var err error
	for attempt := 1; attempt <= s.linkCodeMaxAttempts(); attempt++ {
		code, err = s.codes.Generate()
		if err != nil {
			slog.ErrorContext(ctx, "failed to generate link code", "account_id", in.AccountID, "error", err)
			return nil, goerror.NewServer(err)
		}

		digest := s.hmac.Digest(code)
		_, err = s.mutateAccount(ctx, s.byID(in.AccountID), func(acc *entity.Account) error {
			return acc.IssueLinkCode(digest, s.clock.Now())
		})
		if !errors.Is(err, goerror.ErrConflict) {
			break
		}
		slog.WarnContext(ctx, "link code collided with a pending code, regenerating", "account_id", in.AccountID, "attempt", attempt)
	}

	switch {
	case errors.Is(err, goerror.ErrNotFound):
		slog.WarnContext(ctx, "account not found", "account_id", in.AccountID)
		return nil, errAccountNotFound()
	case errors.Is(err, goerror.ErrStale):
		slog.WarnContext(ctx, "link code not stored, account kept changing", "account_id", in.AccountID)
		return nil, errConcurrentUpdate()
	case err != nil:
		slog.ErrorContext(ctx, "failed to store link code", "account_id", in.AccountID, "error", err)
		return nil, goerror.NewServer(err)
	}

	handle := s.channel.Handle()
	out := &IssueLinkCodeOutput{Code: code, ChannelHandle: handle}
	if handle != "" {
		out.DeepLink = fmt.Sprintf("https://t.me/%s?start=%s", url.PathEscape(handle), url.QueryEscape(code))
	}

	return out, nil
}
