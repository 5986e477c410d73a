package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
)

type OnAuthFailureInput struct {
	AccountID  int64     `validate:"required,gt=0"`
	OccurredAt time.Time `validate:"required"`
}

// dispatchSecurityAlert hands OnAuthFailure to the goroutine manager with a
// context that outlives the request.
func (s *Usecase) dispatchSecurityAlert(ctx context.Context, accountID int64) {
	in := OnAuthFailureInput{AccountID: accountID, OccurredAt: s.clock.Now()}

	ok := s.goroutine.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return s.OnAuthFailure(ctx, in)
	})
	if !ok {
		slog.WarnContext(ctx, "security alert dropped", "account_id", accountID)
	}
}

// OnAuthFailure publishes a security alert for a bound account. Unknown or
// unbound accounts are a silent no-op.
func (s *Usecase) OnAuthFailure(ctx context.Context, in OnAuthFailureInput) error {
	ctx, span := s.startSpan(ctx, "OnAuthFailure")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	acc, err := s.repoDB.GetAccountByID(ctx, in.AccountID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "security alert skipped, account not found", "account_id", in.AccountID)
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account by id", "account_id", in.AccountID, "error", err)
		return goerror.NewServer(err)
	}

	if !acc.Binding.Bound() {
		slog.DebugContext(ctx, "security alert skipped, channel not bound", "account_id", acc.ID)
		return nil
	}

	if err := s.repoMessaging.PublishSecurityAlert(ctx, SecurityAlertEvent{
		AccountID:  acc.ID,
		ChannelID:  acc.Binding.ChannelID(),
		Email:      acc.Email,
		OccurredAt: in.OccurredAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish security alert", "account_id", acc.ID, "error", err)
		return goerror.NewServer(err)
	}

	add(ctx, s.alertPublished)
	slog.InfoContext(ctx, "security alert dispatched", "account_id", acc.ID)

	return nil
}
