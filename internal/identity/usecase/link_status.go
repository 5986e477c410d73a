package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
)

type LinkStatusInput struct {
	AccountID int64 `validate:"required,gt=0"`
}

type LinkStatusOutput struct {
	Bound bool
	Stage string
}

func (s *Usecase) LinkStatus(ctx context.Context, in LinkStatusInput) (*LinkStatusOutput, error) {
	ctx, span := s.startSpan(ctx, "LinkStatus")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	acc, err := s.repoDB.GetAccountByID(ctx, in.AccountID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "account not found", "account_id", in.AccountID)
		return nil, errAccountNotFound()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account by id", "account_id", in.AccountID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &LinkStatusOutput{
		Bound: acc.Binding.Bound(),
		Stage: acc.Binding.Stage().String(),
	}, nil
}
