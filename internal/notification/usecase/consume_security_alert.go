package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gostepup/internal/notification/entity"
	"github.com/shandysiswandi/gostepup/internal/pkg/telegram"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type ConsumeSecurityAlertInput struct {
	AccountID  int64     `validate:"required,gt=0"`
	ChannelID  string    `validate:"required"`
	OccurredAt time.Time `validate:"required"`
}

// ConsumeSecurityAlert sends the alert text to the bound channel. A transient
// send failure is returned so the broker redelivers; invalid input and
// deliveries that can never succeed are logged and dropped.
func (s *Usecase) ConsumeSecurityAlert(ctx context.Context, in ConsumeSecurityAlertInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeSecurityAlert")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	alert := entity.SecurityAlert{AccountID: in.AccountID, ChannelID: in.ChannelID, OccurredAt: in.OccurredAt}

	status := entity.DeliveryStatusSent
	err := s.channel.Send(ctx, alert.ChannelID, alert.Text(s.location()))
	switch {
	case err == nil:
		slog.InfoContext(ctx, "security alert delivered", "account_id", in.AccountID)
	case errors.Is(err, telegram.ErrDisabled), errors.Is(err, telegram.ErrInvalidChatID):
		status = entity.DeliveryStatusDropped
		slog.WarnContext(ctx, "security alert dropped", "account_id", in.AccountID, "error", err)
		err = nil
	default:
		status = entity.DeliveryStatusFailed
		slog.ErrorContext(ctx, "failed to deliver security alert", "account_id", in.AccountID, "error", err)
	}

	if s.delivered != nil {
		s.delivered.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status.String())))
	}

	return err
}
