package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/gostepup/internal/notification/usecase"
	"github.com/shandysiswandi/gostepup/internal/pkg/instrument"
	"github.com/shandysiswandi/gostepup/internal/pkg/messaging"
	"github.com/shandysiswandi/gostepup/internal/pkg/uid"
	"github.com/shandysiswandi/gostepup/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, msg messaging.Message) context.Context {
	if cID, ok := messaging.HeaderValue(msg, keyOfCorrelationID); ok && cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

func (h *MQHandler) SecurityAlertNotification(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "SecurityAlertNotification")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: security alert notification", "msg_body", string(body))

	var payload event.SecurityAlertMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of security alert notification", "msg_body", string(body), "error", err)
		return nil
	}

	if err := h.uc.ConsumeSecurityAlert(ctx, usecase.ConsumeSecurityAlertInput{
		AccountID:  payload.AccountID,
		ChannelID:  payload.ChannelID,
		OccurredAt: payload.OccurredAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume security alert", "account_id", payload.AccountID, "error", err)
		return err
	}

	return nil
}
