package channel

import (
	"context"

	"github.com/shandysiswandi/gostepup/internal/pkg/instrument"
	"github.com/shandysiswandi/gostepup/internal/pkg/telegram"
	"go.opentelemetry.io/otel/codes"
)

type Telegram struct {
	sender telegram.Sender
	ins    instrument.Instrumentation
}

func NewTelegram(sender telegram.Sender, ins instrument.Instrumentation) *Telegram {
	return &Telegram{sender: sender, ins: ins}
}

func (t *Telegram) Send(ctx context.Context, channelID, text string) error {
	ctx, span := t.ins.Tracer("notification.outbound.channel").Start(ctx, "Send")
	defer span.End()

	if err := t.sender.Send(ctx, channelID, text); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
