package channel

import (
	"context"

	"github.com/shandysiswandi/gostepup/internal/pkg/instrument"
	"github.com/shandysiswandi/gostepup/internal/pkg/telegram"
	"go.opentelemetry.io/otel/codes"
)

// Telegram delivers OTP messages to a bound chat.
type Telegram struct {
	sender telegram.Sender
	handle string
	ins    instrument.Instrumentation
}

// NewTelegram wraps sender. handle is the bot username shown in link
// instructions, "" when unknown.
func NewTelegram(sender telegram.Sender, handle string, ins instrument.Instrumentation) *Telegram {
	return &Telegram{sender: sender, handle: handle, ins: ins}
}

func (t *Telegram) Send(ctx context.Context, channelID, text string) error {
	ctx, span := t.ins.Tracer("identity.outbound.channel").Start(ctx, "Send")
	defer span.End()

	if err := t.sender.Send(ctx, channelID, text); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (t *Telegram) Handle() string { return t.handle }
