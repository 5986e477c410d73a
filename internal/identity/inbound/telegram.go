package inbound

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shandysiswandi/gostepup/internal/identity/entity"
	"github.com/shandysiswandi/gostepup/internal/identity/usecase"
	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
	"github.com/shandysiswandi/gostepup/internal/pkg/idempotency"
	"github.com/shandysiswandi/gostepup/internal/pkg/instrument"
	"github.com/shandysiswandi/gostepup/internal/pkg/router"
	"github.com/shandysiswandi/gostepup/internal/pkg/telegram"
)

const (
	replyLinked      = "Successfully connected! You can now receive OTP codes here."
	replyInvalidCode = "Invalid verification code. Please try again."
	replyFailed      = "An error occurred. Please try again."
	replyHelp        = "Send /start [code] to connect your account.\nYou will receive OTP codes here after"
)

type linkRedeemer interface {
	RedeemLinkCode(ctx context.Context, in usecase.RedeemLinkCodeInput) (*usecase.RedeemLinkCodeOutput, error)
}

type webhookParser interface {
	ParseWebhook(r *http.Request) (telegram.Update, bool, error)
}

// TelegramEndpoint answers bot commands. Every update id is handled at most
// once, whether it arrived by polling or by webhook.
type TelegramEndpoint struct {
	uc          linkRedeemer
	sender      telegram.Sender
	idempotency idempotency.Idempotency
}

func NewTelegramEndpoint(uc linkRedeemer, sender telegram.Sender, idem idempotency.Idempotency) *TelegramEndpoint {
	return &TelegramEndpoint{uc: uc, sender: sender, idempotency: idem}
}

// RegisterTelegramWebhook mounts the webhook receiver. Telegram retries any
// non-2xx answer, so only a bad secret is rejected.
func RegisterTelegramWebhook(r *router.Router, parser webhookParser, end *TelegramEndpoint) {
	r.POSTRaw("/api/v1/identity/telegram/webhook", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		upd, ok, err := parser.ParseWebhook(req)
		if errors.Is(err, telegram.ErrInvalidSecret) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err != nil {
			slog.WarnContext(req.Context(), "failed to parse telegram webhook", "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}

		if ok {
			end.HandleUpdate(req.Context(), upd)
		}
		w.WriteHeader(http.StatusOK)
	}))
}

// HandleUpdate is the polling callback and the webhook body handler.
func (e *TelegramEndpoint) HandleUpdate(ctx context.Context, upd telegram.Update) {
	if instrument.GetCorrelationID(ctx) == "" {
		ctx = instrument.SetCorrelationID(ctx, "tg-"+strconv.Itoa(upd.ID))
	}

	key := "telegram:update:" + strconv.Itoa(upd.ID)
	err := e.idempotency.Exec(ctx, key, func(ctx context.Context) error {
		return e.handleCommand(ctx, upd)
	})

	switch {
	case err == nil:
	case errors.Is(err, idempotency.ErrAlreadyCompleted),
		errors.Is(err, idempotency.ErrAlreadyInProgress),
		errors.Is(err, idempotency.ErrAlreadyFailed):
		slog.DebugContext(ctx, "telegram update already handled", "update_id", upd.ID)
	default:
		slog.ErrorContext(ctx, "failed to handle telegram update", "update_id", upd.ID, "error", err)
	}
}

func (e *TelegramEndpoint) handleCommand(ctx context.Context, upd telegram.Update) error {
	switch upd.Command {
	case "start":
		if upd.Args == "" {
			return e.reply(ctx, upd.ChatID, replyHelp)
		}
		return e.reply(ctx, upd.ChatID, e.redeem(ctx, upd))
	case "help":
		return e.reply(ctx, upd.ChatID, replyHelp)
	default:
		return nil
	}
}

func (e *TelegramEndpoint) redeem(ctx context.Context, upd telegram.Update) string {
	_, err := e.uc.RedeemLinkCode(ctx, usecase.RedeemLinkCodeInput{Code: upd.Args, ChannelID: upd.ChatID})
	if err == nil {
		return replyLinked
	}

	var gerr *goerror.Error
	if errors.Is(err, entity.ErrLinkCodeNotFound) ||
		(errors.As(err, &gerr) && gerr.Type() == goerror.TypeValidation) {
		return replyInvalidCode
	}

	slog.ErrorContext(ctx, "failed to redeem link code", "chat_id", upd.ChatID, "error", err)
	return replyFailed
}

func (e *TelegramEndpoint) reply(ctx context.Context, chatID, text string) error {
	if err := e.sender.Send(ctx, chatID, text); err != nil {
		slog.ErrorContext(ctx, "failed to send telegram reply", "chat_id", chatID, "error", err)
		return err
	}
	return nil
}
