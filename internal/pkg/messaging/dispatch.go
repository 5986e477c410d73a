package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/shandysiswandi/gostepup/internal/pkg/stacktrace"
	"go.uber.org/atomic"
)

// responder makes Ack and Nack take effect once.
type responder struct {
	done atomic.Bool
}

func (r *responder) hasResponded() bool { return r.done.Load() }

// claim reports whether the caller is the first to respond.
func (r *responder) claim() bool { return !r.done.Swap(true) }

type received interface {
	Message
	hasResponded() bool
}

// dispatch runs handler with panic recovery and applies auto ack.
func dispatch(ctx context.Context, kind string, handler Handler, msg received, autoAck bool) error {
	herr := callHandler(ctx, kind, handler, msg)

	if !autoAck || msg.hasResponded() {
		return herr
	}
	if herr != nil {
		slog.WarnContext(ctx, "message handler failed, nacking", "kind", kind, "topic", msg.Topic(), "error", herr)
		return msg.Nack(ctx)
	}
	return msg.Ack(ctx)
}

func callHandler(ctx context.Context, kind string, handler Handler, msg Message) (err error) {
	defer func() {
		rvr := recover()
		if rvr == nil {
			return
		}

		stack := debug.Stack()
		if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
			slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", paths)
		} else {
			slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", string(stack))
		}
		err = fmt.Errorf("messaging: panic in %s handler: %v", kind, rvr)
	}()

	return handler(ctx, msg)
}

func validateConsume(ctx context.Context, source string, handler Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrTopicRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	return nil
}
