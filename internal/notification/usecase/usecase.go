package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gostepup/internal/pkg/config"
	"github.com/shandysiswandi/gostepup/internal/pkg/instrument"
	"github.com/shandysiswandi/gostepup/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type channel interface {
	Send(ctx context.Context, channelID, text string) error
}

type Usecase struct {
	channel   channel
	cfg       config.Config
	validator validator.Validator
	ins       instrument.Instrumentation

	delivered metric.Int64Counter
}

type Dependency struct {
	Channel    channel
	Config     config.Config
	Validator  validator.Validator
	Instrument instrument.Instrumentation
}

func NewNotification(dep Dependency) *Usecase {
	s := &Usecase{
		channel:   dep.Channel,
		cfg:       dep.Config,
		validator: dep.Validator,
		ins:       dep.Instrument,
	}

	c, err := s.ins.Meter("notification.usecase").Int64Counter("notification.security_alert.delivered",
		metric.WithDescription("Security alert deliveries by status"))
	if err != nil {
		slog.Error("failed to create counter", "name", "notification.security_alert.delivered", "error", err)
	}
	s.delivered = c

	return s
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}

// location is the zone alert times are rendered in, UTC unless
// modules.notification.timezone names a valid one.
func (s *Usecase) location() *time.Location {
	name := s.cfg.GetString("modules.notification.timezone")
	if name == "" {
		return time.UTC
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("invalid notification timezone, using UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}
