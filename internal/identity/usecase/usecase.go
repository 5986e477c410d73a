package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/gostepup/internal/identity/entity"
	"github.com/shandysiswandi/gostepup/internal/pkg/clock"
	"github.com/shandysiswandi/gostepup/internal/pkg/config"
	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
	"github.com/shandysiswandi/gostepup/internal/pkg/goroutine"
	"github.com/shandysiswandi/gostepup/internal/pkg/instrument"
	"github.com/shandysiswandi/gostepup/internal/pkg/jwt"
	"github.com/shandysiswandi/gostepup/internal/pkg/otp"
	"github.com/shandysiswandi/gostepup/internal/pkg/uid"
	"github.com/shandysiswandi/gostepup/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultOTPTTL              = 5 * time.Minute
	defaultCASMaxRetries       = 5
	defaultLinkCodeMaxAttempts = 3
	casBaseBackoff             = 5 * time.Millisecond
	casMaxBackoff              = 100 * time.Millisecond
)

type SecurityAlertEvent struct {
	AccountID  int64
	ChannelID  string
	Email      string
	OccurredAt time.Time
}

type repoMessaging interface {
	PublishSecurityAlert(ctx context.Context, msg SecurityAlertEvent) error
}

// repoDB persists accounts. UpdateAccountBinding writes only when the stored
// revision equals acc.Revision and returns goerror.ErrStale otherwise. A
// pending link code digest already held by another account is
// goerror.ErrConflict.
type repoDB interface {
	CreateAccount(ctx context.Context, acc entity.Account) error
	GetAccountByID(ctx context.Context, id int64) (*entity.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*entity.Account, error)
	GetAccountByLinkCode(ctx context.Context, digest string) (*entity.Account, error)
	UpdateAccountBinding(ctx context.Context, acc entity.Account) error
}

// channel delivers text to a bound external identity.
type channel interface {
	Send(ctx context.Context, channelID, text string) error
	// Handle is the public name users open to link, e.g. the bot username.
	Handle() string
}

type passwordHasher interface {
	Hash(plaintext string) ([]byte, error)
	Verify(hashed, plaintext string) bool
}

type digester interface {
	Digest(str string) string
}

type Usecase struct {
	repoDB        repoDB
	repoMessaging repoMessaging
	channel       channel
	validator     validator.Validator
	cfg           config.Config
	bcrypt        passwordHasher
	hmac          digester
	codes         otp.Generator
	uid           uid.NumberID
	clock         clock.Clocker
	jwt           jwt.JWT
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager

	otpIssued      metric.Int64Counter
	otpVerified    metric.Int64Counter
	linkRedeemed   metric.Int64Counter
	alertPublished metric.Int64Counter
}

type Dependency struct {
	RepoDB        repoDB
	RepoMessaging repoMessaging
	Channel       channel
	Validator     validator.Validator
	Config        config.Config
	Bcrypt        passwordHasher
	HMAC          digester
	Codes         otp.Generator
	UID           uid.NumberID
	Clock         clock.Clocker
	JWT           jwt.JWT
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	s := &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		channel:       dep.Channel,
		validator:     dep.Validator,
		cfg:           dep.Config,
		bcrypt:        dep.Bcrypt,
		hmac:          dep.HMAC,
		codes:         dep.Codes,
		uid:           dep.UID,
		clock:         dep.Clock,
		jwt:           dep.JWT,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
	}

	meter := s.ins.Meter("identity.usecase")
	s.otpIssued = newCounter(meter, "identity.otp.issued", "OTPs stored for a bound account")
	s.otpVerified = newCounter(meter, "identity.otp.verified", "OTP verification attempts by result")
	s.linkRedeemed = newCounter(meter, "identity.link.redeemed", "Link codes redeemed into a channel binding")
	s.alertPublished = newCounter(meter, "identity.security_alert.dispatched", "Security alerts published for bound accounts")

	return s
}

func newCounter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		slog.Error("failed to create counter", "name", name, "error", err)
	}
	return c
}

func add(ctx context.Context, c metric.Int64Counter, opts ...metric.AddOption) {
	if c != nil {
		c.Add(ctx, 1, opts...)
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("identity.usecase").Start(ctx, name)
}

func (s *Usecase) otpTTL() time.Duration {
	if ttl := s.cfg.GetMinute("modules.identity.otp_ttl_minutes"); ttl > 0 {
		return ttl
	}
	return defaultOTPTTL
}

func (s *Usecase) casMaxRetries() uint64 {
	if n := s.cfg.GetInt("modules.identity.cas_max_retries"); n > 0 {
		return uint64(n)
	}
	return defaultCASMaxRetries
}

func (s *Usecase) linkCodeMaxAttempts() int {
	if n := s.cfg.GetInt("modules.identity.link_code_max_attempts"); n > 0 {
		return n
	}
	return defaultLinkCodeMaxAttempts
}

type accountLoader func(ctx context.Context) (*entity.Account, error)

func (s *Usecase) byID(id int64) accountLoader {
	return func(ctx context.Context) (*entity.Account, error) {
		return s.repoDB.GetAccountByID(ctx, id)
	}
}

func (s *Usecase) byLinkCode(digest string) accountLoader {
	return func(ctx context.Context) (*entity.Account, error) {
		return s.repoDB.GetAccountByLinkCode(ctx, digest)
	}
}

// mutateAccount loads an account, applies a transition and writes it back
// with a revision check. A lost race reloads and reapplies. Errors from load
// and apply are returned as is; nothing is written when apply fails.
func (s *Usecase) mutateAccount(ctx context.Context, load accountLoader, apply func(*entity.Account) error) (*entity.Account, error) {
	b := retry.NewExponential(casBaseBackoff)
	b = retry.WithCappedDuration(casMaxBackoff, b)
	b = retry.WithJitterPercent(25, b)
	b = retry.WithMaxRetries(s.casMaxRetries(), b)

	var out *entity.Account
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		acc, err := load(ctx)
		if err != nil {
			return err
		}

		if err := apply(acc); err != nil {
			return err
		}

		err = s.repoDB.UpdateAccountBinding(ctx, *acc)
		if errors.Is(err, goerror.ErrStale) {
			slog.DebugContext(ctx, "account revision moved, retrying", "account_id", acc.ID, "revision", acc.Revision)
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}

		acc.Revision++
		out = acc
		return nil
	})

	return out, err
}

// errAccountNotFound is returned when an authenticated account id no longer
// resolves.
func errAccountNotFound() error {
	return goerror.NewBusiness("Account not found", goerror.CodeNotFound)
}

func errConcurrentUpdate() error {
	return goerror.NewBusiness("Account was modified concurrently, please retry", goerror.CodeConflict)
}
