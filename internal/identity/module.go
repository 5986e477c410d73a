package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/gostepup/internal/identity/entity"
	"github.com/shandysiswandi/gostepup/internal/identity/inbound"
	"github.com/shandysiswandi/gostepup/internal/identity/outbound/channel"
	"github.com/shandysiswandi/gostepup/internal/identity/outbound/db"
	"github.com/shandysiswandi/gostepup/internal/identity/outbound/mongo"
	"github.com/shandysiswandi/gostepup/internal/identity/outbound/mq"
	"github.com/shandysiswandi/gostepup/internal/identity/usecase"
	"github.com/shandysiswandi/gostepup/internal/pkg/clock"
	"github.com/shandysiswandi/gostepup/internal/pkg/config"
	"github.com/shandysiswandi/gostepup/internal/pkg/goroutine"
	"github.com/shandysiswandi/gostepup/internal/pkg/hash"
	"github.com/shandysiswandi/gostepup/internal/pkg/idempotency"
	"github.com/shandysiswandi/gostepup/internal/pkg/instrument"
	"github.com/shandysiswandi/gostepup/internal/pkg/jwt"
	"github.com/shandysiswandi/gostepup/internal/pkg/messaging"
	"github.com/shandysiswandi/gostepup/internal/pkg/otp"
	"github.com/shandysiswandi/gostepup/internal/pkg/router"
	"github.com/shandysiswandi/gostepup/internal/pkg/telegram"
	"github.com/shandysiswandi/gostepup/internal/pkg/uid"
	"github.com/shandysiswandi/gostepup/internal/pkg/validator"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

const (
	TelegramModePolling  = "polling"
	TelegramModeWebhook  = "webhook"
	TelegramModeDisabled = "disabled"
)

// ErrNoDatabase is returned when neither a postgres pool nor a mongo
// database is given.
var ErrNoDatabase = errors.New("identity: a postgres pool or a mongo database is required")

type Dependency struct {
	Ctx         context.Context            `validate:"required"`
	DBConn      *pgxpool.Pool              // postgres, when database.driver is postgres
	MongoDB     *mongodriver.Database      // when database.driver is mongo
	Telegram    *telegram.Bot              // nil when the bot is disabled
	Goroutine   *goroutine.Manager         `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	Messaging   messaging.Messaging        `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	HMAC        *hash.HMACSHA256           `validate:"required"`
	Bcrypt      *hash.Bcrypt               `validate:"required"`
	Codes       otp.Generator              `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
	JWT         jwt.JWT                    `validate:"required"`
}

// repository is satisfied by both the postgres and the mongo store.
type repository interface {
	CreateAccount(ctx context.Context, acc entity.Account) error
	GetAccountByID(ctx context.Context, id int64) (*entity.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*entity.Account, error)
	GetAccountByLinkCode(ctx context.Context, digest string) (*entity.Account, error)
	UpdateAccountBinding(ctx context.Context, acc entity.Account) error
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	repoDB, err := newRepository(dep)
	if err != nil {
		return err
	}

	var (
		sender telegram.Sender = telegram.Disabled{}
		handle string
	)
	if dep.Telegram != nil {
		sender = dep.Telegram
		handle = dep.Telegram.Username()
	}

	uc := usecase.New(usecase.Dependency{
		RepoDB:        repoDB,
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Channel:       channel.NewTelegram(sender, handle, dep.Instrument),
		Validator:     dep.Validator,
		Config:        dep.Config,
		Bcrypt:        dep.Bcrypt,
		HMAC:          dep.HMAC,
		Codes:         dep.Codes,
		UID:           dep.UID,
		Clock:         dep.Clock,
		JWT:           dep.JWT,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return registerTelegram(dep, uc, sender)
}

func newRepository(dep Dependency) (repository, error) {
	switch {
	case dep.DBConn != nil:
		if dep.Config.GetBool("database.migrate") {
			if err := db.Migrate(dep.Ctx, dep.DBConn); err != nil {
				return nil, fmt.Errorf("identity: migrate: %w", err)
			}
		}
		return db.NewDB(dep.DBConn, dep.Instrument), nil
	case dep.MongoDB != nil:
		repo := mongo.NewDB(dep.MongoDB, dep.Instrument)
		if dep.Config.GetBool("database.migrate") {
			if err := repo.EnsureIndexes(dep.Ctx); err != nil {
				return nil, fmt.Errorf("identity: ensure indexes: %w", err)
			}
		}
		return repo, nil
	default:
		return nil, ErrNoDatabase
	}
}

func registerTelegram(dep Dependency, uc *usecase.Usecase, sender telegram.Sender) error {
	mode := strings.ToLower(strings.TrimSpace(dep.Config.GetString("telegram.mode")))
	if dep.Telegram == nil || mode == "" || mode == TelegramModeDisabled {
		slog.Info("telegram inbound disabled, link codes cannot be redeemed")
		return nil
	}

	end := inbound.NewTelegramEndpoint(uc, sender, dep.Idempotency)

	switch mode {
	case TelegramModeWebhook:
		inbound.RegisterTelegramWebhook(dep.Router, dep.Telegram, end)
	case TelegramModePolling:
		dep.Goroutine.Go(dep.Ctx, func(ctx context.Context) error {
			slog.InfoContext(ctx, "Running job for telegram polling", "bot", dep.Telegram.Username())
			if err := dep.Telegram.Poll(ctx, end.HandleUpdate); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	default:
		return fmt.Errorf("identity: unknown telegram mode %q", mode)
	}

	return nil
}
