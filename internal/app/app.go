package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/gostepup/internal/pkg/clock"
	"github.com/shandysiswandi/gostepup/internal/pkg/config"
	"github.com/shandysiswandi/gostepup/internal/pkg/goroutine"
	"github.com/shandysiswandi/gostepup/internal/pkg/hash"
	"github.com/shandysiswandi/gostepup/internal/pkg/idempotency"
	"github.com/shandysiswandi/gostepup/internal/pkg/instrument"
	"github.com/shandysiswandi/gostepup/internal/pkg/jwt"
	"github.com/shandysiswandi/gostepup/internal/pkg/messaging"
	"github.com/shandysiswandi/gostepup/internal/pkg/otp"
	"github.com/shandysiswandi/gostepup/internal/pkg/ratelimit"
	"github.com/shandysiswandi/gostepup/internal/pkg/router"
	"github.com/shandysiswandi/gostepup/internal/pkg/telegram"
	"github.com/shandysiswandi/gostepup/internal/pkg/uid"
	"github.com/shandysiswandi/gostepup/internal/pkg/validator"
	"go.mongodb.org/mongo-driver/mongo"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	hmac      *hash.HMACSHA256
	bcrypt    *hash.Bcrypt
	uid       uid.NumberID
	uuid      uid.StringID
	codes     otp.Generator
	jwt       jwt.JWT

	// resources
	dbConn      *pgxpool.Pool
	mongoClient *mongo.Client
	mongoDB     *mongo.Database
	cacheConn   *redis.Client
	idemp       idempotency.Idempotency
	limiter     ratelimit.Limiter
	messaging   messaging.Messaging
	telegram    *telegram.Bot

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initJWT()
	app.initDatabase()
	app.initCache()
	app.initRateLimiter()
	app.initMessaging()
	app.initTelegram()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
