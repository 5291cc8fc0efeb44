package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/access-gate/internal/assist"
	"github.com/iliyamo/access-gate/internal/config"
	"github.com/iliyamo/access-gate/internal/database"
	"github.com/iliyamo/access-gate/internal/handler"
	"github.com/iliyamo/access-gate/internal/payment"
	"github.com/iliyamo/access-gate/internal/queue"
	"github.com/iliyamo/access-gate/internal/repository"
	"github.com/iliyamo/access-gate/internal/router"
	"github.com/iliyamo/access-gate/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	// Redis serves rate limiting and the health cache, and the code store
	// when STORE_BACKEND=redis.  nil disables the optional users.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unreachable: rate limiting and health cache disabled")
	}
	kv, err := config.NewStore(cfg, rdb)
	if err != nil {
		log.Fatal(err)
	}

	codes := repository.NewCodeRepo(kv, cfg.CodePrefix)
	locks := repository.NewSessionLockRepo(kv)
	zones := repository.NewZoneRepo(kv)

	var payments payment.Provider
	if cfg.StripeSecret != "" {
		payments = payment.NewStripeProvider(cfg.StripeSecret)
	}

	var audit *repository.AuditRepo
	if cfg.DatabaseConfigured() {
		db, err := openLedger(cfg)
		if err != nil {
			log.Printf("audit ledger disabled: %v", err)
		} else {
			audit = repository.NewAuditRepo(db)
			if cfg.AMQPURL != "" {
				go queue.StartIssuanceConsumer(cfg.AMQPURL, audit)
			}
		}
	}

	issuer := service.NewIssuer(payments, codes, service.NewPublisher(cfg.AMQPURL))
	gateway := service.NewGateway(codes, locks, cfg.SessionLockTTL)
	var checkout *service.CheckoutService
	if payments != nil {
		checkout = service.NewCheckoutService(payments, cfg.StripePriceID, cfg.StripeCheckoutMode)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Printf("%s %s %d %s ip=%s rid=%s", v.Method, v.URI, v.Status, v.Latency, v.RemoteIP, v.RequestID)
			return nil
		},
	}))
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, handler.NewHealthHandler(cfg, kv, payments), config.LoadCacheConfig(), rdb)
	router.RegisterPublic(e, router.PublicHandlers{
		Codes:    handler.NewAccessCodeHandler(issuer, gateway),
		Checkout: handler.NewCheckoutHandler(checkout, cfg.StripeSecret, cfg.StripePriceID, cfg.AppBaseURL),
		Zones:    handler.NewZoneHandler(codes, zones),
		Writing:  handler.NewWritingHandler(assist.NewSuggester(cfg.OpenAIKey, cfg.OpenAIModel)),
		Webhook:  handler.NewWebhookHandler(cfg.StripeWebhookSecret, issuer),
	}, config.LoadRateLimitConfig(), rdb)
	router.RegisterAdmin(e, handler.NewAdminHandler(cfg, codes, locks, audit), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, store=%s, lock ttl=%s)", addr, cfg.Env, cfg.StoreBackend, cfg.SessionLockTTL)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

// openLedger opens MySQL and makes sure the ledger table exists.
func openLedger(cfg config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
