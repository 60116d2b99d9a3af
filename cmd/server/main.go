package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ridelink/internal/app"
	"ridelink/internal/config"
	"ridelink/internal/gateway"
	"ridelink/internal/geo"
	"ridelink/internal/handler"
	"ridelink/internal/logger"
	"ridelink/internal/middleware"
	internalRedis "ridelink/internal/redis"
	"ridelink/internal/repository/postgres"
	"ridelink/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Setup(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic first so the database driver can be instrumented.
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logrus.WithError(err).Warn("failed to initialize New Relic")
		} else {
			logrus.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	logrus.Info("connected to PostgreSQL")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			logrus.WithError(err).Fatal("failed to connect to redis")
		}
		defer redisClient.Close()
		logrus.Info("connected to Redis")
	}

	server, sweeper := wireServer(db, redisClient, nrApp, cfg)
	sweeper.Start()
	defer sweeper.Stop()

	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Fatal("server forced to shutdown")
	}

	logrus.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server and the
// background ride-expiry sweeper.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *service.ExpirySweeper) {
	// Repositories.
	userRepo := postgres.NewUserRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	rideRepo := postgres.NewRideRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)

	// Driver matching runs off Redis GEO when Redis is available and
	// falls back to a repository scan otherwise.
	var geoIndex geo.Index
	var lockStore internalRedis.LockStoreInterface
	if redisClient != nil {
		locationStore := internalRedis.NewLocationStore(redisClient)
		geoIndex = geo.NewRedisIndex(locationStore, driverRepo)
		lockStore = internalRedis.NewLockStore(redisClient)
	} else {
		geoIndex = geo.NewDriverIndex(driverRepo)
	}

	// Outbound gateways. Stubs keep local development working without
	// processor credentials.
	var payments gateway.PaymentGateway
	if cfg.Stripe.SecretKey != "" {
		payments = gateway.NewStripeGateway(cfg.Stripe.SecretKey)
	} else {
		payments = gateway.NewStubPaymentGateway()
	}

	var messages gateway.MessagingGateway
	if cfg.Twilio.AccountSID != "" {
		messages = gateway.NewTwilioGateway(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.WhatsAppNumber)
	} else {
		messages = gateway.NewStubMessagingGateway()
	}

	// Services.
	authManager := middleware.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	fare := service.NewFareCalculator(cfg.Fare.Base, cfg.Fare.PerKm, cfg.Fare.Currency)
	ledger := service.NewRideLedger(db, rideRepo, driverRepo, paymentRepo)
	notifier := service.NewNotifier(messages, userRepo, driverRepo)
	dispatch := service.NewDispatchService(ledger, geoIndex, fare, lockStore, payments, notifier, userRepo, cfg.Matching.SearchRadiusKm)
	identity := service.NewIdentityService(userRepo, payments, authManager)
	sweeper := service.NewExpirySweeper(ledger, cfg.Matching.RequestTimeout, cfg.Matching.SweepInterval)

	// Handlers.
	userHandler := handler.NewUserHandler(identity, ledger)
	rideHandler := handler.NewRideHandler(dispatch, ledger, identity, driverRepo)
	driverHandler := handler.NewDriverHandler(dispatch, ledger, driverRepo)
	paymentHandler := handler.NewPaymentHandler(dispatch, ledger, cfg.Stripe.WebhookSecret)
	whatsAppHandler := handler.NewWhatsAppHandler(dispatch, identity, driverRepo)

	router := app.NewRouter(app.RouterDeps{
		UserHandler:     userHandler,
		RideHandler:     rideHandler,
		DriverHandler:   driverHandler,
		PaymentHandler:  paymentHandler,
		WhatsAppHandler: whatsAppHandler,
		AuthManager:     authManager,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return server, sweeper
}
