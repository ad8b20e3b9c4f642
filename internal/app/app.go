package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/mobilebackend/internal/auth"
	"github.com/utafrali/mobilebackend/internal/config"
	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/internal/event"
	"github.com/utafrali/mobilebackend/internal/gateway"
	gatewaymock "github.com/utafrali/mobilebackend/internal/gateway/mock"
	handler "github.com/utafrali/mobilebackend/internal/handler/http"
	"github.com/utafrali/mobilebackend/internal/notify"
	"github.com/utafrali/mobilebackend/internal/repository/postgres"
	"github.com/utafrali/mobilebackend/internal/service"
	"github.com/utafrali/mobilebackend/migrations"
	"github.com/utafrali/mobilebackend/pkg/database"
	"github.com/utafrali/mobilebackend/pkg/health"
	"github.com/utafrali/mobilebackend/pkg/httpclient"
	pkgkafka "github.com/utafrali/mobilebackend/pkg/kafka"
	"github.com/utafrali/mobilebackend/pkg/middleware"
	"github.com/utafrali/mobilebackend/pkg/tracing"
)

const serviceName = "mobile-backend"

// Version is stamped at build time with -ldflags "-X ...app.Version=...".
var Version = "dev"

// App wires together all dependencies and runs the mobile backend.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	amqp           *notify.AMQPConn
	dispatcher     *notify.Dispatcher
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.OTELEnabled,
		ServiceName: serviceName,
		Version:     Version,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTELEndpoint,
		SampleRate:  cfg.OTELSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, serviceName)

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if threshold := cfg.SlowQueryThreshold(); threshold > 0 {
		database.SetSlowQueryLogging(threshold, logger)
	}

	// Redis only backs the rate limiter, so the backend starts without it.
	// Limits are then enforced per instance.
	var (
		redisClient *redis.Client
		limiter     middleware.Limiter
	)
	rateCfg := rateLimitConfig(cfg)
	if rateCfg.Enabled {
		redisClient, err = database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			logger.Warn("redis unavailable, falling back to in-process rate limiting",
				slog.String("addr", cfg.Redis().Addr),
				slog.String("error", err.Error()),
			)
			redisClient = nil
			limiter = middleware.NewLocalLimiter(rateCfg)
		} else {
			limiter = middleware.NewRedisLimiter(redisClient, rateCfg)
			logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr))
		}
	}

	// Initialize Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	senders, amqpConn, err := newSenders(cfg, producer, logger)
	if err != nil {
		_ = producer.Close()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		pool.Close()
		return nil, err
	}
	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		Workers:     cfg.NotifyWorkers,
		QueueSize:   cfg.NotifyQueueSize,
		SendTimeout: cfg.NotifySendTimeout,
	}, senders, logger)

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(cfg.TokenSecret, cfg.TokenTTL)
	userRepo := postgres.NewUserRepository(pool)
	confirmationRepo := postgres.NewConfirmationRepository(pool)
	sessionRepo := postgres.NewSessionTokenRepository(pool)
	attemptRepo := postgres.NewLoginAttemptRepository(pool)
	countryRepo := postgres.NewCountryRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	eventProducer := event.NewProducer(producer, logger)

	otp := service.NewOTPEngine(confirmationRepo, cfg.OTPTTL)
	missCfg := otpMissConfig(cfg)
	if redisClient != nil {
		otp.LimitMisses(middleware.NewRedisLimiter(redisClient, missCfg), logger)
	} else {
		otp.LimitMisses(middleware.NewLocalLimiter(missCfg), logger)
	}
	tokens := service.NewTokenIssuer(sessionRepo, userRepo, jwtManager)
	authService := service.NewAuthService(
		userRepo, attemptRepo, countryRepo, otp, tokens,
		eventProducer, dispatcher, notify.Messages{SiteName: cfg.SiteName}, logger,
	)
	reconciler := service.NewPaymentReconciler(paymentRepo, newGateways(cfg, logger), eventProducer, cfg.GatewayTimeout, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	if amqpConn != nil {
		healthHandler.RegisterNonCritical("amqp", amqpConn.Ping)
	}

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment
	router := handler.NewRouter(authService, reconciler, tokens.Validate, healthHandler, handler.RouterConfig{
		CORS:           corsCfg,
		RateLimit:      rateCfg,
		Limiter:        limiter,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		TrustedProxies: cfg.TrustedProxyCIDRs,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		amqp:           amqpConn,
		dispatcher:     dispatcher,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rc := middleware.DefaultRateLimitConfig()
	rc.Enabled = cfg.RateLimitEnabled
	rc.Capacity = cfg.RateLimitCapacity
	rc.RefillInterval = cfg.RateLimitRefillInterval
	return rc
}

// otpMissConfig budgets wrong codes per user. It stays on when HTTP rate
// limiting is disabled.
func otpMissConfig(cfg *config.Config) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Enabled:        true,
		Capacity:       cfg.OTPMaxMisses,
		RefillTokens:   1,
		RefillInterval: cfg.OTPMissRefill,
		TTL:            time.Duration(cfg.OTPMaxMisses+1) * cfg.OTPMissRefill,
	}
}

// newSenders builds one sender per notification channel. SMS goes to Twilio
// when credentials are configured and to the log otherwise. Email is handed to
// the mail worker over Kafka or RabbitMQ.
func newSenders(cfg *config.Config, producer *pkgkafka.Producer, logger *slog.Logger) (map[string]notify.Sender, *notify.AMQPConn, error) {
	senders := make(map[string]notify.Sender, 2)

	twilioCfg := notify.TwilioConfig{
		BaseURL:    cfg.TwilioBaseURL,
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioFromNumber,
	}
	if twilioCfg.Enabled() {
		client := newBreakerClient("twilio", cfg.NotifySendTimeout, logger)
		senders[notify.ChannelSMS] = notify.NewTwilioSender(twilioCfg, client)
	} else {
		logger.Warn("twilio credentials not set, SMS notifications are logged only")
		senders[notify.ChannelSMS] = notify.NewLogSender(notify.ChannelSMS, logger)
	}

	if cfg.NotifyEmailTransport == "amqp" {
		conn, err := notify.DialAMQP(cfg.AMQPURL, notify.EmailQueue)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		logger.Info("connected to RabbitMQ", slog.String("queue", notify.EmailQueue))
		senders[notify.ChannelEmail] = notify.NewAMQPEmailSender(conn.Channel, notify.EmailQueue)
		return senders, conn, nil
	}

	senders[notify.ChannelEmail] = notify.NewKafkaEmailSender(producer, serviceName)
	return senders, nil, nil
}

// newGateways registers the card gateways. Without credentials, development
// builds fall back to local mock gateways.
func newGateways(cfg *config.Config, logger *slog.Logger) gateway.Registry {
	var gateways []gateway.Gateway

	switch {
	case cfg.BillplzAPIKey != "":
		gateways = append(gateways, gateway.NewBillplz(gateway.BillplzConfig{
			BaseURL:      cfg.BillplzBaseURL,
			APIKey:       cfg.BillplzAPIKey,
			CollectionID: cfg.BillplzCollectionID,
			SignatureKey: cfg.BillplzSignatureKey,
			CallbackURL:  cfg.MediaHost + "/payment/billplz/callback",
			RedirectURL:  cfg.MediaHost + "/payment/billplz/redirect",
		}, newBreakerClient("billplz", cfg.GatewayTimeout, logger)))
	case cfg.IsDevelopment():
		logger.Warn("billplz credentials not set, using mock gateway")
		gateways = append(gateways, gatewaymock.New(domain.PaymentMethodBillplz, cfg.MediaHost, cfg.MockGatewayToken))
	}

	switch {
	case cfg.PaypalClientID != "":
		gateways = append(gateways, gateway.NewPaypal(gateway.PaypalConfig{
			BaseURL:      cfg.PaypalBaseURL,
			ClientID:     cfg.PaypalClientID,
			ClientSecret: cfg.PaypalClientSecret,
			WebhookID:    cfg.PaypalWebhookID,
			Currency:     cfg.PaypalCurrency,
			ReturnURL:    orDefault(cfg.PaypalReturnURL, cfg.MediaHost),
			CancelURL:    orDefault(cfg.PaypalCancelURL, cfg.MediaHost),
		}, newBreakerClient("paypal", cfg.GatewayTimeout, logger)))
	case cfg.IsDevelopment():
		logger.Warn("paypal credentials not set, using mock gateway")
		gateways = append(gateways, gatewaymock.New(domain.PaymentMethodPaypal, cfg.MediaHost, cfg.MockGatewayToken))
	}

	return gateway.NewRegistry(gateways...)
}

// orDefault returns v, or def when v is empty.
func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// newBreakerClient returns a client for a third-party API. Provider calls
// create resources, so they are not retried.
func newBreakerClient(name string, timeout time.Duration, logger *slog.Logger) *httpclient.Breaker {
	hc := httpclient.DefaultConfig()
	hc.Timeout = timeout
	hc.MaxRetries = 0
	return httpclient.NewBreaker(httpclient.New(hc), httpclient.DefaultBreakerConfig(name), logger)
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Notification dispatcher (deliver queued notifications)
// 3. Tracer (flush pending spans)
// 4. Kafka producer and RabbitMQ connection
// 5. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Workers finish the queue before their transports close.
	a.dispatcher.Close()

	// 3. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close message transports.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Error("amqp close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 5. Close stores.
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
