package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ms-checkin/internal/auth"
	"ms-checkin/internal/config"
	"ms-checkin/internal/database/migrations"
	"ms-checkin/internal/kafka"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/seed"
	"ms-checkin/internal/sse"
	ticket_db "ms-checkin/internal/tickets/db"
	"ms-checkin/internal/tickets/directory"
	qr "ms-checkin/internal/tickets/qr_genrator"
	tickets "ms-checkin/internal/tickets/service"
	"ms-checkin/internal/tickets/status"
	"ms-checkin/internal/tickets/template"
	"ms-checkin/internal/tickets/ticket_api"
	"ms-checkin/internal/utils"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func verifyDatabase(cfg config.DatabaseConfig, logger *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

// buildStatusStore returns the configured status backend and, for redis, the
// client so main can close it.
func buildStatusStore(ctx context.Context, cfg *config.Config, logger *logger.Logger) (status.Store, *redis.Client) {
	if cfg.Checkin.StoreBackend != config.BackendRedis {
		store := status.NewFileStore(cfg.Checkin.StatusFile, cfg.Checkin.FallbackDir, logger)
		logger.Info("STATUS", fmt.Sprintf("Using file status store at %s (fallback %s)", cfg.Checkin.StatusFile, store.FallbackPath()))
		return store, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, redisClient.Options().DB))
	return status.NewRedisStore(redisClient, cfg.Checkin.RedisKeyPrefix), redisClient
}

func buildVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	switch cfg.Mode {
	case config.AuthOIDC:
		return auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
	case config.AuthHMAC:
		return auth.NewHMACVerifier(cfg.HMACSecret), nil
	default:
		return nil, nil
	}
}

// requestLogger tags each request with an id and logs method, path, status
// and duration once it completes.
func requestLogger(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			if r.Header.Get("X-Request-ID") == "" {
				r.Header.Set("X-Request-ID", utils.GenerateRequestID())
			}
			w.Header().Set("X-Request-ID", r.Header.Get("X-Request-ID"))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.LogAPI(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, ".env file not found, using environment variables")
	}

	cfg := config.Load()
	logger, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Name: "checkin-service", Level: cfg.Log.Level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Info("APP", "Starting Check-in Service initialization")
	if err := cfg.Validate(); err != nil {
		logger.Fatal("CONFIG", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB := verifyDatabase(cfg.Database, logger)
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB.DB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
		}, logger)
		if err := runner.RunMigrations(); err != nil {
			logger.Fatal("MIGRATE", fmt.Sprintf("Failed to run migrations: %v", err))
		}
		// Closing the migrator would close the shared *sql.DB.
	}

	store, redisClient := buildStatusStore(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	seedList, err := seed.Load(cfg.Checkin.SeedFile)
	if err != nil {
		logger.Fatal("CONFIG", fmt.Sprintf("Failed to load seed list: %v", err))
	}
	logger.Info("APP", fmt.Sprintf("Loaded %d seeded attendees", seedList.Len()))

	ticketDB := &ticket_db.DB{Bun: bunDB}
	resolver := directory.NewResolver(ticketDB, seedList, logger)
	emitter := sse.NewCheckinEventEmitter()

	ticketService := tickets.NewTicketService(ticketDB, resolver, store, seedList, logger)
	ticketService.Emitter = emitter
	ticketService.TicketPrefix = cfg.Tickets.Prefix
	if cfg.Tickets.QRSecret != "" {
		ticketService.QR = qr.NewQRGenerator(cfg.Tickets.QRSecret, cfg.Tickets.QRImageSize)
	} else {
		logger.Warn("CONFIG", "QR_SECRET_KEY not set, QR scanning and ticket issuance QR codes are disabled")
	}
	ticketService.PDF = template.NewTicketPDFGenerator(cfg.Tickets.FontPath, template.EventInfo{
		Name:  cfg.Tickets.EventName,
		Venue: cfg.Tickets.EventVenue,
		Dates: cfg.Tickets.EventDates,
	})

	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.PaymentSucceeded, cfg.Kafka.Topics.CheckinEvents}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.CheckinEvents, logger)
		defer producer.Close()
		ticketService.Publisher = producer

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.PaymentSucceeded, cfg.Kafka.GroupID, logger)
		defer consumer.Close()
		go func() {
			err := consumer.Start(ctx, func(ctx context.Context, evt models.PaymentSucceededEvent) error {
				_, err := ticketService.IssueFromPayment(ctx, evt)
				return err
			})
			if err != nil {
				logger.Error("KAFKA", fmt.Sprintf("Payment consumer stopped, restart to resume from the uncommitted offset: %v", err))
			}
		}()
		logger.Info("KAFKA", fmt.Sprintf("Kafka enabled with brokers %v", cfg.Kafka.Brokers))
	}

	verifier, err := buildVerifier(ctx, cfg.Auth)
	if err != nil {
		logger.Fatal("AUTH", fmt.Sprintf("Failed to initialize %s verifier: %v", cfg.Auth.Mode, err))
	}

	handler := ticket_api.NewHandler(ticketService, emitter, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Public Routes ---
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
	})

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		if verifier != nil {
			r.Use(auth.Middleware(verifier, logger))
			logger.Info("AUTH", fmt.Sprintf("%s middleware applied to /api routes", cfg.Auth.Mode))
		} else {
			logger.Warn("AUTH", "AUTH_MODE=none, /api routes are unauthenticated")
		}
		r.Route("/api", handler.RegisterRoutes)
	})
	logger.Info("ROUTER", "Check-in routes registered under /api")

	// WriteTimeout stays off for the SSE stream.
	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Check-in Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Check-in Service shutdown complete")
	}
}
