package main

import (
	"context"   // Startup and shutdown deadlines
	"errors"    // Error inspection
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal notification
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"wallet_ledger/internal/api"             // HTTP handlers and router
	"wallet_ledger/internal/config"          // Configuration
	"wallet_ledger/internal/db"              // GORM connection and migrations
	"wallet_ledger/internal/events"          // Transaction events
	"wallet_ledger/internal/ledger"          // Wallet ledger engine
	"wallet_ledger/internal/logging"         // Logger construction
	"wallet_ledger/internal/store/gormstore" // MySQL store
	"wallet_ledger/internal/store/memory"    // In-process store
	"wallet_ledger/internal/store/pgstore"   // Postgres store
	"wallet_ledger/internal/utils"           // Token blacklist

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// store is what the server needs from either database backend
type store interface {
	ledger.Store
	api.UserStore
	api.Pinger
}

// Main function to set up and run the server
func main() {
	cfg, err := config.Load() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.IsProd) // Setup logger
	logrus.SetOutput(log.Out)                    // GORM logs through the standard logger
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	defer closeStore()

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}

	// Optional event stream
	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		async := events.NewAsync(kp, cfg.EventBuffer, 5*time.Second, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := async.Close(ctx); err != nil {
				log.WithError(err).Warn("Undelivered transaction events dropped")
			}
		}()
		publisher = async
		log.WithFields(logrus.Fields{"brokers": cfg.KafkaBrokers, "topic": cfg.KafkaTopic}).Info("Publishing transactions to Kafka")
	}

	engine := ledger.NewEngine(st,
		ledger.WithLogger(log),
		ledger.WithPublisher(publisher),
		ledger.WithMaxAttempts(cfg.LedgerMaxAttempts),
	)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := api.NewRouter(api.Deps{
		Users:     st,
		Ledger:    engine,
		Blacklist: utils.NewTokenBlacklist(redisClient),
		Redis:     redisClient,
		Probes: map[string]api.Pinger{
			"database": st,
			"redis":    api.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		},
		JWTSecret:      cfg.JWTSecret,
		JWTTTL:         cfg.JWTTTL,
		LoginRateLimit: cfg.LoginRateLimit,
		TrustedProxies: []string{"127.0.0.1"},
		Log:            log,
	})
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.AppPort).Info("Server running") // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

// openStore connects to the configured database backend
func openStore(ctx context.Context, cfg *config.Config) (store, func(), error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		return memory.New(), func() {}, nil
	case config.DriverPostgres:
		pool, err := pgstore.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pgstore.New(pool), pool.Close, nil
	default:
		dsn := db.MySQLDSN(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
		gdb, err := db.OpenMySQL(dsn, !cfg.IsProd)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := gdb.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return gormstore.New(gdb), closeFn, nil
	}
}
