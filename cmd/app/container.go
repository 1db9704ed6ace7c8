package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/containervault/containervault/internal/config"
	"github.com/containervault/containervault/internal/container"
	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	"github.com/containervault/containervault/internal/cryptocore/keygen"
	"github.com/containervault/containervault/internal/database"
	"github.com/containervault/containervault/internal/escrow"
	"github.com/containervault/containervault/internal/freekeys"
	"github.com/containervault/containervault/internal/keystore"
	"github.com/containervault/containervault/internal/keystore/repository"
	"github.com/containervault/containervault/internal/metrics"
)

// appContainer is the DI container wiring config -> database -> keystore ->
// escrow -> container engine.
type appContainer struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB

	keystore        *keystore.Keystore
	localEscrow     escrow.Escrow
	resolver        *container.Resolver
	engine          *container.Engine
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
}

// newAppContainer opens the database connection and wires every dependency
// needed by the encrypt/decrypt/validate/serve commands.
func newAppContainer(cfg *config.Config) (*appContainer, error) {
	logger := newLogger(cfg.LogLevel)

	db, err := database.Connect(database.Config{
		Driver:             cfg.DBDriver,
		ConnectionString:   cfg.DBConnectionString,
		MaxOpenConnections: cfg.DBMaxOpenConnections,
		MaxIdleConnections: cfg.DBMaxIdleConnections,
		ConnMaxLifetime:    cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	var boundRepo keystore.BoundRepository
	switch cfg.DBDriver {
	case "mysql":
		boundRepo = repository.NewMySQLRepository(db)
	default:
		boundRepo = repository.NewPostgreSQLRepository(db)
	}
	ks := keystore.New(boundRepo)

	metricsProvider, err := metrics.NewProvider("containervault")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init metrics provider: %w", err)
	}
	businessMetrics, err := metrics.NewBusinessMetrics(metricsProvider.MeterProvider(), "containervault")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init business metrics: %w", err)
	}

	rw := escrow.NewReadWriteEscrow(ks, keygenFunc)
	instrumented := escrow.NewEscrowWithMetrics(rw, businessMetrics)
	resolver := container.NewResolver(instrumented)
	engine := container.NewEngine(resolver)

	return &appContainer{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		keystore:        ks,
		localEscrow:     instrumented,
		resolver:        resolver,
		engine:          engine,
		metricsProvider: metricsProvider,
		businessMetrics: businessMetrics,
	}, nil
}

// Shutdown closes every resource the container opened.
func (c *appContainer) Shutdown(ctx context.Context) error {
	var errs []string

	if err := c.resolver.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// keygenFunc is the escrow.KeygenFunc / freekeys.KeygenFunc shared by
// synchronous escrow materialization and the free-keys worker, using each
// algorithm's default parameters.
func keygenFunc(algo string) (*cryptoDomain.Keypair, error) {
	switch algo {
	case string(cryptoDomain.RSAOAEP), string(cryptoDomain.RSAPSS):
		return keygen.GenerateAsymmetricKeypair(algo, keygen.Options{KeyLength: 2048})
	case string(cryptoDomain.DSADSS):
		return keygen.GenerateAsymmetricKeypair(algo, keygen.Options{KeyLength: 2048})
	case string(cryptoDomain.ECCDSS):
		return keygen.GenerateAsymmetricKeypair(algo, keygen.Options{Curve: "p384"})
	default:
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
}

// newFreeKeysWorker builds the free-keys worker over c's keystore, using
// cfg's algorithm/ceiling tuning.
func (c *appContainer) newFreeKeysWorker() *freekeys.Worker {
	algos := append([]string{}, c.cfg.FreeKeysAlgos...)
	algos = append(algos, c.cfg.FreeKeysSignatureAlgos...)

	return freekeys.New(freekeys.Config{
		MaxFreeKeysPerAlgo: c.cfg.FreeKeysMaxPerAlgo,
		SleepOnOverflow:    c.cfg.FreeKeysSleepOnOverflow,
		KeyAlgos:           algos,
		KeygenFunc:         keygenFunc,
	}, c.keystore, c.logger)
}

// newLogger builds the application's structured logger, level driven by
// LOG_LEVEL.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
