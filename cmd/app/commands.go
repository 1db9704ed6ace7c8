package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/containervault/containervault/internal/config"
	"github.com/containervault/containervault/internal/container"
	containerDomain "github.com/containervault/containervault/internal/container/domain"
	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	apperrors "github.com/containervault/containervault/internal/errors"
	"github.com/containervault/containervault/internal/escrow/rpc"
	keystoreDomain "github.com/containervault/containervault/internal/keystore/domain"
)

// exitCode classifies err for the process exit status: 1 for
// configuration/validation failures, 2 for cryptographic failures
// (decryption, signature verification).
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if apperrors.Is(err, cryptoDomain.ErrDecryptionFailed) ||
		apperrors.Is(err, cryptoDomain.ErrMalformedCipherdict) ||
		apperrors.Is(err, cryptoDomain.ErrInvalidPassphrase) ||
		apperrors.Is(err, keystoreDomain.ErrInvalidPassphrase) ||
		apperrors.Is(err, cryptoDomain.ErrSignatureVerificationFailed) {
		return 2
	}
	if apperrors.Is(err, apperrors.ErrInvalidInput) || apperrors.Is(err, apperrors.ErrNotFound) {
		return 1
	}
	return 2
}

func getCommands() []*cli.Command {
	return []*cli.Command{
		newEncryptCommand(),
		newDecryptCommand(),
		newValidateCommand(),
		newMigrateCommand(),
		newServeCommand(),
	}
}

func newEncryptCommand() *cli.Command {
	return &cli.Command{
		Name:  "encrypt",
		Usage: "Encrypt a file into a container document per a configuration tree",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, Usage: "path to the EncryptionConf JSON document"},
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Required: true, Usage: "path to the plaintext input file"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "path to write the container document (CBOR)"},
			&cli.StringFlag{Name: "keychain-uid", Usage: "identity to bind keys under; a fresh one is minted if omitted"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runEncrypt(ctx, cmd.String("config"), cmd.String("in"), cmd.String("out"), cmd.String("keychain-uid"))
		},
	}
}

func newDecryptCommand() *cli.Command {
	return &cli.Command{
		Name:  "decrypt",
		Usage: "Decrypt a container document back into its original plaintext",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Required: true, Usage: "path to the container document (CBOR)"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "path to write the recovered plaintext"},
			&cli.StringSliceFlag{Name: "passphrase", Usage: "candidate passphrase for a passphrase-protected private key; may repeat"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runDecrypt(ctx, cmd.String("in"), cmd.String("out"), cmd.StringSlice("passphrase"))
		},
	}
}

func newValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check a container document's format tag and escrow descriptors without decrypting",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Required: true, Usage: "path to the container document (CBOR)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runValidate(cmd.String("in"))
		},
	}
}

func newMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run the keystore's database migrations",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runMigrate()
		},
	}
}

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the Free-Keys Worker and expose the local escrow over JSON-RPC",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServe(ctx)
		},
	}
}

func runEncrypt(ctx context.Context, confPath, inPath, outPath, keychainUIDStr string) error {
	cfg := config.Load()
	app, err := newAppContainer(cfg)
	if err != nil {
		return &cliError{code: 2, err: err}
	}
	defer closeApp(app)

	confBytes, err := os.ReadFile(confPath)
	if err != nil {
		return &cliError{code: 1, err: fmt.Errorf("read config: %w", err)}
	}
	var conf containerDomain.EncryptionConf
	if err := json.Unmarshal(confBytes, &conf); err != nil {
		return &cliError{code: 1, err: fmt.Errorf("parse config: %w", err)}
	}
	if err := conf.Validate(); err != nil {
		return &cliError{code: 1, err: err}
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		return &cliError{code: 1, err: fmt.Errorf("read input: %w", err)}
	}

	var keychainUID *uuid.UUID
	if keychainUIDStr != "" {
		parsed, err := uuid.Parse(keychainUIDStr)
		if err != nil {
			return &cliError{code: 1, err: fmt.Errorf("parse keychain-uid: %w", err)}
		}
		keychainUID = &parsed
	}

	doc, err := app.engine.Encrypt(ctx, data, conf, keychainUID)
	if err != nil {
		return &cliError{code: exitCode(err), err: err}
	}

	out, err := container.MarshalContainer(doc)
	if err != nil {
		return &cliError{code: 2, err: err}
	}
	if err := os.WriteFile(outPath, out, 0o600); err != nil {
		return &cliError{code: 1, err: fmt.Errorf("write output: %w", err)}
	}

	app.logger.Info("encrypted container",
		slog.String("container_uid", doc.ContainerUID.String()),
		slog.String("keychain_uid", doc.KeychainUID.String()),
		slog.Int("strata", len(doc.DataEncryptionStrata)),
	)
	return nil
}

func runDecrypt(ctx context.Context, inPath, outPath string, passphraseStrs []string) error {
	cfg := config.Load()
	app, err := newAppContainer(cfg)
	if err != nil {
		return &cliError{code: 2, err: err}
	}
	defer closeApp(app)

	raw, err := os.ReadFile(inPath)
	if err != nil {
		return &cliError{code: 1, err: fmt.Errorf("read input: %w", err)}
	}

	doc, err := container.UnmarshalContainer(raw)
	if err != nil {
		return &cliError{code: 1, err: err}
	}

	passphrases := make([][]byte, len(passphraseStrs))
	for i, p := range passphraseStrs {
		passphrases[i] = []byte(p)
	}

	plaintext, err := app.engine.Decrypt(ctx, doc, passphrases)
	if err != nil {
		return &cliError{code: exitCode(err), err: err}
	}

	if err := os.WriteFile(outPath, plaintext, 0o600); err != nil {
		return &cliError{code: 1, err: fmt.Errorf("write output: %w", err)}
	}

	app.logger.Info("decrypted container", slog.String("container_uid", doc.ContainerUID.String()))
	return nil
}

func runValidate(inPath string) error {
	raw, err := os.ReadFile(inPath)
	if err != nil {
		return &cliError{code: 1, err: fmt.Errorf("read input: %w", err)}
	}

	doc, err := container.UnmarshalContainer(raw)
	if err != nil {
		return &cliError{code: 1, err: err}
	}

	if doc.ContainerFormat != containerDomain.ContainerFormat {
		return &cliError{code: 1, err: containerDomain.ErrUnknownContainerFormat}
	}

	if len(doc.DataEncryptionStrata) == 0 {
		return &cliError{code: 1, err: fmt.Errorf("container has no data encryption strata")}
	}

	for _, stratum := range doc.DataEncryptionStrata {
		for _, ks := range stratum.KeyEncryptionStrata {
			if err := container.ValidateDescriptor(ks.KeyEscrow); err != nil {
				return &cliError{code: 1, err: err}
			}
		}
		for _, sig := range stratum.DataSignatures {
			if err := container.ValidateDescriptor(sig.SignatureEscrow); err != nil {
				return &cliError{code: 1, err: err}
			}
		}
	}

	fmt.Printf("container %s is well-formed: format=%s strata=%d\n",
		doc.ContainerUID, doc.ContainerFormat, len(doc.DataEncryptionStrata))
	return nil
}

func runMigrate() error {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)

	migrationsPath := "file://migrations/postgresql"
	if cfg.DBDriver == "mysql" {
		migrationsPath = "file://migrations/mysql"
	}

	m, err := migrate.New(migrationsPath, cfg.DBConnectionString)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if sourceErr != nil || dbErr != nil {
			logger.Error("failed to close migrate", slog.Any("source_error", sourceErr), slog.Any("database_error", dbErr))
		}
	}()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}

func runServe(ctx context.Context) error {
	cfg := config.Load()
	app, err := newAppContainer(cfg)
	if err != nil {
		return fmt.Errorf("build app container: %w", err)
	}
	defer closeApp(app)

	worker := app.newFreeKeysWorker()
	worker.Start(ctx)
	defer worker.Stop()

	listener, err := net.Listen("tcp", cfg.EscrowRPCListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.EscrowRPCListenAddr, err)
	}

	app.logger.Info("serving escrow JSON-RPC", slog.String("addr", cfg.EscrowRPCListenAddr))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- rpc.Serve(listener, app.localEscrow)
	}()

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	select {
	case <-runCtx.Done():
		app.logger.Info("shutdown signal received")
		worker.Stop()
		worker.Join()
		return listener.Close()
	case err := <-serveErr:
		return err
	}
}

func closeApp(app *appContainer) {
	if err := app.Shutdown(context.Background()); err != nil {
		app.logger.Error("failed to shut down application container", slog.Any("error", err))
	}
}

// cliError carries an explicit process exit code alongside the underlying
// error: 0 on success, 1 on validation error, 2 on cryptographic failure.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }
