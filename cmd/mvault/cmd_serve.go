package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nchudnovets/merezhyvo-vault/internal/api"
	"github.com/nchudnovets/merezhyvo-vault/internal/audit"
	"github.com/nchudnovets/merezhyvo-vault/internal/crypto"
	"github.com/nchudnovets/merezhyvo-vault/internal/logging"
	"github.com/nchudnovets/merezhyvo-vault/internal/vault"
)

func cmdServe() {
	crypto.DisableCoreDumps()

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := vaultDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		fatal("creating vault directory: %v", err)
	}

	v := vault.New(dir)
	auditLog, err := audit.Open(filepath.Join(dir, "audit.db"))
	if err != nil {
		log.Warn(ctx, "audit log unavailable", "err", err)
	} else {
		defer auditLog.Close()
		v.SetRecorder(auditLog)
	}

	srv := api.New(v, auditLog, log, serverAddr())
	if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
		fatal("%v", err)
	}
}
