// Package api exposes the vault's request/response surface to the browser
// shell over local HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/nchudnovets/merezhyvo-vault/internal/audit"
	"github.com/nchudnovets/merezhyvo-vault/internal/autofill"
	"github.com/nchudnovets/merezhyvo-vault/internal/capture"
	"github.com/nchudnovets/merezhyvo-vault/internal/logging"
	"github.com/nchudnovets/merezhyvo-vault/internal/vault"
)

// rateLimiter tracks attempts within a time window.
type rateLimiter struct {
	mu       sync.Mutex
	attempts []time.Time
	max      int
	window   time.Duration
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{max: max, window: window}
}

// allow returns true if the request is within the rate limit.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	valid := rl.attempts[:0]
	for _, t := range rl.attempts {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	rl.attempts = valid

	if len(rl.attempts) >= rl.max {
		return false
	}
	rl.attempts = append(rl.attempts, now)
	return true
}

// Server is the HTTP API server for the vault.
type Server struct {
	vault         *vault.Vault
	workflow      *capture.Workflow
	resolver      *autofill.Resolver
	audit         *audit.Log
	log           logging.Logger
	notifications *notificationQueue
	mux           *http.ServeMux
	handler       http.Handler
	server        *http.Server
	unlockLimit   *rateLimiter
}

// New wires the vault components behind an HTTP surface. The audit log may
// be nil.
func New(v *vault.Vault, auditLog *audit.Log, log logging.Logger, addr string) *Server {
	s := &Server{
		vault:         v,
		audit:         auditLog,
		log:           log,
		notifications: newNotificationQueue(),
		unlockLimit:   newRateLimiter(5, time.Minute),
	}
	s.workflow = capture.New(v, s.notifications)
	s.resolver = autofill.New(v)

	s.mux = http.NewServeMux()
	s.registerRoutes()
	s.handler = securityHeadersMiddleware(bodySizeMiddleware(s.mux))
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
	}
	return s
}

// Handler returns the full middleware chain, for tests.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) registerRoutes() {
	// Reachable without a session token: the shell must see status, submit
	// captures, track focus, and ask to unlock while the vault is locked.
	s.mux.HandleFunc("GET /vault/status", s.handleStatus)
	s.mux.HandleFunc("POST /vault/unlock", s.handleUnlock)
	s.mux.HandleFunc("POST /vault/master", s.handleCreateMaster)
	s.mux.HandleFunc("PUT /vault/master", s.handleChangeMaster)
	s.mux.HandleFunc("POST /capture/events", s.handleCaptureEvent)
	s.mux.HandleFunc("GET /capture/notifications", s.handleNotifications)
	s.mux.HandleFunc("POST /focus", s.handleFocus)
	s.mux.HandleFunc("DELETE /focus/{surfaceId}", s.handleBlur)
	s.mux.HandleFunc("GET /autofill/{surfaceId}", s.handleAutofill)

	// Everything touching decrypted content requires the session token.
	auth := s.authMiddleware
	s.mux.Handle("POST /vault/lock", auth(http.HandlerFunc(s.handleLock)))
	s.mux.Handle("GET /entries", auth(http.HandlerFunc(s.handleListEntries)))
	s.mux.Handle("GET /entries/{id}/secret", auth(http.HandlerFunc(s.handleGetSecret)))
	s.mux.Handle("POST /entries", auth(http.HandlerFunc(s.handleAddEntry)))
	s.mux.Handle("PUT /entries/{id}", auth(http.HandlerFunc(s.handleUpdateEntry)))
	s.mux.Handle("DELETE /entries/{id}", auth(http.HandlerFunc(s.handleRemoveEntry)))
	s.mux.Handle("GET /blacklist", auth(http.HandlerFunc(s.handleListBlacklist)))
	s.mux.Handle("POST /blacklist", auth(http.HandlerFunc(s.handleAddBlacklist)))
	s.mux.Handle("DELETE /blacklist", auth(http.HandlerFunc(s.handleRemoveBlacklist)))
	s.mux.Handle("GET /settings", auth(http.HandlerFunc(s.handleGetSettings)))
	s.mux.Handle("PATCH /settings", auth(http.HandlerFunc(s.handlePatchSettings)))
	s.mux.Handle("POST /capture/actions", auth(http.HandlerFunc(s.handleCaptureAction)))
	s.mux.Handle("POST /io/detect", auth(http.HandlerFunc(s.handleDetect)))
	s.mux.Handle("POST /io/csv/preview", auth(http.HandlerFunc(s.handleCSVPreview)))
	s.mux.Handle("POST /io/csv/import", auth(http.HandlerFunc(s.handleCSVImport)))
	s.mux.Handle("GET /io/csv/export", auth(http.HandlerFunc(s.handleCSVExport)))
	s.mux.Handle("POST /io/container/export", auth(http.HandlerFunc(s.handleContainerExport)))
	s.mux.Handle("POST /io/container/import", auth(http.HandlerFunc(s.handleContainerImport)))
	s.mux.Handle("GET /audit", auth(http.HandlerFunc(s.handleAudit)))
}

// Start serves until the context is cancelled, then shuts down gracefully
// and locks the vault so key material does not outlive the server.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()
	s.log.Info(ctx, "vault api listening", "addr", s.server.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	s.vault.Lock()
	s.log.Info(ctx, "vault api stopped")
	return err
}
