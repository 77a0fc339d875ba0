package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nchudnovets/merezhyvo-vault/internal/autofill"
	"github.com/nchudnovets/merezhyvo-vault/internal/capture"
	"github.com/nchudnovets/merezhyvo-vault/internal/codec"
	"github.com/nchudnovets/merezhyvo-vault/internal/vault"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, constraint, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "constraint": constraint})
}

// writeVaultError maps internal errors to coarse, user-safe responses. No
// file paths, stack traces, or internal detail cross this boundary.
func writeVaultError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vault.ErrLocked):
		writeError(w, http.StatusLocked, "locked", "vault is locked")
	case errors.Is(err, vault.ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "wrong master password")
	case errors.Is(err, vault.ErrNotInitialized):
		writeError(w, http.StatusPreconditionFailed, "not_initialized", "no master password is set")
	case errors.Is(err, vault.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "conflict", "a master password is already set")
	case errors.Is(err, vault.ErrAlreadyUnlocked):
		writeError(w, http.StatusConflict, "conflict", "vault is already unlocked")
	case errors.Is(err, vault.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "entry not found")
	case errors.Is(err, vault.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", "missing or invalid fields")
	case errors.Is(err, capture.ErrCaptureNotFound):
		writeError(w, http.StatusNotFound, "not_found", "capture not found")
	case errors.Is(err, capture.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid capture action")
	case errors.Is(err, codec.ErrPasswordRequired):
		writeError(w, http.StatusBadRequest, "password_required", "this file needs an import password")
	case errors.Is(err, codec.ErrMissingSalt):
		writeError(w, http.StatusUnprocessableEntity, "missing_salt", "the file is missing key-derivation data")
	case errors.Is(err, codec.ErrUnrecognizedFormat):
		writeError(w, http.StatusUnprocessableEntity, "unrecognized_format", "not a recognized import file")
	case errors.Is(err, codec.ErrSizeLimit):
		writeError(w, http.StatusRequestEntityTooLarge, "size_limit", "import file is too large")
	case errors.Is(err, codec.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, "invalid_request", "import mode must be add or replace")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON")
		return false
	}
	return true
}

// GET /vault/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.vault.Status())
}

// POST /vault/unlock
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	if !s.unlockLimit.allow() {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many unlock attempts, try again later")
		return
	}

	var req struct {
		Password        string `json:"password"`
		AutoLockMinutes *int   `json:"autoLockMinutes,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "password required")
		return
	}

	minutes := -1
	if req.AutoLockMinutes != nil {
		minutes = *req.AutoLockMinutes
	}
	token, err := s.vault.Unlock(req.Password, minutes)
	if err != nil {
		s.log.Warn(r.Context(), "unlock failed")
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// POST /vault/lock
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	s.vault.Lock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "locked"})
}

// POST /vault/master
func (s *Server) handleCreateMaster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "password required")
		return
	}

	token, err := s.vault.Initialize(req.Password)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

// PUT /vault/master
func (s *Server) handleChangeMaster(w http.ResponseWriter, r *http.Request) {
	if !s.unlockLimit.allow() {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts, try again later")
		return
	}

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "oldPassword and newPassword required")
		return
	}

	token, err := s.vault.ChangeMasterPassword(req.OldPassword, req.NewPassword)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// GET /entries
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	metas, err := s.vault.List()
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metas)
}

// GET /entries/{id}/secret
func (s *Server) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	secret, err := s.vault.GetSecret(r.PathValue("id"))
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, secret)
}

// POST /entries
func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var input vault.EntryInput
	if !decodeBody(w, r, &input) {
		return
	}
	input.ID = ""
	s.upsertAndSave(w, input)
}

// PUT /entries/{id}
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var input vault.EntryInput
	if !decodeBody(w, r, &input) {
		return
	}
	input.ID = r.PathValue("id")
	if _, err := s.vault.GetSecret(input.ID); err != nil {
		// Updating a missing entry must not silently insert.
		writeVaultError(w, err)
		return
	}
	s.upsertAndSave(w, input)
}

func (s *Server) upsertAndSave(w http.ResponseWriter, input vault.EntryInput) {
	res, err := s.vault.AddOrUpdate(input)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	if err := s.vault.Save(); err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DELETE /entries/{id}
func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.vault.Remove(r.PathValue("id")); err != nil {
		writeVaultError(w, err)
		return
	}
	if err := s.vault.Save(); err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// GET /blacklist
func (s *Server) handleListBlacklist(w http.ResponseWriter, r *http.Request) {
	origins, err := s.vault.Blacklist()
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, origins)
}

// POST /blacklist
func (s *Server) handleAddBlacklist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Origin string `json:"origin"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.vault.AddToBlacklist(req.Origin); err != nil {
		writeVaultError(w, err)
		return
	}
	if err := s.vault.Save(); err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

// DELETE /blacklist?origin=...
func (s *Server) handleRemoveBlacklist(w http.ResponseWriter, r *http.Request) {
	origin := r.URL.Query().Get("origin")
	if err := s.vault.RemoveFromBlacklist(origin); err != nil {
		writeVaultError(w, err)
		return
	}
	if err := s.vault.Save(); err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// GET /settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.vault.Settings()
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// PATCH /settings
func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch vault.SettingsPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	settings, err := s.vault.UpdateSettings(patch)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	if err := s.vault.Save(); err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// POST /capture/events
func (s *Server) handleCaptureEvent(w http.ResponseWriter, r *http.Request) {
	var ev capture.Event
	if !decodeBody(w, r, &ev) {
		return
	}
	s.workflow.Observe(ev)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "observed"})
}

// POST /capture/actions
func (s *Server) handleCaptureAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CaptureID string `json:"captureId"`
		Action    string `json:"action"`
		EntryID   string `json:"entryId,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.workflow.ApplyAction(req.CaptureID, req.Action, req.EntryID); err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

// GET /capture/notifications
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	notifications := s.notifications.drain()
	if notifications == nil {
		notifications = []Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

// POST /focus
func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SurfaceID string `json:"surfaceId"`
		autofill.Context
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SurfaceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "surfaceId required")
		return
	}
	s.resolver.NotifyFocus(req.SurfaceID, req.Context)
	writeJSON(w, http.StatusOK, map[string]string{"status": "focused"})
}

// DELETE /focus/{surfaceId}
func (s *Server) handleBlur(w http.ResponseWriter, r *http.Request) {
	s.resolver.NotifyBlur(r.PathValue("surfaceId"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "blurred"})
}

// GET /autofill/{surfaceId}
//
// Reachable without a token only while the vault is locked, so the shell
// can render the "unlock to fill" affordance; candidate usernames are
// served to authenticated callers only.
func (s *Server) handleAutofill(w http.ResponseWriter, r *http.Request) {
	if !s.vault.Status().Locked {
		token, ok := bearerToken(r)
		if !ok || !s.vault.ValidateToken(token) {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid or expired token")
			return
		}
		s.vault.Touch()
	}
	writeJSON(w, http.StatusOK, s.resolver.Resolve(r.PathValue("surfaceId")))
}

// POST /io/detect
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	data, ok := decodeBase64Body(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"format": codec.DetectFormat(data)})
}

// POST /io/csv/preview
func (s *Server) handleCSVPreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	preview, err := codec.PreviewCSV(req.Text)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// POST /io/csv/import
func (s *Server) handleCSVImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
		Mode string `json:"mode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := codec.ImportCSV(s.vault, req.Text, req.Mode)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	s.record("import-csv")
	writeJSON(w, http.StatusOK, res)
}

// GET /io/csv/export
func (s *Server) handleCSVExport(w http.ResponseWriter, r *http.Request) {
	out, err := codec.ExportCSV(s.vault)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	s.record("export-csv")
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}

// POST /io/container/export
func (s *Server) handleContainerExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	data, err := codec.ExportContainer(s.vault, req.Password)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	s.record("export-container")
	writeJSON(w, http.StatusOK, map[string]string{
		"data": base64.StdEncoding.EncodeToString(data),
	})
}

// POST /io/container/import
func (s *Server) handleContainerImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data     string `json:"data"`
		Mode     string `json:"mode"`
		Password string `json:"password,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "data must be base64")
		return
	}
	res, err := codec.ImportContainer(s.vault, data, req.Mode, req.Password)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	s.record("import-container")
	writeJSON(w, http.StatusOK, res)
}

// GET /audit
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	entries, err := s.audit.Recent(100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) record(action string) {
	if s.audit != nil {
		s.audit.Record(action, "")
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:], true
	}
	return "", false
}

func decodeBase64Body(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	var req struct {
		Data string `json:"data"`
	}
	if !decodeBody(w, r, &req) {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "data must be base64")
		return nil, false
	}
	return data, true
}
