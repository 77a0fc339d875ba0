// Package capture implements the save-credential workflow: observed form
// submissions become prompt notifications, and the user's decision is
// persisted through the vault.
package capture

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/nchudnovets/merezhyvo-vault/internal/vault"
)

var (
	ErrInvalidAction   = errors.New("invalid capture action")
	ErrCaptureNotFound = errors.New("unknown capture id")
)

// Event is an observed credential submission from a web form.
type Event struct {
	Origin      string `json:"origin"`
	SignonRealm string `json:"signonRealm,omitempty"`
	FormAction  string `json:"formAction,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password"`
}

// Prompt is the outbound notification asking the user to save or update.
type Prompt struct {
	CaptureID string `json:"captureId"`
	SiteName  string `json:"siteName"`
	IsUpdate  bool   `json:"isUpdate"`
	MatchedID string `json:"matchedId,omitempty"`
}

// Notifier receives outbound notifications for the browser shell to render.
type Notifier interface {
	PromptSave(p Prompt)
	UnlockRequired()
}

// record is an ephemeral capture awaiting the user's decision. Records live
// in process memory only and die with the process.
type record struct {
	id        string
	origin    string
	realm     string
	form      string
	username  string
	password  string
	matchedID string
}

// Workflow is the capture state machine. At most one event is stashed while
// the vault is locked; a newer capture overwrites it (last write wins, since
// the shell shows a single prompt at a time).
type Workflow struct {
	mu       sync.Mutex
	vault    *vault.Vault
	notifier Notifier
	active   map[string]*record
	pending  *Event
}

// New wires the workflow to a vault. A pending capture stashed while locked
// is replayed automatically on the next successful unlock.
func New(v *vault.Vault, n Notifier) *Workflow {
	w := &Workflow{
		vault:    v,
		notifier: n,
		active:   make(map[string]*record),
	}
	v.OnUnlock(w.replayPending)
	return w
}

// Observe handles a submitted-credential event. Events that fail the
// configured checks are dropped without creating state; events arriving
// while the vault is locked are stashed and trigger an unlock-required
// notification instead of a prompt.
func (w *Workflow) Observe(ev Event) {
	if ev.Password == "" {
		return
	}
	origin, err := vault.NormalizeOrigin(ev.Origin)
	if err != nil {
		return
	}
	ev.Origin = origin
	if ev.SignonRealm == "" {
		realm, err := vault.SignonRealm(origin)
		if err != nil {
			return
		}
		ev.SignonRealm = realm
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.vault.Status().Locked {
		w.pending = &ev
		w.notifier.UnlockRequired()
		return
	}
	w.processUnlocked(ev)
}

// processUnlocked runs the save-offer checks and emits the prompt.
// Caller holds w.mu.
func (w *Workflow) processUnlocked(ev Event) {
	settings, err := w.vault.Settings()
	if err != nil {
		return
	}
	if !settings.OfferToSave {
		return
	}
	if settings.DisallowHTTP && !vault.IsSecureOrigin(ev.Origin) {
		return
	}
	if black, err := w.vault.IsBlacklisted(ev.Origin); err != nil || black {
		return
	}

	rec := &record{
		id:       uuid.NewString(),
		origin:   ev.Origin,
		realm:    ev.SignonRealm,
		form:     ev.FormAction,
		username: ev.Username,
		password: ev.Password,
	}

	matched, ok, err := w.vault.FindCredential(ev.SignonRealm, ev.Username)
	if err != nil {
		return
	}
	if ok {
		rec.matchedID = matched.ID
	}

	w.active[rec.id] = rec
	w.notifier.PromptSave(Prompt{
		CaptureID: rec.id,
		SiteName:  vault.SiteName(ev.SignonRealm),
		IsUpdate:  ok,
		MatchedID: rec.matchedID,
	})
}

func (w *Workflow) replayPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return
	}
	ev := *w.pending
	w.pending = nil
	w.processUnlocked(ev)
}

// ApplyAction resolves a prompt with the user's decision. Unknown actions
// and unknown capture ids fail without mutating any state; vault errors
// (for example a lock racing the decision) keep the record around so the
// decision can be retried.
func (w *Workflow) ApplyAction(captureID, action, entryID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec, ok := w.active[captureID]
	if !ok {
		return ErrCaptureNotFound
	}

	switch action {
	case "never":
		if err := w.vault.AddToBlacklist(rec.origin); err != nil {
			return err
		}
	case "update":
		if entryID == "" {
			return ErrInvalidAction
		}
		// An unknown id must fail, not fall through to an insert.
		if _, err := w.vault.GetSecret(entryID); err != nil {
			return err
		}
		_, err := w.vault.AddOrUpdate(vault.EntryInput{
			ID:          entryID,
			Origin:      rec.origin,
			SignonRealm: rec.realm,
			FormAction:  rec.form,
			Username:    rec.username,
			Password:    rec.password,
		})
		if err != nil {
			return err
		}
	case "save", "keep-both":
		// A matched entry id, if any, is deliberately ignored: the user
		// chose to keep a separate credential.
		_, err := w.vault.AddOrUpdate(vault.EntryInput{
			Origin:      rec.origin,
			SignonRealm: rec.realm,
			FormAction:  rec.form,
			Username:    rec.username,
			Password:    rec.password,
		})
		if err != nil {
			return err
		}
	default:
		return ErrInvalidAction
	}

	if err := w.vault.Save(); err != nil {
		return err
	}
	rec.password = ""
	delete(w.active, captureID)
	return nil
}

// Dismiss drops a capture without persisting anything.
func (w *Workflow) Dismiss(captureID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec, ok := w.active[captureID]
	if !ok {
		return ErrCaptureNotFound
	}
	rec.password = ""
	delete(w.active, captureID)
	return nil
}
