// Package autofill resolves ranked credential candidates for focused form
// fields, tracked per UI surface.
package autofill

import (
	"sync"
	"time"

	"github.com/nchudnovets/merezhyvo-vault/internal/vault"
)

const (
	// maxOptions bounds a single dropdown; more than a handful of
	// candidates is noise, not help.
	maxOptions = 5

	// defaultTTL is how long a focus context stays usable after the last
	// focus event before Resolve treats the surface as blurred.
	defaultTTL = 45 * time.Second
)

// Context describes a focused credential field on one surface.
type Context struct {
	Origin      string `json:"origin"`
	SignonRealm string `json:"signonRealm,omitempty"`
	Field       string `json:"field"`
}

// Option is a single autofill candidate, projected without the password.
type Option struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	SiteName string `json:"siteName"`
}

// Result is the resolver's answer for a surface. Locked=true tells the
// caller to offer an unlock prompt instead of silently showing nothing.
type Result struct {
	Available bool     `json:"available"`
	Locked    bool     `json:"locked"`
	Options   []Option `json:"options"`
	SiteName  string   `json:"siteName,omitempty"`
}

type focusEntry struct {
	ctx    Context
	seenAt time.Time
}

// Resolver tracks focus contexts and answers autofill queries against the
// vault's entry repository.
type Resolver struct {
	mu       sync.Mutex
	vault    *vault.Vault
	ttl      time.Duration
	now      func() time.Time
	contexts map[string]focusEntry
}

// New creates a resolver with the default context TTL.
func New(v *vault.Vault) *Resolver {
	return &Resolver{
		vault:    v,
		ttl:      defaultTTL,
		now:      time.Now,
		contexts: make(map[string]focusEntry),
	}
}

// NotifyFocus records (or refreshes) the focus context for a surface.
// Contexts with an unparseable origin are ignored.
func (r *Resolver) NotifyFocus(surfaceID string, ctx Context) {
	origin, err := vault.NormalizeOrigin(ctx.Origin)
	if err != nil {
		return
	}
	ctx.Origin = origin
	if ctx.SignonRealm == "" {
		realm, err := vault.SignonRealm(origin)
		if err != nil {
			return
		}
		ctx.SignonRealm = realm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[surfaceID] = focusEntry{ctx: ctx, seenAt: r.now()}
}

// NotifyBlur clears the focus context for a surface.
func (r *Resolver) NotifyBlur(surfaceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contexts, surfaceID)
}

// Resolve returns autofill candidates for the surface's current context.
func (r *Resolver) Resolve(surfaceID string) Result {
	r.mu.Lock()
	entry, ok := r.contexts[surfaceID]
	if ok && r.now().Sub(entry.seenAt) > r.ttl {
		// Stale focus: the user moved on; do not offer.
		delete(r.contexts, surfaceID)
		ok = false
	}
	r.mu.Unlock()

	if !ok {
		return Result{}
	}

	siteName := vault.SiteName(entry.ctx.SignonRealm)

	if r.vault.Status().Locked {
		return Result{Available: true, Locked: true, Options: []Option{}, SiteName: siteName}
	}

	settings, err := r.vault.Settings()
	if err != nil || !settings.SaveAndFill {
		return Result{}
	}

	metas, err := r.vault.MatchForAutofill(entry.ctx.SignonRealm, maxOptions)
	if err != nil {
		return Result{}
	}

	options := make([]Option, 0, len(metas))
	for _, m := range metas {
		options = append(options, Option{
			ID:       m.ID,
			Username: m.Username,
			SiteName: vault.SiteName(m.SignonRealm),
		})
	}
	return Result{Available: true, Options: options, SiteName: siteName}
}
